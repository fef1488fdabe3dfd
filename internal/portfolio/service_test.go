package portfolio

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"papertrade-backend/internal/models"
	"papertrade-backend/internal/quotes"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeQuoter struct {
	prices map[string]float64
	err    error
}

func (f *fakeQuoter) Lookup(ctx context.Context, symbol string) (*quotes.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	p, ok := f.prices[symbol]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	return &quotes.Quote{Symbol: symbol, Name: symbol + " Inc", Price: p}, nil
}

func setupServiceTest(t *testing.T, prices map[string]float64) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Holding{}, &models.Transaction{}))
	return &Service{DB: db, Quoter: &fakeQuoter{prices: prices}}, db
}

func seedUser(t *testing.T, db *gorm.DB, cash float64) uuid.UUID {
	u := models.User{Username: "tester-" + uuid.New().String()[:8], PasswordHash: "x", Cash: cash}
	require.NoError(t, db.Create(&u).Error)
	return u.UserID
}

// ledgerState captures everything a rejected trade must leave untouched.
type ledgerState struct {
	cash     float64
	holdings []models.Holding
	txCount  int64
}

func snapshot(t *testing.T, db *gorm.DB, userID uuid.UUID) ledgerState {
	var u models.User
	require.NoError(t, db.Where("user_id = ?", userID).First(&u).Error)
	var hs []models.Holding
	require.NoError(t, db.Where("user_id = ?", userID).Order("symbol ASC").Find(&hs).Error)
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&n).Error)
	return ledgerState{cash: u.Cash, holdings: hs, txCount: n}
}

func assertUnchanged(t *testing.T, before, after ledgerState) {
	assert.Equal(t, before.cash, after.cash)
	assert.Equal(t, before.txCount, after.txCount)
	require.Len(t, after.holdings, len(before.holdings))
	for i := range before.holdings {
		assert.Equal(t, before.holdings[i].Symbol, after.holdings[i].Symbol)
		assert.Equal(t, before.holdings[i].Shares, after.holdings[i].Shares)
	}
}

func TestBuy_CreatesHoldingAndDebitsCash(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 150.25})
	userID := seedUser(t, db, 10000)

	result, err := svc.Buy(context.Background(), userID, "aapl", 4)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", result["symbol"])
	assert.Equal(t, int64(4), result["shares"])
	assert.Equal(t, 601.0, result["total"])
	assert.Equal(t, 9399.0, result["cash"])

	var u models.User
	require.NoError(t, db.Where("user_id = ?", userID).First(&u).Error)
	assert.Equal(t, 9399.0, u.Cash)

	var h models.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", userID, "AAPL").First(&h).Error)
	assert.Equal(t, int64(4), h.Shares)

	var txs []models.Transaction
	require.NoError(t, db.Where("user_id = ?", userID).Find(&txs).Error)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(4), txs[0].Shares)
	assert.Equal(t, 150.25, txs[0].Price)
}

func TestBuy_IncrementsExistingHolding(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	userID := seedUser(t, db, 10000)

	_, err := svc.Buy(context.Background(), userID, "AAPL", 3)
	require.NoError(t, err)
	_, err = svc.Buy(context.Background(), userID, "AAPL", 2)
	require.NoError(t, err)

	var hs []models.Holding
	require.NoError(t, db.Where("user_id = ?", userID).Find(&hs).Error)
	require.Len(t, hs, 1, "one row per (user, symbol)")
	assert.Equal(t, int64(5), hs[0].Shares)
}

func TestBuy_ExactCashBoundary(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"NFLX": 100})
	userID := seedUser(t, db, 1000)

	// floor(cash/price) shares succeeds, ending at exactly zero cash
	result, err := svc.Buy(context.Background(), userID, "NFLX", 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result["cash"])
}

func TestBuy_InsufficientFunds(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"NFLX": 100})
	userID := seedUser(t, db, 1000)
	before := snapshot(t, db, userID)

	// one share more than floor(cash/price)
	_, err := svc.Buy(context.Background(), userID, "NFLX", 11)
	assert.Equal(t, ErrInsufficientFunds, err)
	assertUnchanged(t, before, snapshot(t, db, userID))
}

func TestBuy_InvalidShares(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	userID := seedUser(t, db, 10000)
	before := snapshot(t, db, userID)

	_, err := svc.Buy(context.Background(), userID, "AAPL", 0)
	assert.Equal(t, ErrInvalidInput, err)
	_, err = svc.Buy(context.Background(), userID, "AAPL", -5)
	assert.Equal(t, ErrInvalidInput, err)
	assertUnchanged(t, before, snapshot(t, db, userID))
}

func TestBuy_UnknownSymbol(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	userID := seedUser(t, db, 10000)
	before := snapshot(t, db, userID)

	_, err := svc.Buy(context.Background(), userID, "NOPE", 1)
	assert.Equal(t, ErrInvalidInput, err)
	assertUnchanged(t, before, snapshot(t, db, userID))
}

func TestSell_ClampsToOwnedAndDeletesHolding(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	userID := seedUser(t, db, 10000)

	_, err := svc.Buy(context.Background(), userID, "AAPL", 10)
	require.NoError(t, err)

	var u models.User
	require.NoError(t, db.Where("user_id = ?", userID).First(&u).Error)
	require.Equal(t, 9000.0, u.Cash)

	// Oversell clamps to the 10 owned instead of failing
	result, err := svc.Sell(context.Background(), userID, "AAPL", 15)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result["shares"])
	assert.Equal(t, 10000.0, result["cash"])

	var hs []models.Holding
	require.NoError(t, db.Where("user_id = ?", userID).Find(&hs).Error)
	assert.Empty(t, hs, "emptied holding row is deleted, not retained at zero")

	var txs []models.Transaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("shares DESC").Find(&txs).Error)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(10), txs[0].Shares)
	assert.Equal(t, int64(-10), txs[1].Shares)
	assert.Equal(t, 100.0, txs[1].Price)
}

func TestSell_ExactOwnedEmptiesHolding(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 50})
	userID := seedUser(t, db, 1000)

	_, err := svc.Buy(context.Background(), userID, "AAPL", 6)
	require.NoError(t, err)
	_, err = svc.Sell(context.Background(), userID, "AAPL", 6)
	require.NoError(t, err)

	var hs []models.Holding
	require.NoError(t, db.Where("user_id = ?", userID).Find(&hs).Error)
	assert.Empty(t, hs)
}

func TestSell_PartialKeepsHolding(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 50})
	userID := seedUser(t, db, 1000)

	_, err := svc.Buy(context.Background(), userID, "AAPL", 6)
	require.NoError(t, err)
	result, err := svc.Sell(context.Background(), userID, "AAPL", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result["shares"])

	var h models.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", userID, "AAPL").First(&h).Error)
	assert.Equal(t, int64(4), h.Shares)
}

func TestSell_NoHolding(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"X": 10})
	userID := seedUser(t, db, 1000)
	before := snapshot(t, db, userID)

	_, err := svc.Sell(context.Background(), userID, "X", 1)
	assert.Equal(t, ErrNoHolding, err)
	assertUnchanged(t, before, snapshot(t, db, userID))
}

func TestSell_InvalidInputBeforeOwnershipCheck(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	userID := seedUser(t, db, 10000)

	// Bad quantity and bad symbol both reject as invalid input, even with no holding
	_, err := svc.Sell(context.Background(), userID, "AAPL", 0)
	assert.Equal(t, ErrInvalidInput, err)
	_, err = svc.Sell(context.Background(), userID, "NOPE", 5)
	assert.Equal(t, ErrInvalidInput, err)
}

func TestPortfolio_AggregatesNetWorth(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100, "MSFT": 200})
	userID := seedUser(t, db, 10000)

	_, err := svc.Buy(context.Background(), userID, "AAPL", 10) // 1000
	require.NoError(t, err)
	_, err = svc.Buy(context.Background(), userID, "MSFT", 5) // 1000
	require.NoError(t, err)

	result, err := svc.Portfolio(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, result["cash"])
	assert.Equal(t, 10000.0, result["networth"])

	stocks, ok := result["stocks"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, stocks, 2)
	assert.Equal(t, "AAPL", stocks[0]["symbol"])
	assert.Equal(t, 1000.0, stocks[0]["value"])
}

func TestPortfolio_AbortsWhenLookupFails(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	userID := seedUser(t, db, 10000)

	_, err := svc.Buy(context.Background(), userID, "AAPL", 1)
	require.NoError(t, err)

	// Feed forgets the symbol: whole aggregation aborts, no partial result
	svc.Quoter = &fakeQuoter{prices: map[string]float64{}}
	_, err = svc.Portfolio(context.Background(), userID)
	assert.Equal(t, ErrQuoteUnavailable, err)
}

func TestBuy_ConcurrentBuysNeverOverdraw(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	userID := seedUser(t, db, 500)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Buy(context.Background(), userID, "AAPL", 1)
		}(i)
	}
	wg.Wait()

	// Only floor(cash/price) buys can ever succeed; the rest are rejected
	succeeded := 0
	for _, e := range errs {
		if e == nil {
			succeeded++
		} else {
			assert.Equal(t, ErrInsufficientFunds, e)
		}
	}
	assert.Equal(t, 5, succeeded)

	var u models.User
	require.NoError(t, db.Where("user_id = ?", userID).First(&u).Error)
	assert.Equal(t, 0.0, u.Cash, "cash never goes negative")

	var h models.Holding
	require.NoError(t, db.Where("user_id = ?", userID).First(&h).Error)
	assert.Equal(t, int64(5), h.Shares)

	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&n).Error)
	assert.Equal(t, int64(5), n, "one transaction row per settled buy")
}

func TestSell_ConcurrentSellsNeverOversell(t *testing.T) {
	svc, db := setupServiceTest(t, map[string]float64{"AAPL": 100})
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	userID := seedUser(t, db, 10000)

	_, err = svc.Buy(context.Background(), userID, "AAPL", 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Sell(context.Background(), userID, "AAPL", 4)
		}()
	}
	wg.Wait()

	// 4+4 settle in full, the last clamps to the remaining 2: exactly the 10
	// owned shares are sold, never more
	var hs []models.Holding
	require.NoError(t, db.Where("user_id = ?", userID).Find(&hs).Error)
	assert.Empty(t, hs)

	var u models.User
	require.NoError(t, db.Where("user_id = ?", userID).First(&u).Error)
	assert.Equal(t, 10000.0, u.Cash)

	var txs []models.Transaction
	require.NoError(t, db.Where("user_id = ? AND shares < 0", userID).Find(&txs).Error)
	var sold int64
	for _, tx := range txs {
		sold += -tx.Shares
	}
	assert.Equal(t, int64(10), sold)
}

func TestHistory_NewestFirst(t *testing.T) {
	svc, db := setupServiceTest(t, nil)
	userID := seedUser(t, db, 1000)

	old := models.Transaction{UserID: userID, Symbol: "AAPL", Shares: 2, Price: 100, CreatedAt: time.Now().Add(-time.Hour)}
	recent := models.Transaction{UserID: userID, Symbol: "MSFT", Shares: -1, Price: 200, CreatedAt: time.Now()}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	txs, err := svc.History(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "MSFT", txs[0].Symbol)
	assert.Equal(t, "AAPL", txs[1].Symbol)
}
