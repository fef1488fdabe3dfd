package portfolio

import (
	"context"
	"errors"
	"math"

	"papertrade-backend/internal/models"
	"papertrade-backend/internal/quotes"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the trade settlement engine: each Buy/Sell is one atomic state
// transition over the user's cash, holding and the transaction log.
type Service struct {
	DB     *gorm.DB
	Quoter quotes.Quoter
}

// Buy purchases shares of symbol at the current quoted price.
// Fails with ErrInvalidInput (bad symbol or shares < 1) or ErrInsufficientFunds
// (cash < price*shares; buying down to exactly zero cash is allowed). The
// holding upsert, cash decrement and transaction append happen in one DB
// transaction.
func (s *Service) Buy(ctx context.Context, userID uuid.UUID, symbol string, shares int64) (map[string]interface{}, error) {
	q, err := s.validate(ctx, symbol, shares)
	if err != nil {
		return nil, err
	}
	cost := round2(q.Price * float64(shares))

	var result map[string]interface{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New("User not found")
			}
			return err
		}

		if user.Cash < cost {
			return ErrInsufficientFunds
		}

		// Guarded debit: the predicate re-checks affordability under the row
		// lock, so two concurrent buys cannot both spend the same cash.
		res := tx.Model(&models.User{}).
			Where("user_id = ? AND cash >= ?", userID, cost).
			Update("cash", gorm.Expr("cash - ?", cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}

		res = tx.Model(&models.Holding{}).
			Where("user_id = ? AND symbol = ?", userID, q.Symbol).
			Update("shares", gorm.Expr("shares + ?", shares))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.Holding{UserID: userID, Symbol: q.Symbol, Shares: shares}).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&models.Transaction{
			UserID: userID,
			Symbol: q.Symbol,
			Shares: shares,
			Price:  q.Price,
		}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		result = map[string]interface{}{
			"symbol": q.Symbol,
			"shares": shares,
			"price":  q.Price,
			"total":  cost,
			"cash":   round2(user.Cash),
		}
		return nil
	})

	return result, err
}

// Sell disposes shares of symbol at the current quoted price.
// Fails with ErrInvalidInput (bad symbol or shares < 1) or ErrNoHolding (no
// position at all). Selling more than owned clamps to the owned quantity
// rather than failing; a position reduced to zero is deleted.
func (s *Service) Sell(ctx context.Context, userID uuid.UUID, symbol string, shares int64) (map[string]interface{}, error) {
	q, err := s.validate(ctx, symbol, shares)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holding models.Holding
		if err := tx.Where("user_id = ? AND symbol = ?", userID, q.Symbol).First(&holding).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNoHolding
			}
			return err
		}

		executed := shares
		if executed > holding.Shares {
			executed = holding.Shares
		}

		// Guarded decrement: rejects if a concurrent sell already took the
		// shares, so two sells can never dispose of the same position twice.
		res := tx.Model(&models.Holding{}).
			Where("holding_id = ? AND shares >= ?", holding.HoldingID, executed).
			Update("shares", gorm.Expr("shares - ?", executed))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoHolding
		}

		// A position reduced to zero is deleted, not retained
		if err := tx.Where("holding_id = ? AND shares <= 0", holding.HoldingID).
			Delete(&models.Holding{}).Error; err != nil {
			return err
		}

		proceeds := round2(q.Price * float64(executed))

		res = tx.Model(&models.User{}).
			Where("user_id = ?", userID).
			Update("cash", gorm.Expr("cash + ?", proceeds))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("User not found")
		}

		if err := tx.Create(&models.Transaction{
			UserID: userID,
			Symbol: q.Symbol,
			Shares: -executed,
			Price:  q.Price,
		}).Error; err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		result = map[string]interface{}{
			"symbol": q.Symbol,
			"shares": executed,
			"price":  q.Price,
			"total":  proceeds,
			"cash":   round2(user.Cash),
		}
		return nil
	})

	return result, err
}

// Portfolio returns the user's positions priced live, plus cash and net worth.
// One quote per distinct held symbol; any lookup failure aborts the whole
// aggregation rather than silently omitting a holding.
func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (map[string]interface{}, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New("User not found")
		}
		return nil, err
	}

	var holdings []models.Holding
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol ASC").
		Find(&holdings).Error; err != nil {
		return nil, err
	}

	stocks := make([]map[string]interface{}, 0, len(holdings))
	stockValue := 0.0
	for _, h := range holdings {
		q, err := s.Quoter.Lookup(ctx, h.Symbol)
		if err != nil {
			log.Warn().Str("symbol", h.Symbol).Err(err).Msg("portfolio quote lookup failed")
			return nil, ErrQuoteUnavailable
		}
		value := round2(q.Price * float64(h.Shares))
		stockValue += value
		stocks = append(stocks, map[string]interface{}{
			"symbol": h.Symbol,
			"name":   q.Name,
			"shares": h.Shares,
			"price":  q.Price,
			"value":  value,
		})
	}

	return map[string]interface{}{
		"stocks":   stocks,
		"cash":     user.Cash,
		"networth": round2(user.Cash + stockValue),
	}, nil
}

// History returns the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// validate applies the shared buy/sell input checks: shares must be a positive
// integer and symbol must resolve to a live quote. An unknown symbol is bad
// input, not a transient failure; the lookup is never retried.
func (s *Service) validate(ctx context.Context, symbol string, shares int64) (*quotes.Quote, error) {
	if shares < 1 {
		return nil, ErrInvalidInput
	}
	q, err := s.Quoter.Lookup(ctx, symbol)
	if err != nil {
		if err == quotes.ErrNotFound {
			return nil, ErrInvalidInput
		}
		log.Warn().Str("symbol", symbol).Err(err).Msg("quote lookup failed")
		return nil, ErrQuoteUnavailable
	}
	return q, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
