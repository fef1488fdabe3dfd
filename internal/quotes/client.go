package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrNotFound means the feed has no quote for the symbol. Callers treat it as
// bad input, not as a transient failure; lookups are never retried.
var ErrNotFound = errors.New("Unknown symbol")

// Quote is an ephemeral price snapshot. Never persisted; fetched fresh from
// the feed (or the short-TTL cache) on every request that needs one.
type Quote struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

const cachePrefix = "quote:"

// Client looks up quotes from an IEX-style HTTP feed
// (GET {base}/stock/{symbol}/quote?token=...).
// With Rdb set, responses are cached in Redis for CacheTTL; the settlement
// engine is unaware of the cache.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Rdb        *redis.Client
	CacheTTL   time.Duration
}

// NewClient builds a Client with a 10s request timeout.
func NewClient(baseURL, token string, rdb *redis.Client, cacheTTL time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Rdb:        rdb,
		CacheTTL:   cacheTTL,
	}
}

// Lookup fetches the current quote for symbol. Returns ErrNotFound for symbols
// the feed does not know. A single attempt; feed failures surface to the caller.
func (c *Client) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNotFound
	}

	if q := c.cached(ctx, symbol); q != nil {
		return q, nil
	}

	url := fmt.Sprintf("%s/stock/%s/quote", c.BaseURL, symbol)
	if c.Token != "" {
		url += "?token=" + c.Token
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote feed returned status %d", resp.StatusCode)
	}

	var data struct {
		Symbol      string  `json:"symbol"`
		CompanyName string  `json:"companyName"`
		LatestPrice float64 `json:"latestPrice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if data.LatestPrice <= 0 {
		return nil, fmt.Errorf("invalid price: %f", data.LatestPrice)
	}

	q := &Quote{Symbol: symbol, Name: data.CompanyName, Price: data.LatestPrice}
	c.store(ctx, q)
	return q, nil
}

func (c *Client) cached(ctx context.Context, symbol string) *Quote {
	if c.Rdb == nil || c.CacheTTL <= 0 {
		return nil
	}
	b, err := c.Rdb.Get(ctx, cachePrefix+symbol).Bytes()
	if err != nil {
		return nil
	}
	var q Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return nil
	}
	return &q
}

func (c *Client) store(ctx context.Context, q *Quote) {
	if c.Rdb == nil || c.CacheTTL <= 0 {
		return
	}
	b, _ := json.Marshal(q)
	if err := c.Rdb.Set(ctx, cachePrefix+q.Symbol, b, c.CacheTTL).Err(); err != nil {
		log.Warn().Str("symbol", q.Symbol).Err(err).Msg("quote cache write failed")
	}
}
