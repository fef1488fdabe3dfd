package quotes

import (
	"context"

	"papertrade-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Quoter abstracts quote lookup (production Client or test doubles).
type Quoter interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

type Handlers struct {
	Quoter Quoter
}

// GetQuote GET /api/v1/quotes/:symbol
func (h *Handlers) GetQuote(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	if symbol == "" {
		return response.Error(c, "Symbol is required", 400, nil)
	}

	q, err := h.Quoter.Lookup(c.Context(), symbol)
	if err != nil {
		if err == ErrNotFound {
			return response.Error(c, "Invalid stock symbol", 400, nil)
		}
		return response.Error(c, "Quote feed unavailable", 502, nil)
	}
	return response.Success(c, "Quote fetched", fiber.Map{
		"symbol": q.Symbol,
		"name":   q.Name,
		"price":  q.Price,
	}, nil)
}
