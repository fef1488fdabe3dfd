package portfolio

import (
	"papertrade-backend/internal/middleware"
	"papertrade-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// TradeRequest body for buy/sell.
type TradeRequest struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// Buy POST /api/v1/portfolio/buy
func (h *Handlers) Buy(c *fiber.Ctx) error {
	userID, ok := getActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var body TradeRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, ErrInvalidInput.Error(), 400, nil)
	}
	if body.Symbol == "" || body.Shares < 1 {
		return response.Error(c, ErrInvalidInput.Error(), 400, nil)
	}

	result, err := h.Service.Buy(c.Context(), userID, body.Symbol, body.Shares)
	if err != nil {
		return tradeError(c, err)
	}
	return response.Success(c, "Purchase complete", result, nil)
}

// Sell POST /api/v1/portfolio/sell
func (h *Handlers) Sell(c *fiber.Ctx) error {
	userID, ok := getActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var body TradeRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, ErrInvalidInput.Error(), 400, nil)
	}
	if body.Symbol == "" || body.Shares < 1 {
		return response.Error(c, ErrInvalidInput.Error(), 400, nil)
	}

	result, err := h.Service.Sell(c.Context(), userID, body.Symbol, body.Shares)
	if err != nil {
		return tradeError(c, err)
	}
	return response.Success(c, "Sale complete", result, nil)
}

// GetPortfolio GET /api/v1/portfolio — positions priced live, cash and net worth.
func (h *Handlers) GetPortfolio(c *fiber.Ctx) error {
	userID, ok := getActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	result, err := h.Service.Portfolio(c.Context(), userID)
	if err != nil {
		return tradeError(c, err)
	}
	return response.Success(c, "Portfolio fetched", result, nil)
}

// GetHistory GET /api/v1/portfolio/history — transaction log, newest first.
func (h *Handlers) GetHistory(c *fiber.Ctx) error {
	userID, ok := getActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	txs, err := h.Service.History(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "History fetched", fiber.Map{"transactions": txs}, nil)
}

func tradeError(c *fiber.Ctx, err error) error {
	switch err {
	case ErrInvalidInput, ErrInsufficientFunds:
		return response.Error(c, err.Error(), 400, nil)
	case ErrNoHolding:
		return response.Error(c, err.Error(), 404, nil)
	case ErrQuoteUnavailable:
		return response.Error(c, err.Error(), 502, nil)
	}
	if err.Error() == "User not found" {
		return response.Error(c, err.Error(), 404, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}

// getActor resolves the authenticated user id from the session. The service
// never reads ambient identity; it is always handed the id explicitly.
func getActor(c *fiber.Ctx) (uuid.UUID, bool) {
	u := middleware.GetUser(c)
	m, ok := u.(map[string]interface{})
	if !ok {
		return uuid.Nil, false
	}
	idStr, _ := m["user_id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
