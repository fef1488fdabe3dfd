package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Holding is a user's current position in one ticker symbol.
// At most one row per (user_id, symbol); a position sold down to zero is
// deleted, never retained at quantity 0.
type Holding struct {
	HoldingID uuid.UUID `gorm:"column:holding_id;type:uuid;primaryKey" json:"holding_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_holdings_user_symbol" json:"user_id"`
	Symbol    string    `gorm:"column:symbol;not null;uniqueIndex:idx_holdings_user_symbol" json:"symbol"`
	Shares    int64     `gorm:"column:shares;not null" json:"shares"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Holding) TableName() string {
	return "Holdings"
}

func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.HoldingID == uuid.Nil {
		h.HoldingID = uuid.New()
	}
	return nil
}
