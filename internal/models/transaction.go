package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction is one executed trade in the append-only audit log.
// Shares is signed: positive for a buy, negative for a sell. Rows are never
// updated or deleted after creation.
type Transaction struct {
	TxID      uuid.UUID `gorm:"column:tx_id;type:uuid;primaryKey" json:"tx_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Symbol    string    `gorm:"column:symbol;not null" json:"symbol"`
	Shares    int64     `gorm:"column:shares;not null" json:"shares"`
	Price     float64   `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Transaction) TableName() string {
	return "Transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxID == uuid.Nil {
		t.TxID = uuid.New()
	}
	return nil
}
