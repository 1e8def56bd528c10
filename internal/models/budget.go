package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Budget is a single monthly ceiling per user, not scoped to an account.
type Budget struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string          `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	LastAlertSent *time.Time      `json:"last_alert_sent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (b *Budget) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{&User{}, &Account{}, &Transaction{}, &Budget{}}
}
