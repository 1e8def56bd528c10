package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountType string

const (
	AccountTypeCurrent AccountType = "CURRENT"
	AccountTypeSavings AccountType = "SAVINGS"
)

func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToUpper(strings.TrimSpace(s))); t {
	case AccountTypeCurrent, AccountTypeSavings:
		return t, nil
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

type Account struct {
	ID             string              `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string              `gorm:"type:uuid;index;not null" json:"user_id"`
	Name           string              `gorm:"not null" json:"name"`
	Type           AccountType         `gorm:"size:16;not null" json:"type"`
	Status         string              `gorm:"size:32;default:ACTIVE" json:"status"`
	Currency       string              `gorm:"size:8;default:INR" json:"currency"`
	Balance        decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	OpeningBalance decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0" json:"opening_balance"`
	InterestRate   decimal.NullDecimal `gorm:"type:decimal(6,3)" json:"interest_rate"`
	IsDefault      bool                `gorm:"not null;default:false" json:"is_default"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`

	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`

	// TransactionCount is filled by list queries, it is not a column.
	TransactionCount int64 `gorm:"-" json:"transaction_count"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
