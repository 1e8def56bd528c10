package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "INCOME"
	TransactionTypeExpense TransactionType = "EXPENSE"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TransactionTypeIncome, TransactionTypeExpense:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

type RecurringInterval string

const (
	IntervalDaily   RecurringInterval = "DAILY"
	IntervalWeekly  RecurringInterval = "WEEKLY"
	IntervalMonthly RecurringInterval = "MONTHLY"
	IntervalYearly  RecurringInterval = "YEARLY"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

type Transaction struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string          `gorm:"type:uuid;index;not null" json:"user_id"`
	AccountID   string          `gorm:"type:uuid;index;not null" json:"account_id"`
	Type        TransactionType `gorm:"size:16;not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"` // magnitude, sign comes from Type
	Date        time.Time       `gorm:"index;not null" json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	ReceiptURL  string          `json:"receipt_url,omitempty"`

	IsRecurring       bool               `gorm:"not null;default:false" json:"is_recurring"`
	RecurringInterval *RecurringInterval `gorm:"size:16" json:"recurring_interval,omitempty"`
	NextRecurringDate *time.Time         `json:"next_recurring_date,omitempty"`
	LastProcessed     *time.Time         `json:"last_processed,omitempty"`

	Status    TransactionStatus `gorm:"size:16;default:COMPLETED" json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
