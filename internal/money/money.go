// Package money is the single conversion point between user input and the
// decimal amounts persisted by the ledger. Amounts are parsed once here and
// stay decimal.Decimal everywhere after.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/models"
)

// Scale is the number of fractional digits kept for currency amounts.
const Scale = 2

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNonPositive   = errors.New("amount must be greater than zero")
	maxAmount        = decimal.New(1, 16)
)

// Parse converts a user supplied number ("12.5", " 1e3 ") into a rounded
// decimal. Empty, non numeric or absurdly large inputs are rejected.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return bound(d)
}

func bound(d decimal.Decimal) (decimal.Decimal, error) {
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	return d.Round(Scale), nil
}

// Positive parses s and requires a strictly positive magnitude.
func Positive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositive
	}
	return d, nil
}

// Signed returns the effect a posting has on its account balance.
func Signed(t models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t == models.TransactionTypeExpense {
		return amount.Neg()
	}
	return amount
}

// Reversal is the delta that undoes a posting, used when it is deleted.
func Reversal(t models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	return Signed(t, amount).Neg()
}
