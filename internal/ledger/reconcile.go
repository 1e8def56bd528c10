package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/models"
	"finance-ledger-go/internal/money"
)

type Reconciliation struct {
	AccountID      string          `json:"account_id"`
	CachedBalance  decimal.Decimal `json:"cached_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Income         decimal.Decimal `json:"income"`
	Expense        decimal.Decimal `json:"expense"`
	Computed       decimal.Decimal `json:"computed_balance"`
	Drift          decimal.Decimal `json:"drift"`
	Consistent     bool            `json:"consistent"`
}

// Reconcile recomputes the balance from the transaction history and compares
// it to the cached value. It never writes.
func (s *Service) Reconcile(ctx context.Context, userID, accountID string) (*Reconciliation, error) {
	db := s.db.WithContext(ctx)
	acct, err := ownedAccount(db, userID, accountID)
	if err != nil {
		return nil, classify(err)
	}

	var income, expense decimal.Decimal
	err = db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0), "+
			"COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0)",
			models.TransactionTypeIncome, models.TransactionTypeExpense).
		Where("account_id = ?", acct.ID).
		Row().Scan(&income, &expense)
	if err != nil {
		return nil, classify(err)
	}

	r := &Reconciliation{
		AccountID:      acct.ID,
		CachedBalance:  acct.Balance.Round(money.Scale),
		OpeningBalance: acct.OpeningBalance.Round(money.Scale),
		Income:         income.Round(money.Scale),
		Expense:        expense.Round(money.Scale),
	}
	r.Computed = r.OpeningBalance.Add(r.Income).Sub(r.Expense)
	r.Drift = r.CachedBalance.Sub(r.Computed)
	r.Consistent = r.Drift.IsZero()
	return r, nil
}
