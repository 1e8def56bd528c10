package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"finance-ledger-go/internal/models"
	"finance-ledger-go/internal/money"
	"finance-ledger-go/internal/recurring"
	"finance-ledger-go/internal/revalidate"
)

type CreateTransactionInput struct {
	AccountID   string
	Type        string
	Amount      string
	Date        time.Time
	Category    string
	Description string
	ReceiptURL  string

	IsRecurring       bool
	RecurringInterval string
}

// BulkDeleteResult reports what a bulk delete removed and how each affected
// account balance moved.
type BulkDeleteResult struct {
	Deleted     int                        `json:"deleted"`
	Adjustments map[string]decimal.Decimal `json:"adjustments"`
}

func (in CreateTransactionInput) build(userID string) (*models.Transaction, error) {
	if in.AccountID == "" {
		return nil, invalid("account id is required")
	}
	txType, err := models.ParseTransactionType(in.Type)
	if err != nil {
		return nil, invalid("%v", err)
	}
	amount, err := money.Positive(in.Amount)
	if err != nil {
		return nil, invalid("amount: %v", err)
	}
	if in.Date.IsZero() {
		return nil, invalid("date is required")
	}

	t := &models.Transaction{
		UserID:      userID,
		AccountID:   in.AccountID,
		Type:        txType,
		Amount:      amount,
		Date:        in.Date.UTC(),
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		ReceiptURL:  in.ReceiptURL,
		Status:      models.TransactionStatusCompleted,
	}
	if !in.IsRecurring {
		return t, nil
	}

	interval, err := recurring.ParseInterval(in.RecurringInterval)
	if err != nil {
		return nil, invalid("recurring transactions need an interval: %v", err)
	}
	next, err := recurring.NextDate(in.Date, interval)
	if err != nil {
		return nil, invalid("%v", err)
	}
	next = next.UTC()
	t.IsRecurring = true
	t.RecurringInterval = &interval
	t.NextRecurringDate = &next
	return t, nil
}

// CreateTransaction inserts the posting and moves the account balance by
// +amount (INCOME) or -amount (EXPENSE). Both commit together or not at all.
func (s *Service) CreateTransaction(ctx context.Context, userID string, in CreateTransactionInput) (*models.Transaction, error) {
	t, err := in.build(userID)
	if err != nil {
		return nil, err
	}

	err = s.atomic(ctx, "ledger.CreateTransaction", func(tx *gorm.DB) error {
		acct, err := ownedAccount(tx, userID, t.AccountID)
		if err != nil {
			return err
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return adjustBalance(tx, acct.ID, money.Signed(t.Type, t.Amount))
	}, trace.WithAttributes(
		attribute.String("account.id", t.AccountID),
		attribute.String("transaction.type", string(t.Type)),
	))
	if err != nil {
		return nil, err
	}

	s.notifier.Invalidate(ctx, revalidate.DashboardPath, revalidate.AccountPath(t.AccountID))
	return t, nil
}

// BulkDeleteTransactions removes every listed transaction and reverses its
// effect with one aggregated increment per affected account. Every id must
// belong to the caller; a set that matches nothing returns ErrNoTransactions
// and leaves the store untouched.
func (s *Service) BulkDeleteTransactions(ctx context.Context, userID string, ids []string) (*BulkDeleteResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrNoTransactions
	}

	result := &BulkDeleteResult{Adjustments: map[string]decimal.Decimal{}}
	err := s.atomic(ctx, "ledger.BulkDeleteTransactions", func(tx *gorm.DB) error {
		var found []models.Transaction
		if err := tx.Where("id IN ?", ids).Find(&found).Error; err != nil {
			return err
		}
		owned := found[:0]
		for _, t := range found {
			if t.UserID == userID {
				owned = append(owned, t)
			}
		}
		if len(owned) == 0 {
			return ErrNoTransactions
		}
		if len(owned) != len(found) {
			return ErrUnauthorized
		}
		if len(owned) != len(ids) {
			return fmt.Errorf("%w: %d of %d transactions", ErrNotFound, len(ids)-len(owned), len(ids))
		}

		deltas := netReversals(owned)

		res := tx.Where("id IN ? AND user_id = ?", ids, userID).Delete(&models.Transaction{})
		if res.Error != nil {
			return res.Error
		}
		// A concurrent delete already reversed some of these rows.
		if res.RowsAffected != int64(len(owned)) {
			return fmt.Errorf("%w: expected to delete %d rows, deleted %d", ErrStore, len(owned), res.RowsAffected)
		}

		accountIDs := make([]string, 0, len(deltas))
		for id := range deltas {
			accountIDs = append(accountIDs, id)
		}
		// Fixed order keeps concurrent batches from locking accounts in opposite order.
		sort.Strings(accountIDs)
		for _, id := range accountIDs {
			if err := adjustBalance(tx, id, deltas[id]); err != nil {
				return err
			}
		}

		result.Deleted = len(owned)
		result.Adjustments = deltas
		return nil
	}, trace.WithAttributes(attribute.Int("transaction.count", len(ids))))
	if err != nil {
		return nil, err
	}

	paths := []string{revalidate.DashboardPath}
	for id := range result.Adjustments {
		paths = append(paths, revalidate.AccountPath(id))
	}
	s.notifier.Invalidate(ctx, paths...)
	return result, nil
}

// DeleteTransaction is the single-row case of BulkDeleteTransactions.
func (s *Service) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	_, err := s.BulkDeleteTransactions(ctx, userID, []string{transactionID})
	return err
}

// ListTransactions returns all of the user's transactions, most recent first.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc, created_at desc").
		Find(&out).Error
	return out, classify(err)
}

// ListTransactionsBetween returns the user's transactions dated in
// [from, to), most recent first.
func (s *Service) ListTransactionsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date < ?", userID, from.UTC(), to.UTC()).
		Order("date desc, created_at desc").
		Find(&out).Error
	return out, classify(err)
}

// netReversals groups transactions by account: INCOME contributes -amount,
// EXPENSE contributes +amount.
func netReversals(txns []models.Transaction) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, t := range txns {
		out[t.AccountID] = out[t.AccountID].Add(money.Reversal(t.Type, t.Amount))
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
