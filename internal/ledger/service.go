// Package ledger keeps every account balance equal to its opening balance
// plus the signed sum of its transactions. Each mutation that touches a
// balance runs as one gorm transaction together with the rows it implies,
// and balances only ever move by relative increments evaluated in SQL.
package ledger

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"finance-ledger-go/internal/models"
	"finance-ledger-go/internal/revalidate"
)

var tracer = otel.Tracer("finance-ledger-go/ledger")

type Service struct {
	db       *gorm.DB
	notifier revalidate.Notifier
}

func NewService(db *gorm.DB, notifier revalidate.Notifier) *Service {
	if notifier == nil {
		notifier = revalidate.Nop{}
	}
	return &Service{db: db, notifier: notifier}
}

// atomic runs fn inside a single database transaction and traces it.
func (s *Service) atomic(ctx context.Context, name string, fn func(tx *gorm.DB) error, opts ...trace.SpanStartOption) error {
	ctx, span := tracer.Start(ctx, name, opts...)
	defer span.End()

	err := s.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("%s aborted: %v", name, err)
	}
	return classify(err)
}

// ownedAccount loads accountID and fails closed when it belongs to someone else.
func ownedAccount(tx *gorm.DB, userID, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, invalid("account id is required")
	}
	var acct models.Account
	if err := tx.Where("id = ?", accountID).Take(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if acct.UserID != userID {
		return nil, ErrUnauthorized
	}
	return &acct, nil
}

// adjustBalance applies delta relative to the stored value, so concurrent
// writers serialize on the row instead of overwriting each other.
func adjustBalance(tx *gorm.DB, accountID string, delta decimal.Decimal) error {
	res := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrNotFound
	}
	return nil
}
