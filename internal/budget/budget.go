// Package budget compares an account's current-month spending with the
// user's single monthly budget and sends the threshold alert email.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finance-ledger-go/internal/email"
	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/models"
	"finance-ledger-go/internal/money"
)

var tracer = otel.Tracer("finance-ledger-go/budget")

// AccountGetter resolves an account owned by the caller.
type AccountGetter interface {
	GetAccount(ctx context.Context, userID, accountID string) (*models.Account, error)
}

type Service struct {
	db       *gorm.DB
	accounts AccountGetter
	mailer   email.Sender
	ratio    decimal.Decimal
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithAlertRatio sets the share of the budget that triggers an alert.
func WithAlertRatio(r float64) Option {
	return func(s *Service) {
		if r > 0 {
			s.ratio = decimal.NewFromFloat(r)
		}
	}
}

func NewService(db *gorm.DB, accounts AccountGetter, mailer email.Sender, opts ...Option) *Service {
	s := &Service{
		db:       db,
		accounts: accounts,
		mailer:   mailer,
		ratio:    decimal.RequireFromString("0.8"),
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Summary struct {
	AccountID            string           `json:"account_id"`
	BudgetAmount         *decimal.Decimal `json:"budget_amount"`
	CurrentMonthExpenses decimal.Decimal  `json:"current_month_expenses"`
	PeriodStart          time.Time        `json:"period_start"`
	PeriodEnd            time.Time        `json:"period_end"`
}

// MonthWindow returns [first instant of t's month, first instant of the next
// month) in loc.
func MonthWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// GetCurrentBudget pairs the user's budget with the account's EXPENSE total
// for the month containing now. BudgetAmount is nil when no budget was set.
func (s *Service) GetCurrentBudget(ctx context.Context, userID, accountID string) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "budget.GetCurrentBudget")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	acct, err := s.accounts.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	b, err := findBudget(db, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	start, end := MonthWindow(s.now(), s.loc)
	spent, err := monthExpenses(db, userID, acct.ID, start, end)
	if err != nil {
		return nil, storeErr(err)
	}

	sum := &Summary{
		AccountID:            acct.ID,
		CurrentMonthExpenses: spent,
		PeriodStart:          start,
		PeriodEnd:            end,
	}
	if b != nil {
		amt := b.Amount.Round(money.Scale)
		sum.BudgetAmount = &amt
	}
	return sum, nil
}

// UpdateBudget creates the user's budget or overwrites its amount.
func (s *Service) UpdateBudget(ctx context.Context, userID, amount string) (*models.Budget, error) {
	amt, err := money.Positive(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ledger.ErrValidation, err)
	}

	ctx, span := tracer.Start(ctx, "budget.UpdateBudget")
	defer span.End()

	var out models.Budget
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b := &models.Budget{UserID: userID, Amount: amt}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).Create(b).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Take(&out).Error
	})
	if err != nil {
		span.RecordError(err)
		log.Printf("budget.UpdateBudget aborted: %v", err)
		return nil, storeErr(err)
	}
	return &out, nil
}

type AlertResult struct {
	Sent           bool            `json:"sent"`
	PercentageUsed decimal.Decimal `json:"percentage_used"`
	Reason         string          `json:"reason,omitempty"`
}

// CheckAlert emails the user once per month when the account's spending
// reaches the alert ratio of the budget. last_alert_sent is claimed before
// the send and released again if the send fails.
func (s *Service) CheckAlert(ctx context.Context, userID, accountID string) (*AlertResult, error) {
	sum, err := s.GetCurrentBudget(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if sum.BudgetAmount == nil || !sum.BudgetAmount.IsPositive() {
		return &AlertResult{Reason: "no budget"}, nil
	}

	used := sum.CurrentMonthExpenses.Div(*sum.BudgetAmount)
	res := &AlertResult{PercentageUsed: used.Mul(decimal.NewFromInt(100)).Round(1)}
	if used.LessThan(s.ratio) {
		res.Reason = "below threshold"
		return res, nil
	}

	db := s.db.WithContext(ctx)
	b, err := findBudget(db, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if b == nil {
		res.Reason = "no budget"
		return res, nil
	}
	now := s.now()
	if b.LastAlertSent != nil && sameMonth(*b.LastAlertSent, now, s.loc) {
		res.Reason = "already sent this month"
		return res, nil
	}

	var user models.User
	if err := db.Where("id = ?", userID).Take(&user).Error; err != nil {
		return nil, storeErr(err)
	}
	acct, err := s.accounts.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	html, err := email.RenderBudgetAlert(email.BudgetAlert{
		Name:           user.Name,
		AccountName:    acct.Name,
		BudgetAmount:   sum.BudgetAmount.StringFixed(money.Scale),
		TotalExpenses:  sum.CurrentMonthExpenses.StringFixed(money.Scale),
		PercentageUsed: res.PercentageUsed.StringFixed(1),
		Remaining:      sum.BudgetAmount.Sub(sum.CurrentMonthExpenses).StringFixed(money.Scale),
	})
	if err != nil {
		return nil, err
	}
	// Claim the month first so concurrent checks cannot both send.
	stamp := now.UTC().Truncate(time.Microsecond)
	monthStart, _ := MonthWindow(now, s.loc)
	claim := db.Model(&models.Budget{}).
		Where("id = ? AND (last_alert_sent IS NULL OR last_alert_sent < ?)", b.ID, monthStart.UTC()).
		Update("last_alert_sent", stamp)
	if claim.Error != nil {
		return nil, storeErr(claim.Error)
	}
	if claim.RowsAffected != 1 {
		res.Reason = "already sent this month"
		return res, nil
	}

	err = s.mailer.Send(ctx, email.Message{
		To:      []string{user.Email},
		Subject: "Budget Alert for " + acct.Name,
		HTML:    html,
	})
	if err != nil {
		log.Printf("budget alert to %s failed: %v", user.ID, err)
		release := db.Model(&models.Budget{}).
			Where("id = ? AND last_alert_sent = ?", b.ID, stamp).
			Update("last_alert_sent", b.LastAlertSent)
		if release.Error != nil {
			log.Printf("budget alert claim for %s not released: %v", b.ID, release.Error)
		}
		return nil, err
	}
	res.Sent = true
	return res, nil
}

func findBudget(db *gorm.DB, userID string) (*models.Budget, error) {
	var b models.Budget
	err := db.Where("user_id = ?", userID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func monthExpenses(db *gorm.DB, userID, accountID string, start, end time.Time) (decimal.Decimal, error) {
	var spent decimal.Decimal
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND account_id = ? AND type = ?", userID, accountID, models.TransactionTypeExpense).
		Where("date >= ? AND date < ?", start.UTC(), end.UTC()).
		Row().Scan(&spent)
	return spent.Round(money.Scale), err
}

func sameMonth(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ledger.ErrStore, err)
}
