package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-ledger-go/internal/database/dbtest"
	"finance-ledger-go/internal/email"
	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/models"
)

type fakeMailer struct {
	SendFunc func(ctx context.Context, msg email.Message) error

	mu   sync.Mutex
	sent []email.Message
}

func (m *fakeMailer) Send(ctx context.Context, msg email.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

type fixture struct {
	db     *gorm.DB
	ledger *ledger.Service
	svc    *Service
	mailer *fakeMailer
	user   *models.User
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{
		db:     db,
		ledger: ledger.NewService(db, nil),
		mailer: &fakeMailer{},
		user:   dbtest.User(t, db, "user_budget"),
		now:    time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(db, f.ledger, f.mailer, WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) account(t *testing.T) *models.Account {
	t.Helper()
	acct, err := f.ledger.CreateAccount(context.Background(), f.user.ID, ledger.CreateAccountInput{
		Name: "Main", Type: "CURRENT", Balance: "1000",
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return acct
}

func (f *fixture) expense(t *testing.T, accountID, amount string, at time.Time) {
	t.Helper()
	_, err := f.ledger.CreateTransaction(context.Background(), f.user.ID, ledger.CreateTransactionInput{
		AccountID: accountID, Type: "EXPENSE", Amount: amount, Date: at,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
}

func TestMonthWindow(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	tests := []struct {
		name      string
		at        time.Time
		loc       *time.Location
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"mid month", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), time.UTC,
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"december rolls the year", time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), time.UTC,
			time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"local month differs from utc", time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC), kolkata,
			time.Date(2024, 3, 1, 0, 0, 0, 0, kolkata), time.Date(2024, 4, 1, 0, 0, 0, 0, kolkata)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := MonthWindow(tt.at, tt.loc)
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("MonthWindow() = [%s, %s), want [%s, %s)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestGetCurrentBudgetWithoutBudget(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t)

	sum, err := f.svc.GetCurrentBudget(context.Background(), f.user.ID, acct.ID)
	if err != nil {
		t.Fatalf("GetCurrentBudget() error = %v", err)
	}
	if sum.BudgetAmount != nil {
		t.Errorf("BudgetAmount = %s, want nil", sum.BudgetAmount)
	}
	if !sum.CurrentMonthExpenses.IsZero() {
		t.Errorf("CurrentMonthExpenses = %s, want 0", sum.CurrentMonthExpenses)
	}
}

func TestGetCurrentBudgetMonthBoundary(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t)
	other, err := f.ledger.CreateAccount(context.Background(), f.user.ID, ledger.CreateAccountInput{
		Name: "Other", Type: "SAVINGS", Balance: "0",
	})
	if err != nil {
		t.Fatal(err)
	}

	f.expense(t, acct.ID, "40", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	f.expense(t, acct.ID, "2.5", time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC))
	f.expense(t, acct.ID, "1000", time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC))
	f.expense(t, acct.ID, "1000", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	f.expense(t, other.ID, "77", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	if _, err := f.ledger.CreateTransaction(context.Background(), f.user.ID, ledger.CreateTransactionInput{
		AccountID: acct.ID, Type: "INCOME", Amount: "500", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	sum, err := f.svc.GetCurrentBudget(context.Background(), f.user.ID, acct.ID)
	if err != nil {
		t.Fatalf("GetCurrentBudget() error = %v", err)
	}
	if want := decimal.RequireFromString("42.5"); !sum.CurrentMonthExpenses.Equal(want) {
		t.Errorf("CurrentMonthExpenses = %s, want %s", sum.CurrentMonthExpenses, want)
	}
}

func TestGetCurrentBudgetForeignAccount(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t)
	intruder := dbtest.User(t, f.db, "user_intruder")

	_, err := f.svc.GetCurrentBudget(context.Background(), intruder.ID, acct.ID)
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestUpdateBudgetUpserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.UpdateBudget(ctx, f.user.ID, "1000")
	if err != nil {
		t.Fatalf("UpdateBudget() error = %v", err)
	}
	second, err := f.svc.UpdateBudget(ctx, f.user.ID, "250.50")
	if err != nil {
		t.Fatalf("UpdateBudget() second error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("budget id changed: %s -> %s", first.ID, second.ID)
	}
	if !second.Amount.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("Amount = %s, want 250.5", second.Amount)
	}

	var n int64
	f.db.Model(&models.Budget{}).Where("user_id = ?", f.user.ID).Count(&n)
	if n != 1 {
		t.Errorf("budget rows = %d, want 1", n)
	}

	for _, bad := range []string{"", "abc", "0", "-5"} {
		if _, err := f.svc.UpdateBudget(ctx, f.user.ID, bad); !errors.Is(err, ledger.ErrValidation) {
			t.Errorf("UpdateBudget(%q) error = %v, want ErrValidation", bad, err)
		}
	}
}

func TestCheckAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t)
	if _, err := f.svc.UpdateBudget(ctx, f.user.ID, "100"); err != nil {
		t.Fatal(err)
	}

	f.expense(t, acct.ID, "50", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	res, err := f.svc.CheckAlert(ctx, f.user.ID, acct.ID)
	if err != nil {
		t.Fatalf("CheckAlert() error = %v", err)
	}
	if res.Sent || len(f.mailer.sent) != 0 {
		t.Fatalf("alert sent below threshold: %+v", res)
	}

	f.expense(t, acct.ID, "30", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	res, err = f.svc.CheckAlert(ctx, f.user.ID, acct.ID)
	if err != nil {
		t.Fatalf("CheckAlert() error = %v", err)
	}
	if !res.Sent || len(f.mailer.sent) != 1 {
		t.Fatalf("alert not sent at 80%%: %+v", res)
	}
	if msg := f.mailer.sent[0]; msg.To[0] != f.user.Email || msg.Subject != "Budget Alert for Main" {
		t.Errorf("message = %+v", msg)
	}
	if !res.PercentageUsed.Equal(decimal.NewFromInt(80)) {
		t.Errorf("PercentageUsed = %s, want 80", res.PercentageUsed)
	}

	res, err = f.svc.CheckAlert(ctx, f.user.ID, acct.ID)
	if err != nil || res.Sent {
		t.Fatalf("second alert in same month: %+v, %v", res, err)
	}

	f.now = time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	f.expense(t, acct.ID, "90", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	res, err = f.svc.CheckAlert(ctx, f.user.ID, acct.ID)
	if err != nil || !res.Sent {
		t.Fatalf("alert in new month: %+v, %v", res, err)
	}
	if len(f.mailer.sent) != 2 {
		t.Errorf("sent = %d, want 2", len(f.mailer.sent))
	}
}

func TestCheckAlertSendFailureLeavesStampUnset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t)
	if _, err := f.svc.UpdateBudget(ctx, f.user.ID, "10"); err != nil {
		t.Fatal(err)
	}
	f.expense(t, acct.ID, "9", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))

	f.mailer.SendFunc = func(context.Context, email.Message) error { return errors.New("smtp down") }
	if _, err := f.svc.CheckAlert(ctx, f.user.ID, acct.ID); err == nil {
		t.Fatal("CheckAlert() error = nil, want send failure")
	}

	var b models.Budget
	if err := f.db.Where("user_id = ?", f.user.ID).Take(&b).Error; err != nil {
		t.Fatal(err)
	}
	if b.LastAlertSent != nil {
		t.Errorf("LastAlertSent = %v, want nil after failed send", b.LastAlertSent)
	}

	f.mailer.SendFunc = nil
	res, err := f.svc.CheckAlert(ctx, f.user.ID, acct.ID)
	if err != nil || !res.Sent {
		t.Fatalf("retry after failed send: %+v, %v", res, err)
	}
}

func TestCheckAlertConcurrentSendsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t)
	if _, err := f.svc.UpdateBudget(ctx, f.user.ID, "100"); err != nil {
		t.Fatal(err)
	}
	f.expense(t, acct.ID, "95", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CheckAlert(ctx, f.user.ID, acct.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("CheckAlert() error = %v", err)
	}

	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	if len(f.mailer.sent) != 1 {
		t.Errorf("sent = %d, want exactly 1", len(f.mailer.sent))
	}
}

func TestCheckAlertStaleStampFromPreviousMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t)
	b, err := f.svc.UpdateBudget(ctx, f.user.ID, "100")
	if err != nil {
		t.Fatal(err)
	}
	prev := time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)
	if err := f.db.Model(&models.Budget{}).Where("id = ?", b.ID).Update("last_alert_sent", prev).Error; err != nil {
		t.Fatal(err)
	}
	f.expense(t, acct.ID, "85", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))

	res, err := f.svc.CheckAlert(ctx, f.user.ID, acct.ID)
	if err != nil || !res.Sent {
		t.Fatalf("CheckAlert() = %+v, %v, want sent", res, err)
	}
}
