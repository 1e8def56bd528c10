package ledger

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"finance-ledger-go/internal/models"
	"finance-ledger-go/internal/money"
	"finance-ledger-go/internal/revalidate"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

type CreateAccountInput struct {
	Name      string
	Type      string
	Balance   string // opening balance as entered
	Currency  string
	IsDefault bool
}

// AccountSettings enumerates the only fields an account update may touch.
// Nil fields are left unchanged.
type AccountSettings struct {
	Name         *string `json:"name"`
	Type         *string `json:"type"`
	Status       *string `json:"status"`
	Currency     *string `json:"currency"`
	InterestRate *string `json:"interest_rate"`
}

func (s AccountSettings) updates() (map[string]any, error) {
	out := map[string]any{}
	if s.Name != nil {
		name := strings.TrimSpace(*s.Name)
		if name == "" {
			return nil, invalid("name cannot be empty")
		}
		out["name"] = name
	}
	if s.Type != nil {
		t, err := models.ParseAccountType(*s.Type)
		if err != nil {
			return nil, invalid("%v", err)
		}
		out["type"] = t
	}
	if s.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*s.Status))
		if status == "" {
			return nil, invalid("status cannot be empty")
		}
		out["status"] = status
	}
	if s.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*s.Currency))
		if !currencyCode.MatchString(cur) {
			return nil, invalid("currency must be a 3 letter code")
		}
		out["currency"] = cur
	}
	if s.InterestRate != nil {
		rate, err := money.Parse(*s.InterestRate)
		if err != nil || rate.IsNegative() {
			return nil, invalid("interest rate must be a non-negative number")
		}
		out["interest_rate"] = rate
	}
	if len(out) == 0 {
		return nil, invalid("no settings to update")
	}
	return out, nil
}

// CreateAccount inserts a new account. A user's first account is always the
// default one; asking for a default account clears the previous default in
// the same unit.
func (s *Service) CreateAccount(ctx context.Context, userID string, in CreateAccountInput) (*models.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	acctType, err := models.ParseAccountType(in.Type)
	if err != nil {
		return nil, invalid("%v", err)
	}
	opening, err := money.Parse(in.Balance)
	if err != nil {
		return nil, invalid("invalid balance amount")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "INR"
	}
	if !currencyCode.MatchString(currency) {
		return nil, invalid("currency must be a 3 letter code")
	}

	acct := &models.Account{
		UserID:         userID,
		Name:           name,
		Type:           acctType,
		Status:         "ACTIVE",
		Currency:       currency,
		Balance:        opening,
		OpeningBalance: opening,
	}

	err = s.atomic(ctx, "ledger.CreateAccount", func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Account{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
			return err
		}
		acct.IsDefault = existing == 0 || in.IsDefault
		if acct.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		return tx.Create(acct).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Invalidate(ctx, revalidate.DashboardPath)
	return acct, nil
}

// ListAccounts returns the user's accounts, newest first, with their
// transaction counts.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	db := s.db.WithContext(ctx)

	var accounts []models.Account
	if err := db.Where("user_id = ?", userID).Order("created_at desc").Find(&accounts).Error; err != nil {
		return nil, classify(err)
	}

	var counts []struct {
		AccountID string
		N         int64
	}
	err := db.Model(&models.Transaction{}).
		Select("account_id, count(*) as n").
		Where("user_id = ?", userID).
		Group("account_id").
		Scan(&counts).Error
	if err != nil {
		return nil, classify(err)
	}
	byAccount := make(map[string]int64, len(counts))
	for _, c := range counts {
		byAccount[c.AccountID] = c.N
	}
	for i := range accounts {
		accounts[i].TransactionCount = byAccount[accounts[i].ID]
	}
	return accounts, nil
}

func (s *Service) GetAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	acct, err := ownedAccount(s.db.WithContext(ctx), userID, accountID)
	return acct, classify(err)
}

// GetAccountWithTransactions loads the account and its transactions, most
// recent first.
func (s *Service) GetAccountWithTransactions(ctx context.Context, userID, accountID string) (*models.Account, error) {
	db := s.db.WithContext(ctx)
	acct, err := ownedAccount(db, userID, accountID)
	if err != nil {
		return nil, classify(err)
	}
	if err := db.Where("account_id = ?", acct.ID).Order("date desc, created_at desc").Find(&acct.Transactions).Error; err != nil {
		return nil, classify(err)
	}
	acct.TransactionCount = int64(len(acct.Transactions))
	return acct, nil
}

func (s *Service) UpdateAccountSettings(ctx context.Context, userID, accountID string, settings AccountSettings) (*models.Account, error) {
	updates, err := settings.updates()
	if err != nil {
		return nil, err
	}

	var acct *models.Account
	err = s.atomic(ctx, "ledger.UpdateAccountSettings", func(tx *gorm.DB) error {
		var err error
		if acct, err = ownedAccount(tx, userID, accountID); err != nil {
			return err
		}
		if err := tx.Model(acct).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", acct.ID).Take(acct).Error
	}, trace.WithAttributes(attribute.String("account.id", accountID)))
	if err != nil {
		return nil, err
	}

	s.notifier.Invalidate(ctx, revalidate.DashboardPath, revalidate.AccountPath(accountID))
	return acct, nil
}

// SetDefaultAccount clears the flag on every account of the user and sets it
// on accountID, inside one unit so readers never see zero or two defaults.
func (s *Service) SetDefaultAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	var acct *models.Account
	err := s.atomic(ctx, "ledger.SetDefaultAccount", func(tx *gorm.DB) error {
		var err error
		if acct, err = ownedAccount(tx, userID, accountID); err != nil {
			return err
		}
		if err := clearDefault(tx, userID); err != nil {
			return err
		}
		if err := tx.Model(acct).Update("is_default", true).Error; err != nil {
			return err
		}
		acct.IsDefault = true
		return nil
	}, trace.WithAttributes(attribute.String("account.id", accountID)))
	if err != nil {
		return nil, err
	}

	s.notifier.Invalidate(ctx, revalidate.DashboardPath)
	return acct, nil
}

// DeleteAccount removes the account together with its transactions. When the
// default account goes, the newest remaining account inherits the flag.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID string) error {
	err := s.atomic(ctx, "ledger.DeleteAccount", func(tx *gorm.DB) error {
		acct, err := ownedAccount(tx, userID, accountID)
		if err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", acct.ID).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(acct).Error; err != nil {
			return err
		}
		if !acct.IsDefault {
			return nil
		}

		var next models.Account
		err = tx.Where("user_id = ?", userID).Order("created_at desc").Limit(1).Find(&next).Error
		if err != nil || next.ID == "" {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	}, trace.WithAttributes(attribute.String("account.id", accountID)))
	if err != nil {
		return err
	}

	s.notifier.Invalidate(ctx, revalidate.DashboardPath, revalidate.AccountPath(accountID))
	return nil
}

func clearDefault(tx *gorm.DB, userID string) error {
	return tx.Model(&models.Account{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
