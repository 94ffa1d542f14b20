// Package bankaccount opens and verifies customer bank accounts.
package bankaccount

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/kyc"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const numberAttempts = 5

// Config holds account limits.
type Config struct {
	MaxAccounts int
}

// Service implements bank account creation and activation.
type Service struct {
	db         *gorm.DB
	dispatcher notify.Dispatcher
	numbers    NumberGenerator
	cfg        Config
	now        func() time.Time
}

// NewService constructs a Service. MaxAccounts defaults to 3.
func NewService(conn *gorm.DB, dispatcher notify.Dispatcher, numbers NumberGenerator, cfg Config, now func() time.Time) *Service {
	if cfg.MaxAccounts <= 0 {
		cfg.MaxAccounts = 3
	}
	if now == nil {
		now = time.Now
	}
	return &Service{db: conn, dispatcher: dispatcher, numbers: numbers, cfg: cfg, now: now}
}

// CreateInput is the validated payload for a new account.
type CreateInput struct {
	AccountType  string
	Currency     string
	AccountName  string
	IsPrimary    bool
	Balance      decimal.Decimal
	InterestRate decimal.Decimal
}

// Create opens a pending account for user once KYC is complete. The first
// account of a user is always primary.
func (s *Service) Create(ctx context.Context, user *models.User, in CreateInput) (*models.BankAccount, error) {
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}
	if in.Balance.IsNegative() || in.InterestRate.IsNegative() {
		return nil, apperr.New(apperr.KindValidation, "invalid_amount", "Balance and interest rate cannot be negative", "")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if _, errPrefix := s.numbers.Prefix(currency); errPrefix != nil {
		return nil, errPrefix
	}

	account := &models.BankAccount{
		UserID:        user.ID,
		AccountType:   in.AccountType,
		Currency:      currency,
		AccountStatus: models.BankAccountStatusPending,
		AccountName:   strings.TrimSpace(in.AccountName),
		Balance:       in.Balance,
		InterestRate:  in.InterestRate,
		IsPrimary:     in.IsPrimary,
	}
	var identification string
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLock := db.LockUser(tx, db.LockNamespaceBankAccount, user.ID); errLock != nil {
			return errLock
		}
		complete, errKYC := kyc.Complete(tx, user.ID)
		if errKYC != nil {
			return errKYC
		}
		if !complete {
			return apperr.ErrKYCIncomplete
		}

		var existing []models.BankAccount
		if errFind := tx.Select("id", "is_primary").Where("user_id = ?", user.ID).Find(&existing).Error; errFind != nil {
			return errFind
		}
		if len(existing) >= s.cfg.MaxAccounts {
			return apperr.ErrMaxAccounts
		}
		if account.IsPrimary {
			for _, other := range existing {
				if other.IsPrimary {
					return apperr.ErrPrimaryAccountExists
				}
			}
		} else if len(existing) == 0 {
			account.IsPrimary = true
		}

		var profile models.Profile
		if errProfile := tx.Select("means_of_identification").Where("user_id = ?", user.ID).First(&profile).Error; errProfile != nil {
			return errProfile
		}
		identification = profile.MeansOfIdentification

		return s.insertWithNumber(tx, account)
	})
	if errTx != nil {
		if db.IsUniqueViolation(errTx, "user_id") {
			return nil, apperr.ErrPrimaryAccountExists
		}
		if _, ok := apperr.As(errTx); ok {
			return nil, errTx
		}
		return nil, apperr.Internal("create bank account", errTx)
	}

	if _, errSend := s.dispatcher.Send(ctx, notify.TemplateAccountCreated, user.Email, notify.Data{
		"full_name":           user.FullName(),
		"account_number":      account.AccountNumber,
		"account_name":        account.AccountName,
		"account_type":        account.AccountType,
		"currency":            account.Currency,
		"identification_type": identification,
	}); errSend != nil {
		log.WithError(errSend).Errorf("failed to enqueue account created email for user %d", user.ID)
	}
	metrics.AuthEvent("bank_account_created")
	log.Infof("created bank account %d for user %d", account.ID, user.ID)
	return account, nil
}

// insertWithNumber retries on account number collisions. The savepoint keeps
// the surrounding transaction usable on PostgreSQL after a failed insert.
func (s *Service) insertWithNumber(tx *gorm.DB, account *models.BankAccount) error {
	for attempt := 0; attempt < numberAttempts; attempt++ {
		number, errNumber := s.numbers.Generate(account.Currency)
		if errNumber != nil {
			return errNumber
		}
		account.AccountNumber = number
		errCreate := tx.Transaction(func(inner *gorm.DB) error {
			return inner.Create(account).Error
		})
		if errCreate == nil {
			return nil
		}
		if !db.IsUniqueViolation(errCreate, "account_number") {
			return errCreate
		}
		account.ID = 0
	}
	return apperr.Internal("generate account number", errors.New("too many account number collisions"))
}

// List returns the accounts of userID, primary first.
func (s *Service) List(ctx context.Context, userID uint64) ([]models.BankAccount, error) {
	var rows []models.BankAccount
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("is_primary DESC").Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, apperr.Internal("list bank accounts", errFind)
	}
	return rows, nil
}

// Activate marks a pending account as KYC-verified by an account executive.
// An executive cannot activate their own account; such accounts are reported
// as not found.
func (s *Service) Activate(ctx context.Context, accountID uint64, verifier *models.User) (*models.BankAccount, error) {
	if verifier == nil || verifier.Role != models.RoleAccountExecutive {
		return nil, apperr.ErrForbidden.WithMessage("Only account executives can activate bank accounts")
	}

	var account models.BankAccount
	var owner models.User
	now := s.now().UTC()
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("id = ? AND user_id <> ?", accountID, verifier.ID).First(&account).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.ErrBankAccountNotFound
			}
			return errFind
		}
		if account.AccountStatus == models.BankAccountStatusActive {
			return apperr.ErrAccountAlreadyActive
		}
		res := tx.Model(&models.BankAccount{}).
			Where("id = ? AND account_status <> ?", account.ID, models.BankAccountStatusActive).
			Updates(map[string]any{
				"kyc_submitted":   true,
				"kyc_verified":    true,
				"kyc_verified_on": now,
				"kyc_verified_by": verifier.ID,
				"account_status":  models.BankAccountStatusActive,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrAccountAlreadyActive
		}
		if errReload := tx.First(&account, "id = ?", account.ID).Error; errReload != nil {
			return errReload
		}
		return tx.First(&owner, "id = ?", account.UserID).Error
	})
	if errTx != nil {
		if _, ok := apperr.As(errTx); ok {
			return nil, errTx
		}
		return nil, apperr.Internal("activate bank account", errTx)
	}

	if _, errSend := s.dispatcher.Send(ctx, notify.TemplateAccountActivated, owner.Email, notify.Data{
		"full_name":      owner.FullName(),
		"account_number": account.AccountNumber,
		"account_name":   account.AccountName,
		"account_type":   account.AccountType,
		"currency":       account.Currency,
	}); errSend != nil {
		log.WithError(errSend).Errorf("failed to enqueue account activated email for account %d", account.ID)
	}
	metrics.AuthEvent("bank_account_activated")
	log.Infof("bank account %d activated by account executive %s", account.ID, verifier.Email)
	return &account, nil
}
