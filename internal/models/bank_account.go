package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccountStatus is the state of a bank account.
type BankAccountStatus string

const (
	// BankAccountStatusPending awaits KYC verification by an account executive.
	BankAccountStatusPending BankAccountStatus = "pending"
	// BankAccountStatusActive is verified and usable.
	BankAccountStatusActive BankAccountStatus = "active"
	// BankAccountStatusInactive is disabled.
	BankAccountStatusInactive BankAccountStatus = "inactive"
	// BankAccountStatusClosed is permanently closed.
	BankAccountStatusClosed BankAccountStatus = "closed"
	// BankAccountStatusFrozen is blocked pending review.
	BankAccountStatusFrozen BankAccountStatus = "frozen"
)

// Account types.
const (
	AccountTypeCurrent      = "current"
	AccountTypeSavings      = "savings"
	AccountTypeFixedDeposit = "fixed_deposit"
	AccountTypeBusiness     = "business"
)

// Supported currencies.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"
	CurrencyKES = "KES"
)

// BankAccount is a customer account. A partial unique index keeps at most
// one primary account per user.
type BankAccount struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	UserID uint64 `gorm:"not null;index"`           // Owning user.

	AccountType   string            `gorm:"type:varchar(20);not null"`                 // Account product.
	Currency      string            `gorm:"type:varchar(3);not null"`                  // ISO currency.
	AccountStatus BankAccountStatus `gorm:"type:varchar(20);not null;default:pending"` // Account state.
	AccountNumber string            `gorm:"type:varchar(20);not null;uniqueIndex"`     // Check-digit account number.
	AccountName   string            `gorm:"type:varchar(100);not null"`                // Holder display name.

	Balance      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Current balance.
	InterestRate decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"`  // Annual rate.
	IsPrimary    bool            `gorm:"not null;default:false"`                // Primary account flag.

	KYCSubmitted  bool       `gorm:"not null;default:false"` // KYC submitted flag.
	KYCVerified   bool       `gorm:"not null;default:false"` // KYC verified flag.
	KYCVerifiedOn *time.Time                                // Verification time.
	KYCVerifiedBy *uint64    `gorm:"index"`                  // Verifying staff user.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
