package bankaccount

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type sent struct {
	template  notify.Template
	recipient string
	data      notify.Data
}

type recordingDispatcher struct {
	mu      sync.Mutex
	failing bool
	sent    []sent
}

func (d *recordingDispatcher) Send(_ context.Context, template notify.Template, recipient string, data notify.Data) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failing {
		return "", errors.New("queue down")
	}
	d.sent = append(d.sent, sent{template: template, recipient: recipient, data: data})
	return "job", nil
}

var testNumbers = NumberGenerator{
	BankCode:      "123",
	BranchCode:    "456",
	CurrencyCodes: map[string]string{"USD": "1", "EUR": "2", "GBP": "3", "KES": "4"},
}

type fixture struct {
	svc  *Service
	db   *gorm.DB
	mail *recordingDispatcher
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "bank.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })
	f := &fixture{db: conn, mail: &recordingDispatcher{}, now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	f.svc = NewService(conn, f.mail, testNumbers, Config{MaxAccounts: 3}, func() time.Time { return f.now })
	return f
}

func (f *fixture) user(t *testing.T, n int, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Username:         fmt.Sprintf("NB-U%07d", n),
		Email:            fmt.Sprintf("owner%d@bank.test", n),
		FirstName:        "Alan",
		LastName:         "Turing",
		IDNo:             uint64(5000 + n),
		HashedPassword:   "x",
		SecurityQuestion: models.SecurityQuestionChildhoodFriend,
		SecurityAnswer:   "chris",
		IsActive:         true,
		AccountStatus:    models.AccountStatusActive,
		Role:             role,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) completeKYC(t *testing.T, user *models.User) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Profile{
		UserID:                user.ID,
		Title:                 models.TitleMr,
		Gender:                models.GenderMale,
		DateOfBirth:           datatypes.Date(time.Date(1985, 3, 4, 0, 0, 0, 0, time.UTC)),
		CountryOfBirth:        "GB",
		PlaceOfBirth:          "London",
		MaritalStatus:         models.MaritalSingle,
		MeansOfIdentification: models.IdentificationPassport,
		IDIssueDate:           datatypes.Date(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDExpiryDate:          datatypes.Date(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		PassportNumber:        "P998877",
		Nationality:           "British",
		PhoneNumber:           "+447700900000",
		Address:               "1 Bletchley Park",
		City:                  "Milton Keynes",
		Country:               "GB",
		EmploymentStatus:      models.EmploymentEmployed,
	}).Error)
	require.NoError(t, f.db.Create(&models.NextOfKin{
		UserID:       user.ID,
		FullName:     "Ethel Turing",
		Relationship: models.RelationshipParent,
		Email:        "ethel@bank.test",
		PhoneNumber:  "+447700900001",
		Address:      "2 Bletchley Park",
		City:         "Milton Keynes",
		Country:      "GB",
		Nationality:  "British",
		IDNumber:     123456,
		IsPrimary:    true,
	}).Error)
}

func input(primary bool) CreateInput {
	return CreateInput{
		AccountType: models.AccountTypeSavings,
		Currency:    models.CurrencyUSD,
		AccountName: "Alan Savings",
		IsPrimary:   primary,
		Balance:     decimal.Zero,
	}
}

func TestCheckDigit(t *testing.T) {
	digit, err := CheckDigit("12")
	require.NoError(t, err)
	assert.Equal(t, 6, digit)

	digit, err = CheckDigit("7992739871")
	require.NoError(t, err)
	assert.Equal(t, 4, digit)

	_, err = CheckDigit("12a")
	assert.Error(t, err)
	_, err = CheckDigit("")
	assert.Error(t, err)
}

func TestGenerate_ChecksumAndPrefix(t *testing.T) {
	for i := 0; i < 200; i++ {
		number, err := testNumbers.Generate("kes")
		require.NoError(t, err)
		require.Len(t, number, NumberLength)
		assert.Equal(t, "1234564", number[:7])
		assert.True(t, ValidNumber(number), "number %s fails its check digit", number)

		last := number[len(number)-1] - '0'
		tampered := number[:len(number)-1] + string(rune('0'+(last+1)%10))
		assert.False(t, ValidNumber(tampered))
	}
}

func TestGenerate_Errors(t *testing.T) {
	_, err := testNumbers.Generate("JPY")
	assert.ErrorIs(t, err, apperr.ErrInvalidCurrency)

	_, err = NumberGenerator{CurrencyCodes: testNumbers.CurrencyCodes}.Generate("USD")
	assert.ErrorIs(t, err, apperr.ErrBankNotConfigured)

	long := NumberGenerator{BankCode: "12345678", BranchCode: "1234567", CurrencyCodes: testNumbers.CurrencyCodes}
	_, err = long.Generate("USD")
	assert.ErrorIs(t, err, apperr.ErrBankNotConfigured)
}

func TestCreate_RequiresKYC(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1, models.RoleCustomer)

	_, err := f.svc.Create(context.Background(), user, input(false))
	assert.ErrorIs(t, err, apperr.ErrKYCIncomplete)
	assert.Empty(t, f.mail.sent)
}

func TestCreate_FirstIsPrimaryAndLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 1, models.RoleCustomer)
	f.completeKYC(t, user)

	first, err := f.svc.Create(ctx, user, input(false))
	require.NoError(t, err)
	assert.True(t, first.IsPrimary)
	assert.Equal(t, models.BankAccountStatusPending, first.AccountStatus)
	assert.True(t, first.Balance.IsZero())
	assert.True(t, ValidNumber(first.AccountNumber))

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, notify.TemplateAccountCreated, f.mail.sent[0].template)
	assert.Equal(t, user.Email, f.mail.sent[0].recipient)
	assert.Equal(t, first.AccountNumber, f.mail.sent[0].data["account_number"])
	assert.Equal(t, models.IdentificationPassport, f.mail.sent[0].data["identification_type"])

	_, err = f.svc.Create(ctx, user, input(true))
	assert.ErrorIs(t, err, apperr.ErrPrimaryAccountExists)

	second, err := f.svc.Create(ctx, user, input(false))
	require.NoError(t, err)
	assert.False(t, second.IsPrimary)
	_, err = f.svc.Create(ctx, user, input(false))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, user, input(false))
	assert.ErrorIs(t, err, apperr.ErrMaxAccounts)

	rows, err := f.svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, first.ID, rows[0].ID)
}

func TestCreate_EmailFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1, models.RoleCustomer)
	f.completeKYC(t, user)
	f.mail.failing = true

	account, err := f.svc.Create(context.Background(), user, input(false))
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.BankAccount{}).Where("id = ?", account.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreate_RejectsUnknownCurrencyAndNegativeBalance(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1, models.RoleCustomer)
	f.completeKYC(t, user)

	in := input(false)
	in.Currency = "JPY"
	_, err := f.svc.Create(context.Background(), user, in)
	assert.ErrorIs(t, err, apperr.ErrInvalidCurrency)

	in = input(false)
	in.Balance = decimal.NewFromInt(-1)
	_, err = f.svc.Create(context.Background(), user, in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestActivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, 1, models.RoleCustomer)
	f.completeKYC(t, owner)
	exec := f.user(t, 2, models.RoleAccountExecutive)
	teller := f.user(t, 3, models.RoleTeller)

	account, err := f.svc.Create(ctx, owner, input(false))
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, account.ID, teller)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Activate(ctx, 9999, exec)
	assert.ErrorIs(t, err, apperr.ErrBankAccountNotFound)

	activated, err := f.svc.Activate(ctx, account.ID, exec)
	require.NoError(t, err)
	assert.Equal(t, models.BankAccountStatusActive, activated.AccountStatus)
	assert.True(t, activated.KYCSubmitted)
	assert.True(t, activated.KYCVerified)
	require.NotNil(t, activated.KYCVerifiedBy)
	assert.Equal(t, exec.ID, *activated.KYCVerifiedBy)
	require.NotNil(t, activated.KYCVerifiedOn)
	assert.WithinDuration(t, f.now, *activated.KYCVerifiedOn, time.Second)

	last := f.mail.sent[len(f.mail.sent)-1]
	assert.Equal(t, notify.TemplateAccountActivated, last.template)
	assert.Equal(t, owner.Email, last.recipient)

	_, err = f.svc.Activate(ctx, account.ID, exec)
	assert.ErrorIs(t, err, apperr.ErrAccountAlreadyActive)
}

func TestActivate_SelfActivationIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exec := f.user(t, 1, models.RoleAccountExecutive)
	f.completeKYC(t, exec)

	account, err := f.svc.Create(ctx, exec, input(false))
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, account.ID, exec)
	assert.ErrorIs(t, err, apperr.ErrBankAccountNotFound)
}
