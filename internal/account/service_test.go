package account

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/nextgenbank/backoffice/internal/security"
	"github.com/nextgenbank/backoffice/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const baseURL = "http://bank.test"

type sentMail struct {
	template  notify.Template
	recipient string
	data      notify.Data
}

type fakeDispatcher struct {
	mu       sync.Mutex
	failing  bool
	sent     []sentMail
	attempts int
}

func (d *fakeDispatcher) Send(_ context.Context, template notify.Template, recipient string, data notify.Data) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.failing {
		return "", errors.New("queue unavailable")
	}
	d.sent = append(d.sent, sentMail{template: template, recipient: recipient, data: data})
	return "job", nil
}

func (d *fakeDispatcher) byTemplate(template notify.Template) []sentMail {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []sentMail
	for _, m := range d.sent {
		if m.template == template {
			out = append(out, m)
		}
	}
	return out
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time         { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc    *Service
	db     *gorm.DB
	mail   *fakeDispatcher
	clock  *fakeClock
	sleeps []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "account.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })

	f := &fixture{db: conn, mail: &fakeDispatcher{}, clock: &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}}
	issuer, err := token.NewIssuer("activation-reset-secret", "session-secret", f.clock.Now)
	require.NoError(t, err)
	f.svc = NewService(conn, issuer, f.mail, Config{
		SiteName:            "NextGen Bank",
		APIBaseURL:          baseURL + "/",
		OTPExpiry:           5 * time.Minute,
		LoginAttempts:       3,
		LockoutDuration:     5 * time.Minute,
		ActivationExpiry:    5 * time.Minute,
		PasswordResetExpiry: 5 * time.Minute,
	}, WithClock(f.clock.Now), WithSleep(func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}))
	return f
}

func registerInput(email string, idNo uint64) RegisterInput {
	return RegisterInput{
		Email:            email,
		FirstName:        "Ada",
		LastName:         "Lovelace",
		IDNo:             idNo,
		SecurityQuestion: models.SecurityQuestionFavoriteColor,
		SecurityAnswer:   "blue",
		Password:         "correct-horse",
	}
}

func linkToken(t *testing.T, link, prefix string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(link, baseURL+prefix), "unexpected link %q", link)
	return strings.TrimPrefix(link, baseURL+prefix)
}

// activeUser registers and activates a user.
func (f *fixture) activeUser(t *testing.T, email string, idNo uint64) *models.User {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput(email, idNo))
	require.NoError(t, err)
	mails := f.mail.byTemplate(notify.TemplateActivation)
	raw := linkToken(t, mails[len(mails)-1].data["activation_url"].(string), "/api/v1/auth/activate/")
	user, err := f.svc.Activate(ctx, raw)
	require.NoError(t, err)
	return user
}

func (f *fixture) reload(t *testing.T, id uint64) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.First(&user, id).Error)
	return user
}

func TestGenerateUsername(t *testing.T) {
	name, err := GenerateUsername("NextGen Bank")
	require.NoError(t, err)
	assert.Len(t, name, 12)
	assert.True(t, strings.HasPrefix(name, "NB-"), name)
	assert.Equal(t, strings.ToUpper(name), name)
}

func TestRegister_CreatesPendingUserAndEnqueuesActivation(t *testing.T) {
	f := newFixture(t)
	user, err := f.svc.Register(context.Background(), registerInput(" A@X.com ", 1001))
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", user.Email)
	assert.False(t, user.IsActive)
	assert.Equal(t, models.AccountStatusPending, user.AccountStatus)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, security.VerifyPassword("correct-horse", user.HashedPassword))

	mails := f.mail.byTemplate(notify.TemplateActivation)
	require.Len(t, mails, 1)
	assert.Equal(t, "a@x.com", mails[0].recipient)
	assert.Equal(t, 5, mails[0].data["expiry_time"])
	linkToken(t, mails[0].data["activation_url"].(string), "/api/v1/auth/activate/")
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("a@x.com", 1001))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, registerInput("A@x.com", 2002))
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = f.svc.Register(ctx, registerInput("b@x.com", 1001))
	assert.ErrorIs(t, err, apperr.ErrDuplicateIDNumber)
}

func TestRegister_EmailFailureRemovesUser(t *testing.T) {
	f := newFixture(t)
	f.mail.failing = true

	_, err := f.svc.Register(context.Background(), registerInput("a@x.com", 1001))
	assert.ErrorIs(t, err, apperr.ErrEmailDispatch)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	f.mail.failing = false
	_, err = f.svc.Register(context.Background(), registerInput("a@x.com", 1001))
	assert.NoError(t, err)
}

func TestActivate_ExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("a@x.com", 1001))
	require.NoError(t, err)
	raw := linkToken(t, f.mail.byTemplate(notify.TemplateActivation)[0].data["activation_url"].(string), "/api/v1/auth/activate/")

	user, err := f.svc.Activate(ctx, raw)
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.Equal(t, models.AccountStatusActive, user.AccountStatus)

	_, err = f.svc.Activate(ctx, raw)
	assert.ErrorIs(t, err, apperr.ErrAlreadyActive)
}

func TestActivate_TokenErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("a@x.com", 1001))
	require.NoError(t, err)
	raw := linkToken(t, f.mail.byTemplate(notify.TemplateActivation)[0].data["activation_url"].(string), "/api/v1/auth/activate/")

	_, err = f.svc.Activate(ctx, "not-a-token")
	assert.ErrorIs(t, err, apperr.ErrTokenInvalid)

	f.clock.Advance(6 * time.Minute)
	_, err = f.svc.Activate(ctx, raw)
	assert.ErrorIs(t, err, apperr.ErrTokenExpired)
}

func TestResendActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ResendActivation(ctx, "nobody@x.com"))
	assert.Empty(t, f.mail.sent)

	_, err := f.svc.Register(ctx, registerInput("a@x.com", 1001))
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendActivation(ctx, "a@x.com"))
	assert.Len(t, f.mail.byTemplate(notify.TemplateActivation), 2)

	f.activeUser(t, "b@x.com", 2002)
	err = f.svc.ResendActivation(ctx, "b@x.com")
	assert.ErrorIs(t, err, apperr.ErrAlreadyActive)
}

func TestRequestLoginOTP_BeforeActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("a@x.com", 1001))
	require.NoError(t, err)

	err = f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrNotActivated)
	assert.Empty(t, f.mail.byTemplate(notify.TemplateLoginOTP))
}

func TestRequestLoginOTP_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestLoginOTP(context.Background(), "ghost@x.com", "whatever1"))
	assert.Empty(t, f.mail.sent)
}

func TestLoginFlow_OTPVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)

	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))
	mails := f.mail.byTemplate(notify.TemplateLoginOTP)
	require.Len(t, mails, 1)
	otp := mails[0].data["otp"].(string)
	assert.Len(t, otp, 6)

	stored := f.reload(t, user.ID)
	assert.Equal(t, otp, stored.OTP)
	require.NotNil(t, stored.OTPExpiryTime)

	_, err := f.svc.VerifyLoginOTP(ctx, "a@x.com", "000000x")
	assert.ErrorIs(t, err, apperr.ErrInvalidOTP)
	assert.Equal(t, 1, f.reload(t, user.ID).FailedLoginAttempts)

	verified, err := f.svc.VerifyLoginOTP(ctx, "a@x.com", otp)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)

	stored = f.reload(t, user.ID)
	assert.Empty(t, stored.OTP)
	assert.Nil(t, stored.OTPExpiryTime)
	assert.Zero(t, stored.FailedLoginAttempts)

	_, err = f.svc.VerifyLoginOTP(ctx, "a@x.com", otp)
	assert.ErrorIs(t, err, apperr.ErrInvalidOTP, "otp must not be replayable")
}

func TestVerifyLoginOTP_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeUser(t, "a@x.com", 1001)
	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))
	otp := f.mail.byTemplate(notify.TemplateLoginOTP)[0].data["otp"].(string)

	f.clock.Advance(5 * time.Minute)
	_, err := f.svc.VerifyLoginOTP(ctx, "a@x.com", otp)
	require.NoError(t, err, "an otp is valid up to and including its expiry")

	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))
	otp = f.mail.byTemplate(notify.TemplateLoginOTP)[1].data["otp"].(string)
	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.svc.VerifyLoginOTP(ctx, "a@x.com", otp)
	assert.ErrorIs(t, err, apperr.ErrOTPExpired)
}

func TestVerifyLoginOTP_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyLoginOTP(context.Background(), "ghost@x.com", "123456")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestLockout_AfterThresholdAndLazyRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)

	err := f.svc.RequestLoginOTP(ctx, "a@x.com", "wrong-password")
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, typed.Kind)
	assert.Equal(t, 2, typed.Details["remaining_attempts"])
	assert.Contains(t, typed.Message, "2 attempts remaining")

	err = f.svc.RequestLoginOTP(ctx, "a@x.com", "wrong-password")
	typed, _ = apperr.As(err)
	assert.Contains(t, typed.Message, "1 attempt remaining")

	err = f.svc.RequestLoginOTP(ctx, "a@x.com", "wrong-password")
	typed, _ = apperr.As(err)
	assert.Equal(t, 0, typed.Details["remaining_attempts"])

	stored := f.reload(t, user.ID)
	assert.Equal(t, models.AccountStatusLocked, stored.AccountStatus)
	require.NotNil(t, stored.LastFailedLogin)
	require.Len(t, f.mail.byTemplate(notify.TemplateAccountLockout), 1)
	lockMail := f.mail.byTemplate(notify.TemplateAccountLockout)[0]
	assert.Equal(t, "2025-06-01 09:00:00 UTC", lockMail.data["lockout_time"])
	assert.Equal(t, "2025-06-01 09:05:00 UTC", lockMail.data["unlock_time"])

	f.clock.Advance(2 * time.Minute)
	err = f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrStillLocked)
	typed, _ = apperr.As(err)
	assert.Equal(t, apperr.KindLocked, typed.Kind)
	assert.Equal(t, 3, typed.Details["lockout_remaining_minutes"])

	_, err = f.svc.VerifyLoginOTP(ctx, "a@x.com", "123456")
	assert.ErrorIs(t, err, apperr.ErrStillLocked)
	assert.Len(t, f.mail.byTemplate(notify.TemplateAccountLockout), 1, "lockout email is enqueued once")

	f.clock.Advance(3 * time.Minute)
	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))
	stored = f.reload(t, user.ID)
	assert.Equal(t, models.AccountStatusActive, stored.AccountStatus)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LastFailedLogin)
	assert.Len(t, f.mail.byTemplate(notify.TemplateLoginOTP), 1)
}

func TestLockout_WrongOTPsLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)
	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))

	for i := 0; i < 3; i++ {
		_, err := f.svc.VerifyLoginOTP(ctx, "a@x.com", "bad")
		assert.ErrorIs(t, err, apperr.ErrInvalidOTP)
	}
	assert.Equal(t, models.AccountStatusLocked, f.reload(t, user.ID).AccountStatus)
	assert.Len(t, f.mail.byTemplate(notify.TemplateAccountLockout), 1)
}

func TestCheckLockout_NoopWhenNotLocked(t *testing.T) {
	f := newFixture(t)
	user := f.activeUser(t, "a@x.com", 1001)
	assert.NoError(t, f.svc.CheckLockout(context.Background(), user))
}

func TestRequestLoginOTP_DispatchFailureClearsOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)
	f.mail.failing = true
	f.mail.attempts = 0

	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))
	assert.Equal(t, 3, f.mail.attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)

	stored := f.reload(t, user.ID)
	assert.Empty(t, stored.OTP)
	assert.Nil(t, stored.OTPExpiryTime)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)

	for i := 0; i < 3; i++ {
		_ = f.svc.RequestLoginOTP(ctx, "a@x.com", "wrong-password")
	}
	require.Equal(t, models.AccountStatusLocked, f.reload(t, user.ID).AccountStatus)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ghost@x.com"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@x.com"))
	mails := f.mail.byTemplate(notify.TemplatePasswordReset)
	require.Len(t, mails, 1)
	raw := linkToken(t, mails[0].data["reset_url"].(string), "/api/v1/auth/reset-password/")

	f.clock.Advance(time.Second)
	require.NoError(t, f.svc.ResetPassword(ctx, raw, "new-password-1"))

	stored := f.reload(t, user.ID)
	assert.Equal(t, models.AccountStatusActive, stored.AccountStatus)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.True(t, security.VerifyPassword("new-password-1", stored.HashedPassword))
	require.NotNil(t, stored.PasswordChangedAt)

	err := f.svc.ResetPassword(ctx, raw, "another-password")
	assert.ErrorIs(t, err, apperr.ErrTokenInvalid, "reset links are single use")

	f.clock.Advance(time.Second)
	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "new-password-1"))
}

func TestPasswordReset_IncludesPendingUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("a@x.com", 1001))
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@x.com"))
	assert.Len(t, f.mail.byTemplate(notify.TemplatePasswordReset), 1)
}

func TestResetPassword_TokenErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeUser(t, "a@x.com", 1001)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@x.com"))
	raw := linkToken(t, f.mail.byTemplate(notify.TemplatePasswordReset)[0].data["reset_url"].(string), "/api/v1/auth/reset-password/")

	activation := linkToken(t, f.mail.byTemplate(notify.TemplateActivation)[0].data["activation_url"].(string), "/api/v1/auth/activate/")
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, activation, "new-password-1"), apperr.ErrTokenInvalid)

	f.clock.Advance(6 * time.Minute)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, raw, "new-password-1"), apperr.ErrTokenExpired)
}

func TestAdminStatusChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)

	_, err := f.svc.Deactivate(ctx, user.ID)
	require.NoError(t, err)
	err = f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrInactive)
	_, err = f.svc.ActiveUser(ctx, user.ID)
	assert.ErrorIs(t, err, apperr.ErrInactive)

	_, err = f.svc.Reactivate(ctx, user.ID)
	require.NoError(t, err)
	active, err := f.svc.ActiveUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusActive, active.AccountStatus)

	updated, err := f.svc.SetRole(ctx, user.ID, models.RoleAccountExecutive)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAccountExecutive, updated.Role)
	_, err = f.svc.SetRole(ctx, user.ID, models.Role("wizard"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeUser(t, "alice@x.com", 1001)
	f.activeUser(t, "bob@x.com", 1002)
	_, err := f.svc.Register(ctx, registerInput("carol@x.com", 1003))
	require.NoError(t, err)

	rows, total, err := f.svc.ListUsers(ctx, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 3)

	rows, total, err = f.svc.ListUsers(ctx, ListFilter{Search: "BOB"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "bob@x.com", rows[0].Email)

	_, total, err = f.svc.ListUsers(ctx, ListFilter{Status: models.AccountStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	rows, total, err = f.svc.ListUsers(ctx, ListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 1)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	user := f.activeUser(t, "a@x.com", 1001)
	require.NoError(t, f.svc.DeleteUser(context.Background(), user.ID))
	assert.ErrorIs(t, f.svc.DeleteUser(context.Background(), user.ID), apperr.ErrUserNotFound)
}

func TestRequestLoginOTP_RecoversAfterFailedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)

	err := f.svc.RequestLoginOTP(ctx, "a@x.com", "wrong-password")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	err = f.svc.RequestLoginOTP(ctx, "a@x.com", "wrong-password")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), "second failure must still load the user: %v", err)

	stored := f.reload(t, user.ID)
	assert.Equal(t, 2, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LastFailedLogin)
	assert.True(t, stored.LastFailedLogin.Equal(f.clock.Now()))

	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))
	stored = f.reload(t, user.ID)
	assert.Zero(t, stored.FailedLoginAttempts)
	require.NotNil(t, stored.OTPExpiryTime)
	assert.True(t, stored.OTPExpiryTime.Equal(f.clock.Now().Add(5*time.Minute)))

	verified, err := f.svc.VerifyLoginOTP(ctx, "a@x.com", stored.OTP)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

func TestRequestLoginOTP_UpgradesLegacyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)
	legacy, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).Update("hashed_password", string(legacy)).Error)

	require.NoError(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "correct-horse"))

	stored := f.reload(t, user.ID)
	assert.False(t, security.NeedsRehash(stored.HashedPassword))
	assert.True(t, security.VerifyPassword("correct-horse", stored.HashedPassword))
	assert.Len(t, f.mail.byTemplate(notify.TemplateLoginOTP), 1)
}

func TestRequestLoginOTP_WrongPasswordKeepsLegacyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.activeUser(t, "a@x.com", 1001)
	legacy, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).Update("hashed_password", string(legacy)).Error)

	assert.Error(t, f.svc.RequestLoginOTP(ctx, "a@x.com", "wrong-password"))
	assert.Equal(t, string(legacy), f.reload(t, user.ID).HashedPassword)
}

func TestUnknownUserHash_IsArgon2(t *testing.T) {
	hash := unknownUserHash()
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.Equal(t, hash, unknownUserHash())
	assert.False(t, security.VerifyPassword("correct-horse", hash))
}
