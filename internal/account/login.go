package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/nextgenbank/backoffice/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	otpSendAttempts = 3
	emailTimeLayout = "2006-01-02 15:04:05 UTC"
)

// unknownUserHash is verified against when no account matches, so unknown
// and known emails cost the same argon2 work.
var unknownUserHash = sync.OnceValue(func() string {
	hash, errHash := security.HashPassword("unknown-user-placeholder")
	if errHash != nil {
		log.WithError(errHash).Error("failed to prepare placeholder password hash")
	}
	return hash
})

// RequestLoginOTP checks the password and emails a fresh OTP. Unknown emails
// return nil so the response does not reveal whether an account exists.
func (s *Service) RequestLoginOTP(ctx context.Context, email, password string) error {
	user, errFind := s.findByEmail(ctx, email, true)
	if errFind != nil {
		return apperr.Internal("find user", errFind)
	}
	if user == nil {
		security.VerifyPassword(password, unknownUserHash())
		return nil
	}
	if errLock := s.CheckLockout(ctx, user); errLock != nil {
		return errLock
	}

	if !security.VerifyPassword(password, user.HashedPassword) {
		if !user.IsActive {
			return apperr.ErrInvalidCredentials
		}
		attempts, _, errIncrement := s.incrementFailed(ctx, user)
		if errIncrement != nil {
			return errIncrement
		}
		return s.invalidCredentials(attempts)
	}
	if errStatus := ValidateStatus(user); errStatus != nil {
		return errStatus
	}
	s.upgradeHash(ctx, user, password)

	if errReset := s.resetState(ctx, user, true); errReset != nil {
		return errReset
	}
	return s.issueOTP(ctx, user)
}

// upgradeHash replaces a legacy bcrypt hash with argon2id after the password
// has been verified. Failures are logged and the login continues.
func (s *Service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.HashedPassword) {
		return
	}
	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		log.WithError(errHash).Warnf("failed to rehash password for %s", user.Email)
		return
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND hashed_password = ?", user.ID, user.HashedPassword).
		Update("hashed_password", hashed).Error; errUpdate != nil {
		log.WithError(errUpdate).Warnf("failed to store upgraded password hash for %s", user.Email)
		return
	}
	user.HashedPassword = hashed
	log.Infof("password hash upgraded to argon2id for %s", user.Email)
}

func (s *Service) invalidCredentials(attempts int) error {
	remaining := s.cfg.LoginAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	var message string
	if remaining > 0 {
		plural := "s"
		if remaining == 1 {
			plural = ""
		}
		message = fmt.Sprintf("Invalid credentials. You have %d attempt%s remaining before your account is temporarily locked.", remaining, plural)
	} else {
		message = fmt.Sprintf("Invalid credentials. Your account has been temporarily locked due to too many failed attempts. Please try again after %d minutes.", minutes(s.cfg.LockoutDuration))
	}
	return apperr.ErrInvalidCredentials.WithMessage(message).With("remaining_attempts", remaining)
}

// issueOTP stores a new OTP and enqueues it. Enqueueing is retried with
// exponential backoff; when every attempt fails the OTP is cleared so it can
// never be used.
func (s *Service) issueOTP(ctx context.Context, user *models.User) error {
	otp, errOTP := security.GenerateOTP()
	if errOTP != nil {
		return apperr.Internal("generate otp", errOTP)
	}
	expiry := s.clock().Add(s.cfg.OTPExpiry)
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"otp":             otp,
		"otp_expiry_time": expiry,
	}).Error; errUpdate != nil {
		return apperr.Internal("store otp", errUpdate)
	}
	user.OTP = otp
	user.OTPExpiryTime = &expiry

	data := notify.Data{"otp": otp, "expiry_time": minutes(s.cfg.OTPExpiry)}
	for attempt := 0; attempt < otpSendAttempts; attempt++ {
		_, errSend := s.dispatcher.Send(ctx, notify.TemplateLoginOTP, user.Email, data)
		if errSend == nil {
			metrics.AuthEvent("otp_sent")
			log.Infof("login otp sent to %s", user.Email)
			return nil
		}
		log.WithError(errSend).Errorf("failed to send login otp (attempt %d)", attempt+1)
		if attempt == otpSendAttempts-1 {
			break
		}
		if errSleep := s.sleep(ctx, time.Duration(1<<attempt)*time.Second); errSleep != nil {
			break
		}
	}

	if errClear := s.db.WithContext(context.WithoutCancel(ctx)).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"otp":             "",
		"otp_expiry_time": nil,
	}).Error; errClear != nil {
		return apperr.Internal("clear otp", errClear)
	}
	user.OTP = ""
	user.OTPExpiryTime = nil
	metrics.AuthEvent("otp_dispatch_failed")
	return nil
}

// VerifyLoginOTP checks a submitted OTP. A mismatch counts as a failed login
// and may lock the account. On success the OTP and counters are cleared.
func (s *Service) VerifyLoginOTP(ctx context.Context, email, otp string) (*models.User, error) {
	user, errFind := s.findByEmail(ctx, email, true)
	if errFind != nil {
		return nil, apperr.Internal("find user", errFind)
	}
	if user == nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if user.AccountStatus == models.AccountStatusLocked {
		if errLock := s.CheckLockout(ctx, user); errLock != nil {
			return nil, errLock
		}
	}
	if errStatus := ValidateStatus(user); errStatus != nil {
		return nil, errStatus
	}

	if user.OTP == "" || !security.EqualOTP(otp, user.OTP) {
		if _, _, errIncrement := s.incrementFailed(ctx, user); errIncrement != nil {
			return nil, errIncrement
		}
		metrics.AuthEvent("otp_invalid")
		return nil, apperr.ErrInvalidOTP
	}
	if user.OTPExpiryTime == nil || s.clock().After(*user.OTPExpiryTime) {
		return nil, apperr.ErrOTPExpired
	}

	if errReset := s.resetState(ctx, user, true); errReset != nil {
		return nil, errReset
	}
	metrics.AuthEvent("login")
	return user, nil
}

// CheckLockout is a no-op unless the user is LOCKED. An elapsed lock is
// cleared lazily; otherwise apperr.ErrStillLocked carries the remaining minutes.
func (s *Service) CheckLockout(ctx context.Context, user *models.User) error {
	if user.AccountStatus != models.AccountStatusLocked || user.LastFailedLogin == nil {
		return nil
	}
	now := s.clock()
	unlockAt := user.LastFailedLogin.Add(s.cfg.LockoutDuration)
	if !now.Before(unlockAt) {
		if errReset := s.resetState(ctx, user, false); errReset != nil {
			return errReset
		}
		log.Infof("lockout period ended for user %s", user.Email)
		return nil
	}

	remaining := int(unlockAt.Sub(now).Seconds() / 60)
	log.Warnf("attempted login to locked account: %s", user.Email)
	locked := apperr.ErrStillLocked.With("lockout_remaining_minutes", remaining)
	locked.Action = fmt.Sprintf("Please try again after %d minutes", remaining)
	return locked
}

// incrementFailed records one failed attempt in a single UPDATE and moves an
// ACTIVE user to LOCKED once the threshold is reached. The lock transition is
// conditional, so only the request that performs it enqueues the lockout email.
func (s *Service) incrementFailed(ctx context.Context, user *models.User) (int, bool, error) {
	now := s.clock()
	var attempts int
	var locked bool
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLock := db.LockUser(tx, db.LockNamespaceUser, user.ID); errLock != nil {
			return errLock
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"last_failed_login":     now,
		}).Error; errUpdate != nil {
			return errUpdate
		}
		res := tx.Model(&models.User{}).
			Where("id = ? AND account_status = ? AND failed_login_attempts >= ?", user.ID, models.AccountStatusActive, s.cfg.LoginAttempts).
			Update("account_status", models.AccountStatusLocked)
		if res.Error != nil {
			return res.Error
		}
		locked = res.RowsAffected == 1
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Select("failed_login_attempts").Scan(&attempts).Error
	})
	if errTx != nil {
		return 0, false, apperr.Internal("record failed login", errTx)
	}

	user.FailedLoginAttempts = attempts
	user.LastFailedLogin = &now
	metrics.AuthEvent("login_failed")
	if !locked {
		return attempts, false, nil
	}

	user.AccountStatus = models.AccountStatusLocked
	metrics.AuthEvent("locked")
	log.Warnf("user %s has been locked out due to too many failed login attempts", user.Email)
	if _, errSend := s.dispatcher.Send(ctx, notify.TemplateAccountLockout, user.Email, notify.Data{
		"lockout_duration": minutes(s.cfg.LockoutDuration),
		"lockout_time":     now.Format(emailTimeLayout),
		"unlock_time":      now.Add(s.cfg.LockoutDuration).Format(emailTimeLayout),
	}); errSend != nil {
		log.WithError(errSend).Errorf("failed to enqueue lockout email for %s", user.Email)
	}
	return attempts, true, nil
}
