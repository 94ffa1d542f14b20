// Package account owns the user lifecycle: registration, activation, OTP
// login with lockout, password reset and administrative status changes.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/nextgenbank/backoffice/internal/token"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Config carries the timings and site values the state machine needs.
type Config struct {
	SiteName            string
	APIBaseURL          string
	OTPExpiry           time.Duration
	LoginAttempts       int
	LockoutDuration     time.Duration
	ActivationExpiry    time.Duration
	PasswordResetExpiry time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleep replaces the delay used between OTP dispatch attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// Service implements the account state machine. It holds no per-user state.
type Service struct {
	db         *gorm.DB
	issuer     *token.Issuer
	dispatcher notify.Dispatcher
	cfg        Config
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewService constructs a Service.
func NewService(conn *gorm.DB, issuer *token.Issuer, dispatcher notify.Dispatcher, cfg Config, opts ...Option) *Service {
	if cfg.LoginAttempts <= 0 {
		cfg.LoginAttempts = 3
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	s := &Service{
		db:         conn,
		issuer:     issuer,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}

// findByEmail returns nil without error when no user matches.
func (s *Service) findByEmail(ctx context.Context, email string, includeInactive bool) (*models.User, error) {
	q := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email))
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var user models.User
	if errFind := q.First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("account: find user by email: %w", errFind)
	}
	return &user, nil
}

func (s *Service) findByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, apperr.Internal("find user", errFind)
	}
	return &user, nil
}

// ValidateStatus rejects users that may not authenticate.
func ValidateStatus(user *models.User) error {
	if !user.IsActive {
		return apperr.ErrNotActivated
	}
	switch user.AccountStatus {
	case models.AccountStatusLocked:
		return apperr.ErrAccountLocked
	case models.AccountStatusInactive:
		return apperr.ErrInactive
	}
	return nil
}

// ActiveUser loads an activated user and validates its status.
func (s *Service) ActiveUser(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, apperr.Internal("find user", errFind)
	}
	if errStatus := ValidateStatus(&user); errStatus != nil {
		return nil, errStatus
	}
	return &user, nil
}

// resetState zeroes the failure counters, optionally clears the OTP and turns
// LOCKED into ACTIVE. The in-memory user is updated to match.
func (s *Service) resetState(ctx context.Context, user *models.User, clearOTP bool) error {
	previous := user.AccountStatus
	updates := map[string]any{
		"failed_login_attempts": 0,
		"last_failed_login":     nil,
	}
	if clearOTP {
		updates["otp"] = ""
		updates["otp_expiry_time"] = nil
	}
	next := previous
	if previous == models.AccountStatusLocked {
		next = models.AccountStatusActive
		updates["account_status"] = next
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; errUpdate != nil {
		return apperr.Internal("reset user state", errUpdate)
	}

	user.FailedLoginAttempts = 0
	user.LastFailedLogin = nil
	if clearOTP {
		user.OTP = ""
		user.OTPExpiryTime = nil
	}
	user.AccountStatus = next
	if previous != next {
		log.Infof("user %s state reset: %s -> %s", user.Email, previous, next)
	}
	return nil
}

// tokenError maps token verification failures onto the service taxonomy.
func tokenError(err error, expiredMessage, invalidMessage string) error {
	if errors.Is(err, token.ErrExpired) {
		return apperr.ErrTokenExpired.WithMessage(expiredMessage)
	}
	return apperr.ErrTokenInvalid.WithMessage(invalidMessage)
}
