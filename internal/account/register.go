package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/nextgenbank/backoffice/internal/security"
	"github.com/nextgenbank/backoffice/internal/token"
	log "github.com/sirupsen/logrus"
)

const (
	usernameLength   = 12
	usernameAttempts = 5
)

// RegisterInput is the validated registration payload.
type RegisterInput struct {
	Email            string
	FirstName        string
	MiddleName       string
	LastName         string
	IDNo             uint64
	SecurityQuestion models.SecurityQuestion
	SecurityAnswer   string
	Password         string
}

// GenerateUsername builds "<site initials>-<random>" with a fixed total length.
func GenerateUsername(siteName string) (string, error) {
	var prefix strings.Builder
	for _, word := range strings.Fields(siteName) {
		prefix.WriteString(strings.ToUpper(word[:1]))
	}
	head := prefix.String()
	if len(head) > usernameLength-2 {
		head = head[:usernameLength-2]
	}
	tail, errRandom := security.RandomUpperAlphanumeric(usernameLength - len(head) - 1)
	if errRandom != nil {
		return "", errRandom
	}
	return head + "-" + tail, nil
}

// Register creates a PENDING user and enqueues the activation email. When the
// email cannot be enqueued the user row is deleted again and
// apperr.ErrEmailDispatch is returned, so no unreachable account remains.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; errCount != nil {
		return nil, apperr.Internal("check email", errCount)
	}
	if count > 0 {
		return nil, apperr.ErrDuplicateEmail
	}
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Where("id_no = ?", in.IDNo).Count(&count).Error; errCount != nil {
		return nil, apperr.Internal("check id number", errCount)
	}
	if count > 0 {
		return nil, apperr.ErrDuplicateIDNumber
	}

	hashed, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return nil, apperr.Internal("hash password", errHash)
	}

	user := &models.User{
		Email:            email,
		FirstName:        strings.TrimSpace(in.FirstName),
		MiddleName:       strings.TrimSpace(in.MiddleName),
		LastName:         strings.TrimSpace(in.LastName),
		IDNo:             in.IDNo,
		SecurityQuestion: in.SecurityQuestion,
		SecurityAnswer:   in.SecurityAnswer,
		HashedPassword:   hashed,
		IsActive:         false,
		AccountStatus:    models.AccountStatusPending,
		Role:             models.RoleCustomer,
	}
	if errCreate := s.createWithUsername(ctx, user); errCreate != nil {
		return nil, errCreate
	}

	if errSend := s.sendActivation(ctx, user); errSend != nil {
		log.WithError(errSend).Errorf("failed to enqueue activation email for %s", user.Email)
		if errDelete := s.db.WithContext(ctx).Delete(&models.User{}, user.ID).Error; errDelete != nil {
			log.WithError(errDelete).Errorf("failed to remove user %d after activation email failure", user.ID)
		}
		return nil, apperr.ErrEmailDispatch.Wrap(errSend)
	}
	metrics.AuthEvent("registered")
	log.Infof("user %s registered, activation pending", user.Email)
	return user, nil
}

// createWithUsername inserts user, retrying with a fresh username on collision.
// The unique indexes on email and id_no are authoritative over the pre-checks.
func (s *Service) createWithUsername(ctx context.Context, user *models.User) error {
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		username, errName := GenerateUsername(s.cfg.SiteName)
		if errName != nil {
			return apperr.Internal("generate username", errName)
		}
		user.Username = username
		errCreate := s.db.WithContext(ctx).Create(user).Error
		switch {
		case errCreate == nil:
			return nil
		case db.IsUniqueViolation(errCreate, "email"):
			return apperr.ErrDuplicateEmail
		case db.IsUniqueViolation(errCreate, "id_no"):
			return apperr.ErrDuplicateIDNumber
		case db.IsUniqueViolation(errCreate, "username"):
			user.ID = 0
			continue
		default:
			return apperr.Internal("create user", errCreate)
		}
	}
	return apperr.Internal("create user", fmt.Errorf("no free username after %d attempts", usernameAttempts))
}

func (s *Service) sendActivation(ctx context.Context, user *models.User) error {
	raw, errIssue := s.issuer.Issue(user.ID, token.PurposeActivation, s.cfg.ActivationExpiry)
	if errIssue != nil {
		return errIssue
	}
	_, errSend := s.dispatcher.Send(ctx, notify.TemplateActivation, user.Email, notify.Data{
		"activation_url": s.cfg.APIBaseURL + "/api/v1/auth/activate/" + raw,
		"expiry_time":    minutes(s.cfg.ActivationExpiry),
	})
	return errSend
}

// Activate redeems an activation token. Redemption succeeds exactly once.
func (s *Service) Activate(ctx context.Context, raw string) (*models.User, error) {
	claims, errVerify := s.issuer.Verify(raw, token.PurposeActivation)
	if errVerify != nil {
		return nil, tokenError(errVerify, "Activation token expired", "Invalid activation token")
	}
	user, errFind := s.findByID(ctx, claims.Subject)
	if errFind != nil {
		return nil, errFind
	}
	if user.IsActive {
		return nil, apperr.ErrAlreadyActive
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_active = ?", user.ID, false).
		Updates(map[string]any{
			"is_active":             true,
			"account_status":        models.AccountStatusActive,
			"failed_login_attempts": 0,
			"last_failed_login":     nil,
			"otp":                   "",
			"otp_expiry_time":       nil,
		})
	if res.Error != nil {
		return nil, apperr.Internal("activate user", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrAlreadyActive
	}

	user.IsActive = true
	user.AccountStatus = models.AccountStatusActive
	user.FailedLoginAttempts = 0
	user.LastFailedLogin = nil
	user.OTP = ""
	user.OTPExpiryTime = nil
	metrics.AuthEvent("activated")
	log.Infof("user %s activated", user.Email)
	return user, nil
}

// ResendActivation enqueues a fresh activation email. Unknown emails succeed
// silently; an already activated account yields apperr.ErrAlreadyActive.
func (s *Service) ResendActivation(ctx context.Context, email string) error {
	user, errFind := s.findByEmail(ctx, email, true)
	if errFind != nil {
		return apperr.Internal("find user", errFind)
	}
	if user == nil {
		return nil
	}
	if user.IsActive || user.AccountStatus == models.AccountStatusActive {
		return apperr.ErrAlreadyActive.WithMessage("User account already activated")
	}
	if errSend := s.sendActivation(ctx, user); errSend != nil {
		if errors.Is(errSend, context.Canceled) {
			return errSend
		}
		log.WithError(errSend).Errorf("failed to enqueue activation email for %s", user.Email)
	}
	return nil
}
