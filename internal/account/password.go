package account

import (
	"context"
	"errors"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/notify"
	"github.com/nextgenbank/backoffice/internal/security"
	"github.com/nextgenbank/backoffice/internal/token"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RequestPasswordReset enqueues a reset link for any existing account,
// including ones not yet activated. Unknown emails return nil.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, errFind := s.findByEmail(ctx, email, true)
	if errFind != nil {
		return apperr.Internal("find user", errFind)
	}
	if user == nil {
		return nil
	}
	raw, errIssue := s.issuer.Issue(user.ID, token.PurposePasswordReset, s.cfg.PasswordResetExpiry)
	if errIssue != nil {
		return apperr.Internal("issue reset token", errIssue)
	}
	if _, errSend := s.dispatcher.Send(ctx, notify.TemplatePasswordReset, user.Email, notify.Data{
		"reset_url":   s.cfg.APIBaseURL + "/api/v1/auth/reset-password/" + raw,
		"expiry_time": minutes(s.cfg.PasswordResetExpiry),
	}); errSend != nil {
		if errors.Is(errSend, context.Canceled) {
			return errSend
		}
		log.WithError(errSend).Errorf("failed to enqueue password reset email for %s", user.Email)
		return nil
	}
	metrics.AuthEvent("password_reset_requested")
	return nil
}

// ResetPassword redeems a reset token. Any reset or session token issued
// before the change stops verifying, which makes a reset link single use.
func (s *Service) ResetPassword(ctx context.Context, raw, newPassword string) error {
	claims, errVerify := s.issuer.Verify(raw, token.PurposePasswordReset)
	if errVerify != nil {
		return tokenError(errVerify, "Password reset token expired", "Invalid password reset token")
	}
	user, errFind := s.findByID(ctx, claims.Subject)
	if errFind != nil {
		return errFind
	}
	if claims.IssuedBefore(user.PasswordChangedAt) {
		return apperr.ErrTokenInvalid.WithMessage("Invalid password reset token")
	}

	hashed, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		return apperr.Internal("hash password", errHash)
	}
	now := s.clock()
	previous := user.AccountStatus
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLock := db.LockUser(tx, db.LockNamespaceUser, user.ID); errLock != nil {
			return errLock
		}
		updates := map[string]any{
			"hashed_password":       hashed,
			"password_changed_at":   now,
			"failed_login_attempts": 0,
			"last_failed_login":     nil,
			"otp":                   "",
			"otp_expiry_time":       nil,
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND account_status = ?", user.ID, models.AccountStatusLocked).
			Update("account_status", models.AccountStatusActive).Error
	})
	if errTx != nil {
		return apperr.Internal("reset password", errTx)
	}
	if previous == models.AccountStatusLocked {
		log.Infof("user %s state reset: %s -> %s", user.Email, previous, models.AccountStatusActive)
	}
	metrics.AuthEvent("password_reset")
	log.Infof("password reset successful for user %s", user.Email)
	return nil
}
