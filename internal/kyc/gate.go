package kyc

import (
	"context"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/models"
	"gorm.io/gorm"
)

// Complete reports whether userID has a profile and at least one next of
// kin. It runs on the given handle so callers can use it inside a transaction.
func Complete(tx *gorm.DB, userID uint64) (bool, error) {
	var profiles int64
	if errCount := tx.Model(&models.Profile{}).Where("user_id = ?", userID).Count(&profiles).Error; errCount != nil {
		return false, errCount
	}
	if profiles == 0 {
		return false, nil
	}
	var kins int64
	if errCount := tx.Model(&models.NextOfKin{}).Where("user_id = ?", userID).Count(&kins).Error; errCount != nil {
		return false, errCount
	}
	return kins > 0, nil
}

// ValidateKYC reports whether userID may open a bank account.
func (s *Service) ValidateKYC(ctx context.Context, userID uint64) (bool, error) {
	ok, errCheck := Complete(s.db.WithContext(ctx), userID)
	if errCheck != nil {
		return false, apperr.Internal("validate kyc", errCheck)
	}
	return ok, nil
}
