package kyc

import (
	"context"
	"errors"
	"strings"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NextOfKinInput is the validated payload for a new next-of-kin record.
type NextOfKinInput struct {
	FullName       string
	Relationship   string
	Email          string
	PhoneNumber    string
	Address        string
	City           string
	Country        string
	Nationality    string
	IDNumber       uint64
	PassportNumber string
	IsPrimary      bool
}

// NextOfKinUpdate carries optional changes to a next-of-kin record.
type NextOfKinUpdate struct {
	FullName       *string
	Relationship   *string
	Email          *string
	PhoneNumber    *string
	Address        *string
	City           *string
	Country        *string
	Nationality    *string
	IDNumber       *uint64
	PassportNumber *string
	IsPrimary      *bool
}

func countNextOfKins(tx *gorm.DB, userID uint64) (int64, error) {
	var count int64
	err := tx.Model(&models.NextOfKin{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func findNextOfKin(tx *gorm.DB, userID, id uint64) (*models.NextOfKin, error) {
	var kin models.NextOfKin
	if errFind := tx.Where("id = ? AND user_id = ?", id, userID).First(&kin).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNextOfKinNotFound
		}
		return nil, apperr.Internal("find next of kin", errFind)
	}
	return &kin, nil
}

// asServiceError keeps typed errors and wraps everything else as internal.
func asServiceError(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(op, err)
}

// CreateNextOfKin adds a record. A user holds at most three records and at
// most one primary; the first record is always primary.
func (s *Service) CreateNextOfKin(ctx context.Context, userID uint64, in NextOfKinInput) (*models.NextOfKin, error) {
	kin := &models.NextOfKin{
		UserID:         userID,
		FullName:       strings.TrimSpace(in.FullName),
		Relationship:   in.Relationship,
		Email:          strings.TrimSpace(in.Email),
		PhoneNumber:    in.PhoneNumber,
		Address:        in.Address,
		City:           in.City,
		Country:        in.Country,
		Nationality:    in.Nationality,
		IDNumber:       in.IDNumber,
		PassportNumber: in.PassportNumber,
		IsPrimary:      in.IsPrimary,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLock := db.LockUser(tx, db.LockNamespaceNextOfKin, userID); errLock != nil {
			return errLock
		}
		count, errCount := countNextOfKins(tx, userID)
		if errCount != nil {
			return errCount
		}
		if count >= models.MaxNextOfKins {
			return apperr.ErrNextOfKinLimit
		}
		if kin.IsPrimary {
			var primaries int64
			if errPrimary := tx.Model(&models.NextOfKin{}).Where("user_id = ? AND is_primary = ?", userID, true).Count(&primaries).Error; errPrimary != nil {
				return errPrimary
			}
			if primaries > 0 {
				return apperr.ErrPrimaryKinExists
			}
		}
		if count == 0 {
			kin.IsPrimary = true
		}
		return tx.Create(kin).Error
	})
	if errTx != nil {
		if db.IsUniqueViolation(errTx, "user_id") {
			return nil, apperr.ErrPrimaryKinExists
		}
		return nil, asServiceError("create next of kin", errTx)
	}
	log.Infof("next of kin created for user %d", userID)
	return kin, nil
}

// ListNextOfKins returns the records of userID, primary first.
func (s *Service) ListNextOfKins(ctx context.Context, userID uint64) ([]models.NextOfKin, error) {
	var rows []models.NextOfKin
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("is_primary DESC").Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, apperr.Internal("list next of kin", errFind)
	}
	return rows, nil
}

// GetNextOfKin returns one record owned by userID. Records of other users
// are reported as not found.
func (s *Service) GetNextOfKin(ctx context.Context, userID, id uint64) (*models.NextOfKin, error) {
	return findNextOfKin(s.db.WithContext(ctx), userID, id)
}

// UpdateNextOfKin applies upd. Promoting a record demotes the previous
// primary; demoting the only record is rejected.
func (s *Service) UpdateNextOfKin(ctx context.Context, userID, id uint64, upd NextOfKinUpdate) (*models.NextOfKin, error) {
	var out *models.NextOfKin
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLock := db.LockUser(tx, db.LockNamespaceNextOfKin, userID); errLock != nil {
			return errLock
		}
		kin, errFind := findNextOfKin(tx, userID, id)
		if errFind != nil {
			return errFind
		}

		updates := map[string]any{}
		if upd.IsPrimary != nil {
			if *upd.IsPrimary {
				if errDemote := tx.Model(&models.NextOfKin{}).
					Where("user_id = ? AND is_primary = ? AND id <> ?", userID, true, id).
					Update("is_primary", false).Error; errDemote != nil {
					return errDemote
				}
			} else {
				count, errCount := countNextOfKins(tx, userID)
				if errCount != nil {
					return errCount
				}
				if count == 1 {
					return apperr.ErrUnsetOnlyPrimaryKin
				}
			}
			updates["is_primary"] = *upd.IsPrimary
		}
		setString := func(column string, value *string) {
			if value != nil {
				updates[column] = strings.TrimSpace(*value)
			}
		}
		setString("full_name", upd.FullName)
		setString("relationship", upd.Relationship)
		setString("email", upd.Email)
		setString("phone_number", upd.PhoneNumber)
		setString("address", upd.Address)
		setString("city", upd.City)
		setString("country", upd.Country)
		setString("nationality", upd.Nationality)
		setString("passport_number", upd.PassportNumber)
		if upd.IDNumber != nil {
			updates["id_number"] = *upd.IDNumber
		}

		if len(updates) > 0 {
			if errUpdate := tx.Model(&models.NextOfKin{}).Where("id = ?", kin.ID).Updates(updates).Error; errUpdate != nil {
				return errUpdate
			}
		}
		reloaded, errReload := findNextOfKin(tx, userID, id)
		if errReload != nil {
			return errReload
		}
		out = reloaded
		return nil
	})
	if errTx != nil {
		if db.IsUniqueViolation(errTx, "user_id") {
			return nil, apperr.ErrPrimaryKinExists
		}
		return nil, asServiceError("update next of kin", errTx)
	}
	log.Infof("updated next of kin %d for user %d", id, userID)
	return out, nil
}

// DeleteNextOfKin removes a record unless it is the last one. Deleting the
// primary promotes the oldest remaining record.
func (s *Service) DeleteNextOfKin(ctx context.Context, userID, id uint64) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLock := db.LockUser(tx, db.LockNamespaceNextOfKin, userID); errLock != nil {
			return errLock
		}
		count, errCount := countNextOfKins(tx, userID)
		if errCount != nil {
			return errCount
		}
		if count <= 1 {
			return apperr.ErrOnlyNextOfKin
		}
		kin, errFind := findNextOfKin(tx, userID, id)
		if errFind != nil {
			return errFind
		}
		if errDelete := tx.Delete(&models.NextOfKin{}, kin.ID).Error; errDelete != nil {
			return errDelete
		}
		if !kin.IsPrimary {
			return nil
		}
		var next models.NextOfKin
		if errNext := tx.Where("user_id = ?", userID).Order("id ASC").First(&next).Error; errNext != nil {
			return errNext
		}
		return tx.Model(&models.NextOfKin{}).Where("id = ?", next.ID).Update("is_primary", true).Error
	})
	if errTx != nil {
		return asServiceError("delete next of kin", errTx)
	}
	log.Infof("next of kin deleted: %d for user %d", id, userID)
	return nil
}
