package account

import (
	"context"
	"strconv"
	"strings"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
)

// ListFilter narrows the staff user listing.
type ListFilter struct {
	Search   string
	Status   models.AccountStatus
	Role     models.Role
	Page     int
	PageSize int
}

// ListUsers returns one page of users, newest first, and the total match count.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if filter.Status != "" {
		q = q.Where("account_status = ?", filter.Status)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := db.NormalizeLikePattern(s.db, "%"+search+"%")
		where := db.CaseInsensitiveLikeExpr(s.db, "username") + " OR " + db.CaseInsensitiveLikeExpr(s.db, "email")
		args := []any{pattern, pattern}
		if id, errParse := strconv.ParseUint(search, 10, 64); errParse == nil {
			where += " OR id = ? OR id_no = ?"
			args = append(args, id, id)
		}
		q = q.Where(where, args...)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, apperr.Internal("count users", errCount)
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var rows []models.User
	if errFind := q.Order("created_at DESC").Order("id DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error; errFind != nil {
		return nil, 0, apperr.Internal("list users", errFind)
	}
	return rows, total, nil
}

// GetUser returns any user by id.
func (s *Service) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	return s.findByID(ctx, id)
}

// SetRole changes the role of a user.
func (s *Service) SetRole(ctx context.Context, id uint64, role models.Role) (*models.User, error) {
	valid := false
	for _, known := range models.Roles {
		if known == role {
			valid = true
			break
		}
	}
	if !valid {
		return nil, apperr.New(apperr.KindValidation, "invalid_role", "Invalid role", "")
	}
	user, errFind := s.findByID(ctx, id)
	if errFind != nil {
		return nil, errFind
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role).Error; errUpdate != nil {
		return nil, apperr.Internal("set role", errUpdate)
	}
	log.Infof("user %s role changed: %s -> %s", user.Email, user.Role, role)
	user.Role = role
	return user, nil
}

// Deactivate moves a user to INACTIVE. Login and token use are rejected until
// Reactivate is called.
func (s *Service) Deactivate(ctx context.Context, id uint64) (*models.User, error) {
	user, errFind := s.findByID(ctx, id)
	if errFind != nil {
		return nil, errFind
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"account_status":  models.AccountStatusInactive,
		"otp":             "",
		"otp_expiry_time": nil,
	}).Error; errUpdate != nil {
		return nil, apperr.Internal("deactivate user", errUpdate)
	}
	log.Infof("user %s state changed: %s -> %s", user.Email, user.AccountStatus, models.AccountStatusInactive)
	user.AccountStatus = models.AccountStatusInactive
	user.OTP = ""
	user.OTPExpiryTime = nil
	return user, nil
}

// Reactivate restores a user to ACTIVE and clears failure state. It also
// unlocks LOCKED users and activates PENDING ones.
func (s *Service) Reactivate(ctx context.Context, id uint64) (*models.User, error) {
	user, errFind := s.findByID(ctx, id)
	if errFind != nil {
		return nil, errFind
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"is_active":             true,
		"account_status":        models.AccountStatusActive,
		"failed_login_attempts": 0,
		"last_failed_login":     nil,
	}).Error; errUpdate != nil {
		return nil, apperr.Internal("reactivate user", errUpdate)
	}
	log.Infof("user %s state changed: %s -> %s", user.Email, user.AccountStatus, models.AccountStatusActive)
	user.IsActive = true
	user.AccountStatus = models.AccountStatusActive
	user.FailedLoginAttempts = 0
	user.LastFailedLogin = nil
	return user, nil
}

// DeleteUser removes a user together with profile, next of kin and accounts.
func (s *Service) DeleteUser(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return apperr.Internal("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}
