package app

import (
	"fmt"

	"github.com/nextgenbank/backoffice/internal/models"
	"gorm.io/gorm"
)

// HasAdminInitialized reports whether the system has at least one super admin.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
