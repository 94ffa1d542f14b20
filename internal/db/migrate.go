package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nextgenbank/backoffice/internal/models"
	internalsettings "github.com/nextgenbank/backoffice/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

func allModels() []any {
	return []any{
		&models.User{},
		&models.Profile{},
		&models.NextOfKin{},
		&models.BankAccount{},
		&models.Setting{},
		&models.NotificationJob{},
		&models.UploadJob{},
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(allModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureDefaultSettings(conn); errSeed != nil {
		return errSeed
	}

	if errKinPrimary := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_next_of_kins_primary_user_id
		ON next_of_kins (user_id) WHERE is_primary = true
	`).Error; errKinPrimary != nil {
		return fmt.Errorf("db: create next of kin primary index: %w", errKinPrimary)
	}
	if errAccountPrimary := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_bank_accounts_primary_user_id
		ON bank_accounts (user_id) WHERE is_primary = true
	`).Error; errAccountPrimary != nil {
		return fmt.Errorf("db: create bank account primary index: %w", errAccountPrimary)
	}
	if errUserIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_status_created ON users (account_status, created_at DESC)
	`).Error; errUserIdx != nil {
		return fmt.Errorf("db: create users status index: %w", errUserIdx)
	}
	if errEmailIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))
	`).Error; errEmailIdx != nil {
		return fmt.Errorf("db: create users email index: %w", errEmailIdx)
	}
	if errNotifyIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notification_jobs_pending
		ON notification_jobs (next_attempt_at) WHERE status = 'pending'
	`).Error; errNotifyIdx != nil {
		return fmt.Errorf("db: create notification pending index: %w", errNotifyIdx)
	}
	return nil
}

// migrateSQLite applies SQLite-specific schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(allModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureDefaultSettings(conn); errSeed != nil {
		return errSeed
	}

	if errKinPrimary := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_next_of_kins_primary_user_id
		ON next_of_kins (user_id) WHERE is_primary = 1
	`).Error; errKinPrimary != nil {
		return fmt.Errorf("db: create next of kin primary index: %w", errKinPrimary)
	}
	if errAccountPrimary := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_bank_accounts_primary_user_id
		ON bank_accounts (user_id) WHERE is_primary = 1
	`).Error; errAccountPrimary != nil {
		return fmt.Errorf("db: create bank account primary index: %w", errAccountPrimary)
	}
	if errUserIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_status_created ON users (account_status, created_at DESC)
	`).Error; errUserIdx != nil {
		return fmt.Errorf("db: create users status index: %w", errUserIdx)
	}
	return nil
}

// ensureDefaultSettings seeds runtime settings that the services read.
func ensureDefaultSettings(conn *gorm.DB) error {
	if errEnsure := ensureIntSetting(conn, internalsettings.RateLimitKey, internalsettings.DefaultRateLimit); errEnsure != nil {
		return errEnsure
	}
	if errEnsure := ensureIntSetting(conn, internalsettings.RateLimitPerEmailKey, internalsettings.DefaultRateLimitPerEmail); errEnsure != nil {
		return errEnsure
	}
	if errEnsure := ensureIntSetting(conn, internalsettings.RateLimitWindowSecondsKey, internalsettings.DefaultRateLimitWindowSeconds); errEnsure != nil {
		return errEnsure
	}
	if errEnsure := ensureBoolSetting(conn, internalsettings.RateLimitRedisEnabledKey, false); errEnsure != nil {
		return errEnsure
	}
	return ensureIntSetting(conn, internalsettings.ProfileListPageSizeKey, internalsettings.DefaultProfileListPageSize)
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureSetting(conn, key, payload)
}

// ensureBoolSetting ensures a boolean setting exists and defaults when empty.
func ensureBoolSetting(conn *gorm.DB, key string, value bool) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureSetting(conn, key, payload)
}

func ensureSetting(conn *gorm.DB, key string, payload []byte) error {
	rawValue := datatypes.JSON(payload)

	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     rawValue,
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
