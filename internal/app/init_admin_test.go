package app

import (
	"path/filepath"
	"testing"

	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/security"
)

func adminRequest() AdminRequest {
	return AdminRequest{
		SiteName:              "NextGen Bank",
		AdminEmail:            "Root@Bank.test",
		AdminPassword:         "super-secret-1",
		AdminFirstName:        "Ada",
		AdminLastName:         "Root",
		AdminIDNo:             1,
		AdminSecurityQuestion: string(models.SecurityQuestionBirthCity),
		AdminSecurityAnswer:   "London",
	}
}

func TestCreateAdminUserWithConn_SetsSuperAdmin(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "backoffice-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if errCreate := CreateAdminUserWithConn(conn, adminRequest()); errCreate != nil {
		t.Fatalf("CreateAdminUserWithConn: %v", errCreate)
	}

	var admin models.User
	if errFind := conn.First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if admin.Role != models.RoleSuperAdmin {
		t.Fatalf("expected first admin to be super admin, got %s", admin.Role)
	}
	if !admin.IsActive || admin.AccountStatus != models.AccountStatusActive {
		t.Fatalf("expected admin to be active, got is_active=%v status=%s", admin.IsActive, admin.AccountStatus)
	}
	if admin.Email != "root@bank.test" {
		t.Fatalf("expected normalized email, got %q", admin.Email)
	}
	if !security.VerifyPassword("super-secret-1", admin.HashedPassword) {
		t.Fatalf("expected stored password hash to verify")
	}
	if len(admin.Username) == 0 || admin.Username[:3] != "NB-" {
		t.Fatalf("expected username with site initials, got %q", admin.Username)
	}
}
