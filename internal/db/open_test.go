package db

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func TestOpen_RecordNotFoundIsNotLogged(t *testing.T) {
	conn := openTestDB(t)

	var buf bytes.Buffer
	previous := log.StandardLogger().Out
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(previous) })

	var user models.User
	errFind := conn.Where("email = ?", "nobody@x.com").First(&user).Error
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", errFind)
	}
	if strings.Contains(buf.String(), "record not found") {
		t.Fatalf("expected no log line for a missing row, got %q", buf.String())
	}

	if errExec := conn.Exec("SELECT * FROM missing_table").Error; errExec == nil {
		t.Fatalf("expected query error")
	}
	if !strings.Contains(buf.String(), "missing_table") {
		t.Fatalf("expected query errors to be logged, got %q", buf.String())
	}
}

func TestOpen_RejectsEmptyDSN(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
