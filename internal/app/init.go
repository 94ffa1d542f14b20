package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/account"
	"github.com/nextgenbank/backoffice/internal/config"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/http/validation"
	"github.com/nextgenbank/backoffice/internal/logging"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/security"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// AdminRequest describes the first super admin account.
type AdminRequest struct {
	SiteName              string `json:"site_name"`
	AdminEmail            string `json:"admin_email" binding:"required,email"`
	AdminPassword         string `json:"admin_password" binding:"required,min=8,max=40"`
	AdminFirstName        string `json:"admin_first_name" binding:"required,max=30"`
	AdminLastName         string `json:"admin_last_name" binding:"required,max=30"`
	AdminIDNo             uint64 `json:"admin_id_no" binding:"required,gt=0"`
	AdminSecurityQuestion string `json:"admin_security_question" binding:"required,oneof=mother_maiden_name childhood_friend favorite_color birth_city"`
	AdminSecurityAnswer   string `json:"admin_security_answer" binding:"required,max=30"`
}

// InitRequest contains parameters for initial system setup.
type InitRequest struct {
	DatabaseType     string `json:"database_type"`
	DatabaseHost     string `json:"database_host"`
	DatabasePort     int    `json:"database_port"`
	DatabaseUser     string `json:"database_user"`
	DatabasePassword string `json:"database_password"`
	DatabaseName     string `json:"database_name"`
	DatabasePath     string `json:"database_path"`
	DatabaseSSLMode  string `json:"database_ssl_mode"`
	APIBaseURL       string `json:"api_base_url"`
	AdminRequest
}

// InitStatusResponse reports whether initialization is complete.
type InitStatusResponse struct {
	Initialized bool `json:"initialized"`
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "backoffice.db"

// BuildDSN builds a database DSN from the init request.
func BuildDSN(req InitRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "postgres":
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			req.DatabasePort,
			req.DatabaseName,
			sslMode,
		), nil
	case "sqlite":
		path := strings.TrimSpace(req.DatabasePath)
		if path == "" {
			path = defaultSQLitePath
		}
		return buildSQLiteDSN(path), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// buildSQLiteDSN constructs a SQLite DSN with default parameters.
func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_foreign_keys=on",
		"_synchronous=NORMAL",
	}, "&")
}

// TestDatabaseConnection validates that the DSN can connect and ping.
func TestDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.Errorf("sql db close error: %v", errClose)
		}
	}()
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.Ping()
}

// validateInitRequest normalizes and validates init input data.
func validateInitRequest(req *InitRequest) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = "postgres"
	}
	req.DatabaseType = dbType

	switch dbType {
	case "postgres":
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return fmt.Errorf("Database host is required")
		}
		if req.DatabasePort <= 0 {
			return fmt.Errorf("Invalid database port")
		}
		if strings.TrimSpace(req.DatabaseUser) == "" {
			return fmt.Errorf("Database username is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return fmt.Errorf("Database name is required")
		}
		if strings.TrimSpace(req.DatabasePassword) == "" {
			return fmt.Errorf("Database password is required")
		}
	case "sqlite":
		if strings.TrimSpace(req.DatabasePath) == "" {
			req.DatabasePath = defaultSQLitePath
		}
	default:
		return fmt.Errorf("Unsupported database type")
	}
	req.SiteName = strings.TrimSpace(req.SiteName)
	if req.SiteName == "" {
		req.SiteName = defaultSiteName
	}
	req.APIBaseURL = strings.TrimRight(strings.TrimSpace(req.APIBaseURL), "/")
	return nil
}

const defaultSiteName = "NextGen Bank"

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host          string  `yaml:"host"`
	Port          int     `yaml:"port"`
	DatabaseDSN   string  `yaml:"database-dsn"`
	Debug         bool    `yaml:"debug"`
	LoggingToFile bool    `yaml:"logging-to-file"`
	Environment   string  `yaml:"environment"`
	SiteName      string  `yaml:"site-name"`
	APIBaseURL    string  `yaml:"api-base-url,omitempty"`
	Auth          authCfg `yaml:"auth"`
}

// authCfg holds the two token keys for the generated config file.
type authCfg struct {
	TokenSecret string `yaml:"token-secret"`
	SigningKey  string `yaml:"signing-key"`
}

// generateSecret creates a random key string.
func generateSecret() (string, error) {
	return security.GenerateRandomString(48)
}

// WriteConfigFile writes the initial config file to disk with freshly
// generated token keys.
func WriteConfigFile(configPath string, req InitRequest, dsn string, port int) error {
	tokenSecret, errSecret := generateSecret()
	if errSecret != nil {
		return fmt.Errorf("generate token secret: %w", errSecret)
	}
	signingKey, errKey := generateSecret()
	if errKey != nil {
		return fmt.Errorf("generate signing key: %w", errKey)
	}
	cfg := configFile{
		Port:        port,
		DatabaseDSN: dsn,
		Environment: config.EnvironmentProduction,
		SiteName:    req.SiteName,
		APIBaseURL:  req.APIBaseURL,
		Auth: authCfg{
			TokenSecret: tokenSecret,
			SigningKey:  signingKey,
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// CreateAdminUser opens dsn, migrates it and creates the first super admin.
func CreateAdminUser(dsn string, req AdminRequest) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close(conn) }()

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	return CreateAdminUserWithConn(conn, req)
}

// CreateAdminUserWithConn creates the first super admin. The account is
// active immediately and skips email activation.
func CreateAdminUserWithConn(conn *gorm.DB, req AdminRequest) error {
	if conn == nil {
		return fmt.Errorf("open database: nil connection")
	}

	hashedPassword, errHash := security.HashPassword(req.AdminPassword)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}
	siteName := strings.TrimSpace(req.SiteName)
	if siteName == "" {
		siteName = defaultSiteName
	}
	username, errUsername := account.GenerateUsername(siteName)
	if errUsername != nil {
		return fmt.Errorf("generate username: %w", errUsername)
	}

	now := time.Now().UTC()
	admin := models.User{
		Username:          username,
		Email:             account.NormalizeEmail(req.AdminEmail),
		FirstName:         strings.TrimSpace(req.AdminFirstName),
		LastName:          strings.TrimSpace(req.AdminLastName),
		IDNo:              req.AdminIDNo,
		HashedPassword:    hashedPassword,
		SecurityQuestion:  models.SecurityQuestion(req.AdminSecurityQuestion),
		SecurityAnswer:    req.AdminSecurityAnswer,
		IsActive:          true,
		AccountStatus:     models.AccountStatusActive,
		Role:              models.RoleSuperAdmin,
		PasswordChangedAt: &now,
	}

	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}
	log.Infof("created super admin %s", admin.Email)
	return nil
}

// ErrInitCompleted signals that initialization finished and the server should restart.
var ErrInitCompleted = errors.New("init completed")

// corsMiddleware enables permissive CORS for the init server.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// newInitEngine builds the setup router. done is closed after a successful setup.
func newInitEngine(configPath string, port int, done func()) *gin.Engine {
	validation.Register()
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinLogger())
	engine.Use(corsMiddleware())

	engine.GET("/v0/init/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, InitStatusResponse{Initialized: ConfigExists(configPath)})
	})

	engine.GET("/v0/init/prefill", func(c *gin.Context) {
		c.JSON(http.StatusOK, loadSetupPrefill(os.Getenv))
	})

	engine.POST("/v0/init/setup", func(c *gin.Context) {
		if ConfigExists(configPath) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "already_initialized", "message": "System already initialized"}})
			return
		}

		var req InitRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			respond.BindError(c, errBind)
			return
		}

		if errValidate := validateInitRequest(&req); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_setup", "message": errValidate.Error()}})
			return
		}

		dsn, errBuild := BuildDSN(req)
		if errBuild != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_setup", "message": errBuild.Error()}})
			return
		}

		if errTest := TestDatabaseConnection(dsn); errTest != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "database_unreachable", "message": fmt.Sprintf("Database connection failed: %v", errTest)}})
			return
		}

		if errWrite := WriteConfigFile(configPath, req, dsn, port); errWrite != nil {
			log.WithError(errWrite).Error("init: write config failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "Failed to write config"}})
			return
		}

		if errAdmin := CreateAdminUser(dsn, req.AdminRequest); errAdmin != nil {
			if errRemove := os.Remove(configPath); errRemove != nil {
				log.Errorf("remove config file error: %v", errRemove)
			}
			log.WithError(errAdmin).Error("init: create admin failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "Failed to create admin"}})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Initialization successful"})
		if done != nil {
			done()
		}
	})

	engine.NoRoute(func(c *gin.Context) {
		if ConfigExists(configPath) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "initializing", "message": "System initializing, please restart the server"}})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{
			"code":    "not_initialized",
			"message": "System is not initialized",
			"action":  "POST /v0/init/setup to configure the database and the first administrator",
		}})
	})
	return engine
}

// RunInitServer starts the initialization server when config is missing.
func RunInitServer(ctx context.Context, cfg config.AppConfig, port int) error {
	gin.SetMode(gin.ReleaseMode)
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	initDone := make(chan struct{})
	engine := newInitEngine(configPath, port, func() {
		go func() {
			time.Sleep(500 * time.Millisecond)
			close(initDone)
		}()
	})

	addr := fmt.Sprintf(":%d", port)
	log.Infof("starting init server on %s (config not found at %s)", addr, configPath)

	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-initDone:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("init server shutdown error: %v", errShutdown)
		}
	}()

	if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
		return errListen
	}

	select {
	case <-initDone:
		return ErrInitCompleted
	default:
		return nil
	}
}
