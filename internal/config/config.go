package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvEnvironment  = "ENVIRONMENT"
	EnvTokenSecret  = "TOKEN_SECRET"
	EnvSigningKey   = "SIGNING_KEY"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUsername = "SMTP_USERNAME"
	EnvSMTPPassword = "SMTP_PASSWORD"
	EnvSiteName     = "SITE_NAME"
	EnvAPIBaseURL   = "API_BASE_URL"
)

// Environment names that change default timings.
const (
	EnvironmentLocal      = "local"
	EnvironmentProduction = "production"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// ErrMissingSigningKeys indicates one of the token keys is absent.
var ErrMissingSigningKeys = errors.New("missing signing keys (set `auth.token-secret` and `auth.signing-key`)")

// ErrSharedSigningKey indicates both token classes would be signed with one key.
var ErrSharedSigningKey = errors.New("auth.token-secret and auth.signing-key must differ")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// AuthConfig holds account lifecycle timings and token keys.
type AuthConfig struct {
	OTPExpiry           time.Duration `yaml:"otp-expiry"`
	LoginAttempts       int           `yaml:"login-attempts"`
	LockoutDuration     time.Duration `yaml:"lockout-duration"`
	ActivationExpiry    time.Duration `yaml:"activation-expiry"`
	PasswordResetExpiry time.Duration `yaml:"password-reset-expiry"`
	AccessExpiry        time.Duration `yaml:"access-expiry"`
	RefreshExpiry       time.Duration `yaml:"refresh-expiry"`
	TokenSecret         string        `yaml:"token-secret"`
	SigningKey          string        `yaml:"signing-key"`
}

// CookieConfig controls session cookie attributes.
type CookieConfig struct {
	Secure   *bool  `yaml:"secure"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	SameSite string `yaml:"same-site"`
}

// BankConfig controls account number generation and limits.
type BankConfig struct {
	BankCode      string            `yaml:"bank-code"`
	BranchCode    string            `yaml:"branch-code"`
	CurrencyCodes map[string]string `yaml:"currency-codes"`
	MaxAccounts   int               `yaml:"max-accounts"`
}

// MailConfig holds SMTP and dispatcher worker settings.
type MailConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	From         string        `yaml:"from"`
	FromName     string        `yaml:"from-name"`
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll-interval"`
}

// UploadConfig holds image upload limits and storage location.
type UploadConfig struct {
	Dir              string   `yaml:"dir"`
	PublicBaseURL    string   `yaml:"public-base-url"`
	MaxFileSize      int64    `yaml:"max-file-size"`
	MaxDimension     int      `yaml:"max-dimension"`
	AllowedMIMETypes []string `yaml:"allowed-mime-types"`
}

// RedisConfig holds the optional Redis connection used for rate limiting and health.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Config is the full application configuration.
type Config struct {
	DatabaseDSN   string       `yaml:"database-dsn"`
	Host          string       `yaml:"host"`
	Port          int          `yaml:"port"`
	Debug         bool         `yaml:"debug"`
	LoggingToFile bool         `yaml:"logging-to-file"`
	LogDir        string       `yaml:"log-dir"`
	Environment   string       `yaml:"environment"`
	SiteName      string       `yaml:"site-name"`
	APIBaseURL    string       `yaml:"api-base-url"`
	SupportEmail  string       `yaml:"support-email"`
	Auth          AuthConfig   `yaml:"auth"`
	Cookies       CookieConfig `yaml:"cookies"`
	Bank          BankConfig   `yaml:"bank"`
	Mail          MailConfig   `yaml:"mail"`
	Uploads       UploadConfig `yaml:"uploads"`
	Redis         RedisConfig  `yaml:"redis"`
}

// IsLocal reports whether the local environment defaults apply.
func (c Config) IsLocal() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentLocal)
}

// SecureCookies reports whether cookies carry the Secure attribute.
func (c Config) SecureCookies() bool {
	if c.Cookies.Secure != nil {
		return *c.Cookies.Secure
	}
	return true
}

// Load reads the YAML config file, applies environment overrides and defaults.
// A missing file is not an error; every value then comes from env and defaults.
func Load(configPath string) (Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(configPath)
	if errRead != nil && !errors.Is(errRead, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return ErrMissingDatabaseDSN
	}
	if strings.TrimSpace(c.Auth.TokenSecret) == "" || strings.TrimSpace(c.Auth.SigningKey) == "" {
		return ErrMissingSigningKeys
	}
	if c.Auth.TokenSecret == c.Auth.SigningKey {
		return ErrSharedSigningKey
	}
	if c.Auth.OTPExpiry <= 0 || c.Auth.AccessExpiry <= 0 || c.Auth.RefreshExpiry <= 0 {
		return fmt.Errorf("auth expiries must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if env := strings.TrimSpace(os.Getenv(EnvEnvironment)); env != "" {
		cfg.Environment = env
	}
	if siteName := strings.TrimSpace(os.Getenv(EnvSiteName)); siteName != "" {
		cfg.SiteName = siteName
	}
	if baseURL := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); baseURL != "" {
		cfg.APIBaseURL = strings.TrimRight(baseURL, "/")
	}
	if secret := strings.TrimSpace(os.Getenv(EnvTokenSecret)); secret != "" {
		cfg.Auth.TokenSecret = secret
	}
	if key := strings.TrimSpace(os.Getenv(EnvSigningKey)); key != "" {
		cfg.Auth.SigningKey = key
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}
	if host := strings.TrimSpace(os.Getenv(EnvSMTPHost)); host != "" {
		cfg.Mail.Host = host
	}
	if portRaw := strings.TrimSpace(os.Getenv(EnvSMTPPort)); portRaw != "" {
		if port, errParse := strconv.Atoi(portRaw); errParse == nil && port > 0 {
			cfg.Mail.Port = port
		}
	}
	if username := strings.TrimSpace(os.Getenv(EnvSMTPUsername)); username != "" {
		cfg.Mail.Username = username
	}
	if password := os.Getenv(EnvSMTPPassword); password != "" {
		cfg.Mail.Password = password
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = EnvironmentLocal
	}
	local := cfg.IsLocal()

	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port <= 0 {
		cfg.Port = 8318
	}
	if strings.TrimSpace(cfg.SiteName) == "" {
		cfg.SiteName = "NextGen Bank"
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if strings.TrimSpace(cfg.SupportEmail) == "" {
		cfg.SupportEmail = "support@nextgenbank.local"
	}
	if strings.TrimSpace(cfg.LogDir) == "" {
		cfg.LogDir = "logs"
	}

	auth := &cfg.Auth
	if auth.OTPExpiry <= 0 {
		auth.OTPExpiry = pick(local, 2*time.Minute, 5*time.Minute)
	}
	if auth.LoginAttempts <= 0 {
		auth.LoginAttempts = 3
	}
	if auth.LockoutDuration <= 0 {
		auth.LockoutDuration = pick(local, 2*time.Minute, 5*time.Minute)
	}
	if auth.ActivationExpiry <= 0 {
		auth.ActivationExpiry = pick(local, 2*time.Minute, 5*time.Minute)
	}
	if auth.PasswordResetExpiry <= 0 {
		auth.PasswordResetExpiry = pick(local, 3*time.Minute, 5*time.Minute)
	}
	if auth.AccessExpiry <= 0 {
		auth.AccessExpiry = pick(local, 30*time.Minute, 15*time.Minute)
	}
	if auth.RefreshExpiry <= 0 {
		auth.RefreshExpiry = 24 * time.Hour
	}

	if strings.TrimSpace(cfg.Cookies.Path) == "" {
		cfg.Cookies.Path = "/"
	}
	if strings.TrimSpace(cfg.Cookies.SameSite) == "" {
		cfg.Cookies.SameSite = "lax"
	}

	if strings.TrimSpace(cfg.Bank.BankCode) == "" {
		cfg.Bank.BankCode = "123"
	}
	if strings.TrimSpace(cfg.Bank.BranchCode) == "" {
		cfg.Bank.BranchCode = "456"
	}
	if len(cfg.Bank.CurrencyCodes) == 0 {
		cfg.Bank.CurrencyCodes = map[string]string{"USD": "1", "EUR": "2", "GBP": "3", "KES": "4"}
	}
	if cfg.Bank.MaxAccounts <= 0 {
		cfg.Bank.MaxAccounts = 3
	}

	if strings.TrimSpace(cfg.Mail.Host) == "" {
		cfg.Mail.Host = "localhost"
	}
	if cfg.Mail.Port <= 0 {
		cfg.Mail.Port = 1025
	}
	if strings.TrimSpace(cfg.Mail.From) == "" {
		cfg.Mail.From = "no-reply@nextgenbank.local"
	}
	if strings.TrimSpace(cfg.Mail.FromName) == "" {
		cfg.Mail.FromName = cfg.SiteName
	}
	if cfg.Mail.Workers <= 0 {
		cfg.Mail.Workers = 2
	}
	if cfg.Mail.PollInterval <= 0 {
		cfg.Mail.PollInterval = 2 * time.Second
	}

	if strings.TrimSpace(cfg.Uploads.Dir) == "" {
		cfg.Uploads.Dir = "uploads"
	}
	if strings.TrimSpace(cfg.Uploads.PublicBaseURL) == "" {
		cfg.Uploads.PublicBaseURL = cfg.APIBaseURL + "/media"
	}
	cfg.Uploads.PublicBaseURL = strings.TrimRight(cfg.Uploads.PublicBaseURL, "/")
	if cfg.Uploads.MaxFileSize <= 0 {
		cfg.Uploads.MaxFileSize = 5 * 1024 * 1024
	}
	if cfg.Uploads.MaxDimension <= 0 {
		cfg.Uploads.MaxDimension = 4096
	}
	if len(cfg.Uploads.AllowedMIMETypes) == 0 {
		cfg.Uploads.AllowedMIMETypes = []string{"image/jpeg", "image/png"}
	}

	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = "ngb:rl"
	}
}

func pick(local bool, localValue, otherValue time.Duration) time.Duration {
	if local {
		return localValue
	}
	return otherValue
}
