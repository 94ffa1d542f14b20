package app

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nextgenbank/backoffice/internal/config"
)

var errNoDatabaseDSN = errors.New("database dsn not set")

// setupPrefill is what the setup form can show before the operator types
// anything. DatabaseLocked means the DSN came from the environment and the
// setup request's database fields are ignored.
type setupPrefill struct {
	DatabaseLocked      bool   `json:"locked"`
	DatabaseType        string `json:"database_type,omitempty"`
	DatabaseHost        string `json:"database_host,omitempty"`
	DatabasePort        int    `json:"database_port,omitempty"`
	DatabaseUser        string `json:"database_user,omitempty"`
	DatabaseName        string `json:"database_name,omitempty"`
	DatabaseSSLMode     string `json:"database_ssl_mode,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	DatabasePasswordSet bool   `json:"database_password_set"`
	SiteName            string `json:"site_name"`
	APIBaseURL          string `json:"api_base_url,omitempty"`
	Environment         string `json:"environment"`
}

// loadSetupPrefill reads the deployment environment through getenv.
// A DSN that cannot be parsed leaves the database fields unlocked.
func loadSetupPrefill(getenv func(string) string) setupPrefill {
	prefill := setupPrefill{
		SiteName:    strings.TrimSpace(getenv(config.EnvSiteName)),
		APIBaseURL:  strings.TrimRight(strings.TrimSpace(getenv(config.EnvAPIBaseURL)), "/"),
		Environment: strings.ToLower(strings.TrimSpace(getenv(config.EnvEnvironment))),
	}
	if prefill.SiteName == "" {
		prefill.SiteName = defaultSiteName
	}
	if prefill.Environment == "" {
		prefill.Environment = config.EnvironmentLocal
	}

	database, errParse := parseDatabaseDSN(getenv(config.EnvDBConnection))
	if errParse != nil {
		return prefill
	}
	database.SiteName = prefill.SiteName
	database.APIBaseURL = prefill.APIBaseURL
	database.Environment = prefill.Environment
	database.DatabaseLocked = true
	return database
}

// parseDatabaseDSN splits a postgres URL or a sqlite file DSN into the
// fields the setup form collects. The password is never echoed back.
func parseDatabaseDSN(dsn string) (setupPrefill, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return setupPrefill{}, errNoDatabaseDSN
	}

	if len(dsn) >= len("file:") && strings.EqualFold(dsn[:len("file:")], "file:") {
		path, _, _ := strings.Cut(dsn[len("file:"):], "?")
		path = strings.TrimSpace(path)
		if path == "" {
			return setupPrefill{}, fmt.Errorf("sqlite dsn has no path")
		}
		return setupPrefill{DatabaseType: "sqlite", DatabasePath: path}, nil
	}

	u, errParse := url.Parse(dsn)
	if errParse != nil {
		return setupPrefill{}, fmt.Errorf("parse dsn: %w", errParse)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "postgres" && scheme != "postgresql" {
		return setupPrefill{}, fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}

	out := setupPrefill{
		DatabaseType:    "postgres",
		DatabaseHost:    u.Hostname(),
		DatabasePort:    5432,
		DatabaseName:    strings.TrimPrefix(u.Path, "/"),
		DatabaseSSLMode: u.Query().Get("sslmode"),
	}
	if rawPort := u.Port(); rawPort != "" {
		port, errPort := strconv.Atoi(rawPort)
		if errPort != nil || port <= 0 || port > 65535 {
			return setupPrefill{}, fmt.Errorf("invalid dsn port %q", rawPort)
		}
		out.DatabasePort = port
	}
	if u.User != nil {
		out.DatabaseUser = u.User.Username()
		_, out.DatabasePasswordSet = u.User.Password()
	}
	if out.DatabaseSSLMode == "" {
		out.DatabaseSSLMode = "disable"
	}
	if out.DatabaseHost == "" || out.DatabaseName == "" {
		return setupPrefill{}, fmt.Errorf("postgres dsn needs a host and database name")
	}
	return out, nil
}
