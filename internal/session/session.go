// Package session issues access and refresh tokens, manages the session
// cookies and authenticates requests.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/token"
	log "github.com/sirupsen/logrus"
)

// Cookie names of the session contract.
const (
	AccessCookie   = "access_token"
	RefreshCookie  = "refresh_token"
	LoggedInCookie = "logged_in"
)

const userContextKey = "sessionUser"

// UserSource resolves an activated user in good standing.
type UserSource interface {
	ActiveUser(ctx context.Context, id uint64) (*models.User, error)
}

// Config holds token lifetimes and cookie attributes.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Path       string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
}

// ParseSameSite converts a config value into an http.SameSite mode.
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Tokens is a freshly issued session.
type Tokens struct {
	Access  string
	Refresh string
}

// Manager issues and validates sessions.
type Manager struct {
	issuer *token.Issuer
	users  UserSource
	cfg    Config
}

// NewManager constructs a Manager.
func NewManager(issuer *token.Issuer, users UserSource, cfg Config) *Manager {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Manager{issuer: issuer, users: users, cfg: cfg}
}

// IssueSession signs a new access and refresh token pair for userID.
func (m *Manager) IssueSession(userID uint64) (Tokens, error) {
	access, errAccess := m.issuer.Issue(userID, token.PurposeAccess, m.cfg.AccessTTL)
	if errAccess != nil {
		return Tokens{}, apperr.Internal("issue access token", errAccess)
	}
	refresh, errRefresh := m.issuer.Issue(userID, token.PurposeRefresh, m.cfg.RefreshTTL)
	if errRefresh != nil {
		return Tokens{}, apperr.Internal("issue refresh token", errRefresh)
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

// Refresh mints a new access token from a refresh token. The refresh token
// is not rotated. The user's status is re-validated, and tokens issued
// before the last password change are rejected.
func (m *Manager) Refresh(ctx context.Context, raw string) (string, *models.User, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil, apperr.ErrNotAuthenticated.WithMessage("No refresh token provided")
	}
	claims, errVerify := m.issuer.Verify(raw, token.PurposeRefresh)
	if errVerify != nil {
		if errors.Is(errVerify, token.ErrExpired) {
			return "", nil, apperr.ErrTokenExpired.WithMessage("Refresh token has expired")
		}
		return "", nil, apperr.ErrTokenInvalid.WithMessage("Invalid refresh token")
	}
	user, errUser := m.resolve(ctx, claims)
	if errUser != nil {
		return "", nil, errUser
	}
	access, errAccess := m.issuer.Issue(user.ID, token.PurposeAccess, m.cfg.AccessTTL)
	if errAccess != nil {
		return "", nil, apperr.Internal("issue access token", errAccess)
	}
	metrics.AuthEvent("refresh")
	log.Infof("refreshed access token for user %s", user.Email)
	return access, user, nil
}

// Authenticate resolves the user behind an access token.
func (m *Manager) Authenticate(ctx context.Context, raw string) (*models.User, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	claims, errVerify := m.issuer.Verify(raw, token.PurposeAccess)
	if errVerify != nil {
		if errors.Is(errVerify, token.ErrExpired) {
			return nil, apperr.ErrTokenExpired
		}
		return nil, apperr.ErrTokenInvalid
	}
	return m.resolve(ctx, claims)
}

func (m *Manager) resolve(ctx context.Context, claims token.Claims) (*models.User, error) {
	user, errUser := m.users.ActiveUser(ctx, claims.Subject)
	if errUser != nil {
		if errors.Is(errUser, apperr.ErrUserNotFound) {
			return nil, apperr.ErrNotAuthenticated.WithMessage("User not found")
		}
		return nil, errUser
	}
	if claims.IssuedBefore(user.PasswordChangedAt) {
		return nil, apperr.ErrTokenInvalid.WithMessage("Session ended by a password change")
	}
	return user, nil
}

// SetCookies writes the access and logged-in cookies, plus the refresh
// cookie when tokens.Refresh is set.
func (m *Manager) SetCookies(c *gin.Context, tokens Tokens) {
	c.SetSameSite(m.cfg.SameSite)
	accessAge := int(m.cfg.AccessTTL / time.Second)
	c.SetCookie(AccessCookie, tokens.Access, accessAge, m.cfg.Path, m.cfg.Domain, m.cfg.Secure, true)
	if tokens.Refresh != "" {
		c.SetCookie(RefreshCookie, tokens.Refresh, int(m.cfg.RefreshTTL/time.Second), m.cfg.Path, m.cfg.Domain, m.cfg.Secure, true)
	}
	c.SetCookie(LoggedInCookie, "true", accessAge, m.cfg.Path, m.cfg.Domain, m.cfg.Secure, false)
}

// ClearCookies expires all three session cookies. It is safe to call when
// no session exists.
func (m *Manager) ClearCookies(c *gin.Context) {
	c.SetSameSite(m.cfg.SameSite)
	c.SetCookie(AccessCookie, "", -1, m.cfg.Path, m.cfg.Domain, m.cfg.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, m.cfg.Path, m.cfg.Domain, m.cfg.Secure, true)
	c.SetCookie(LoggedInCookie, "", -1, m.cfg.Path, m.cfg.Domain, m.cfg.Secure, false)
}

// accessToken reads the access cookie, falling back to a bearer header.
func accessToken(c *gin.Context) string {
	if value, errCookie := c.Cookie(AccessCookie); errCookie == nil && value != "" {
		return value
	}
	header := c.GetHeader("Authorization")
	if raw := strings.TrimPrefix(header, "Bearer "); raw != header {
		return strings.TrimSpace(raw)
	}
	return ""
}

// CurrentUser returns the user stored by RequireUser.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// SetCurrentUser stores user on the request context.
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(userContextKey, user)
}
