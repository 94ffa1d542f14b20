package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose restricts which operation a token may authorize.
type Purpose string

const (
	// PurposeActivation redeems a pending account.
	PurposeActivation Purpose = "activation"
	// PurposePasswordReset authorizes one password change.
	PurposePasswordReset Purpose = "password_reset"
	// PurposeAccess authenticates API requests.
	PurposeAccess Purpose = "access"
	// PurposeRefresh mints new access tokens.
	PurposeRefresh Purpose = "refresh"
)

// usesSessionKey reports whether the purpose belongs to the session key class.
func (p Purpose) usesSessionKey() bool {
	return p == PurposeAccess || p == PurposeRefresh
}

func (p Purpose) valid() bool {
	switch p {
	case PurposeActivation, PurposePasswordReset, PurposeAccess, PurposeRefresh:
		return true
	default:
		return false
	}
}

// Verification failures. Callers render ErrExpired differently from the other two.
var (
	ErrExpired         = errors.New("token: expired")
	ErrMalformed       = errors.New("token: malformed")
	ErrPurposeMismatch = errors.New("token: purpose mismatch")
)

const issuerName = "backoffice"

// claims is the signed payload. IssuedAtMicro keeps sub-second issue time for fencing.
type claims struct {
	Purpose       Purpose `json:"purpose"`
	IssuedAtMicro int64   `json:"iat_us"`
	jwt.RegisteredClaims
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   uint64
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies purpose-typed tokens with two independent keys:
// one for activation and password reset, one for access and refresh.
type Issuer struct {
	activationResetKey []byte
	sessionKey         []byte
	now                func() time.Time
}

// NewIssuer constructs an Issuer. The keys must be non-empty and distinct.
func NewIssuer(activationResetKey, sessionKey string, now func() time.Time) (*Issuer, error) {
	if strings.TrimSpace(activationResetKey) == "" || strings.TrimSpace(sessionKey) == "" {
		return nil, fmt.Errorf("token: empty signing key")
	}
	if activationResetKey == sessionKey {
		return nil, fmt.Errorf("token: signing keys must differ")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		activationResetKey: []byte(activationResetKey),
		sessionKey:         []byte(sessionKey),
		now:                now,
	}, nil
}

func (i *Issuer) keyFor(p Purpose) []byte {
	if p.usesSessionKey() {
		return i.sessionKey
	}
	return i.activationResetKey
}

// Issue signs a token for subject with the given purpose and lifetime.
func (i *Issuer) Issue(subject uint64, purpose Purpose, ttl time.Duration) (string, error) {
	if !purpose.valid() {
		return "", fmt.Errorf("token: unknown purpose %q", purpose)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token: non-positive ttl")
	}
	issuedAt := i.now().UTC()
	payload := claims{
		Purpose:       purpose,
		IssuedAtMicro: issuedAt.UnixMicro(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuerName,
			Subject:   strconv.FormatUint(subject, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	signed, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(i.keyFor(purpose))
	if errSign != nil {
		return "", fmt.Errorf("token: sign: %w", errSign)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose, in that order. The key is
// chosen by the expected purpose, so a token from the other key class fails
// as malformed.
func (i *Issuer) Verify(raw string, expected Purpose) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !expected.valid() {
		return Claims{}, ErrMalformed
	}
	var parsed claims
	_, errParse := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.keyFor(expected), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuerName),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(i.now),
	)
	if errParse != nil {
		if errors.Is(errParse, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}
	if parsed.Purpose != expected {
		return Claims{}, ErrPurposeMismatch
	}
	subject, errSubject := strconv.ParseUint(parsed.Subject, 10, 64)
	if errSubject != nil || subject == 0 {
		return Claims{}, ErrMalformed
	}

	out := Claims{Subject: subject, Purpose: parsed.Purpose}
	if parsed.IssuedAtMicro > 0 {
		out.IssuedAt = time.UnixMicro(parsed.IssuedAtMicro).UTC()
	} else if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	if parsed.ExpiresAt != nil {
		out.ExpiresAt = parsed.ExpiresAt.Time.UTC()
	}
	return out, nil
}

// IssuedBefore reports whether c was issued at or before fence.
// A nil fence never rejects.
func (c Claims) IssuedBefore(fence *time.Time) bool {
	if fence == nil || fence.IsZero() {
		return false
	}
	return !c.IssuedAt.After(fence.UTC())
}
