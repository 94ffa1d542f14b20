package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fakeClock) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("activation-reset-key", "session-key", clock.Now)
	require.NoError(t, err)
	return issuer
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	raw, err := issuer.Issue(42, PurposeActivation, 5*time.Minute)
	require.NoError(t, err)

	claims, err := issuer.Verify(raw, PurposeActivation)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.Subject)
	assert.Equal(t, PurposeActivation, claims.Purpose)
	assert.True(t, claims.IssuedAt.Equal(clock.t))
	assert.True(t, claims.ExpiresAt.Equal(clock.t.Add(5*time.Minute)))
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	raw, err := issuer.Issue(7, PurposePasswordReset, time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Minute + time.Second)
	_, err = issuer.Verify(raw, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_PurposeMismatchWithinKeyClass(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	issuer := newTestIssuer(t, clock)

	raw, err := issuer.Issue(7, PurposeAccess, time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(raw, PurposeRefresh)
	assert.ErrorIs(t, err, ErrPurposeMismatch)

	raw, err = issuer.Issue(7, PurposeActivation, time.Minute)
	require.NoError(t, err)
	_, err = issuer.Verify(raw, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrPurposeMismatch)
}

func TestVerify_OtherKeyClassIsMalformed(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	issuer := newTestIssuer(t, clock)

	raw, err := issuer.Issue(7, PurposeActivation, time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(raw, PurposeAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_ForeignKeyIsMalformed(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	issuer := newTestIssuer(t, clock)
	other, err := NewIssuer("another-reset-key", "another-session-key", clock.Now)
	require.NoError(t, err)

	raw, err := other.Issue(7, PurposeActivation, time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(raw, PurposeActivation)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_ForgedExpiredTokenIsMalformed(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	issuer := newTestIssuer(t, clock)
	other, err := NewIssuer("another-reset-key", "another-session-key", clock.Now)
	require.NoError(t, err)

	raw, err := other.Issue(7, PurposeActivation, time.Minute)
	require.NoError(t, err)
	clock.t = clock.t.Add(time.Hour)

	_, err = issuer.Verify(raw, PurposeActivation)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_Garbage(t *testing.T) {
	issuer := newTestIssuer(t, &fakeClock{t: time.Now().UTC()})
	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := issuer.Verify(raw, PurposeAccess)
		assert.True(t, errors.Is(err, ErrMalformed), "input %q", raw)
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t, &fakeClock{t: time.Now().UTC()})
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1", "purpose": "access", "iss": issuerName, "exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(raw, PurposeAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewIssuer_RejectsSharedKey(t *testing.T) {
	_, err := NewIssuer("same", "same", nil)
	assert.Error(t, err)
	_, err = NewIssuer("", "key", nil)
	assert.Error(t, err)
}

func TestClaimsIssuedBefore(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := Claims{IssuedAt: base}

	assert.False(t, claims.IssuedBefore(nil))
	fence := base
	assert.True(t, claims.IssuedBefore(&fence))
	earlier := base.Add(-time.Microsecond)
	assert.False(t, claims.IssuedBefore(&earlier))
}
