package account

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	pair, err := issuer.Issue("user-1", "user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := issuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.UserID)

	refresh, err := issuer.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.UserID)
	assert.Equal(t, "user@example.com", refresh.Email)
}

func TestTokenIssuerSecretsAreDistinct(t *testing.T) {
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", 0, 0)
	require.NoError(t, err)

	pair, err := issuer.Issue("user-1", "user@example.com")
	require.NoError(t, err)

	_, err = issuer.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)

	_, err = issuer.ParseRefresh(pair.AccessToken)
	assert.Error(t, err)
}

func TestTokenIssuerExpiredAccess(t *testing.T) {
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	require.NoError(t, err)

	issued := time.Now().Add(-2 * time.Minute)
	issuer.now = func() time.Time { return issued }
	pair, err := issuer.Issue("user-1", "user@example.com")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ParseAccess(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestTokenIssuerRejectsEmptySecrets(t *testing.T) {
	_, err := NewTokenIssuer("", "refresh", time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenIssuer("access", "", time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestTokenIssuerDefaults(t *testing.T) {
	issuer, err := NewTokenIssuer("a", "b", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, issuer.AccessTTL())
	assert.Equal(t, 30*24*time.Hour, issuer.RefreshTTL())
}
