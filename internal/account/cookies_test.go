package account

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieBakerDevelopment(t *testing.T) {
	baker := NewCookieBaker(false, 15*time.Minute, 30*24*time.Hour)

	rec := httptest.NewRecorder()
	baker.SetAuth(rec, TokenPair{AccessToken: "access", RefreshToken: "refresh"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName[AccessTokenCookie]
	require.NotNil(t, access)
	assert.Equal(t, "access", access.Value)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.False(t, access.Secure)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, "/", access.Path)

	refresh := byName[RefreshTokenCookie]
	require.NotNil(t, refresh)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), refresh.MaxAge)
}

func TestCookieBakerProduction(t *testing.T) {
	baker := NewCookieBaker(true, 15*time.Minute, 30*24*time.Hour)

	rec := httptest.NewRecorder()
	baker.SetAuth(rec, TokenPair{AccessToken: "access", RefreshToken: "refresh"})

	for _, c := range rec.Result().Cookies() {
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	}
}

func TestCookieBakerClear(t *testing.T) {
	baker := NewCookieBaker(false, 15*time.Minute, 30*24*time.Hour)

	rec := httptest.NewRecorder()
	baker.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}
