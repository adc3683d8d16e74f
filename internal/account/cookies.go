package account

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieBaker writes the two session cookies. Production uses
// SameSite=None with Secure (cross-site frontend); everything else uses
// Strict without Secure.
type CookieBaker struct {
	production bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieBaker(production bool, accessTTL, refreshTTL time.Duration) *CookieBaker {
	return &CookieBaker{production: production, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (b *CookieBaker) SetAuth(w http.ResponseWriter, pair TokenPair) {
	http.SetCookie(w, b.cookie(AccessTokenCookie, pair.AccessToken, int(b.accessTTL.Seconds())))
	http.SetCookie(w, b.cookie(RefreshTokenCookie, pair.RefreshToken, int(b.refreshTTL.Seconds())))
}

func (b *CookieBaker) Clear(w http.ResponseWriter) {
	http.SetCookie(w, b.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, b.cookie(RefreshTokenCookie, "", -1))
}

func (b *CookieBaker) cookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteStrictMode
	if b.production {
		sameSite = http.SameSiteNoneMode
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   b.production,
		SameSite: sameSite,
	}
}
