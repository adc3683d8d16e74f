package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"ecom-server/internal/apperror"
	"ecom-server/internal/httpjson"
)

type contextKey struct{}

var identityKey contextKey

// FromContext returns the identity the session middleware attached.
func FromContext(r *http.Request) (Identity, bool) {
	identity, ok := r.Context().Value(identityKey).(Identity)
	return identity, ok
}

// WithIdentity attaches an identity to the request, as the session
// middleware does after validation.
func WithIdentity(r *http.Request, identity Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityKey, identity))
}

// SessionMiddleware guards routes with the cookie pair. A valid access
// token passes straight through; an expired or absent one triggers a
// transparent refresh-token rotation before the handler runs.
type SessionMiddleware struct {
	svc     *Service
	cookies *CookieBaker
	respond *httpjson.Responder
}

func NewSessionMiddleware(svc *Service, cookies *CookieBaker, respond *httpjson.Responder) *SessionMiddleware {
	return &SessionMiddleware{svc: svc, cookies: cookies, respond: respond}
}

func (m *SessionMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCookie, err := r.Cookie(RefreshTokenCookie)
		if err != nil || refreshCookie.Value == "" {
			m.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Refresh token is missing. Please log in again.")
			return
		}

		accessCookie, err := r.Cookie(AccessTokenCookie)
		if err != nil || accessCookie.Value == "" {
			m.rotate(w, r, next, refreshCookie.Value)
			return
		}

		identity, err := m.svc.ValidateAccess(r.Context(), accessCookie.Value)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				m.rotate(w, r, next, refreshCookie.Value)
				return
			}
			if apperror.Is(err) {
				m.respond.Err(w, err)
				return
			}
			m.respond.Fail(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		next.ServeHTTP(w, WithIdentity(r, identity))
	})
}

func (m *SessionMiddleware) rotate(w http.ResponseWriter, r *http.Request, next http.Handler, refreshToken string) {
	identity, pair, err := m.svc.Rotate(r.Context(), refreshToken)
	if err != nil {
		m.respond.Err(w, err)
		return
	}

	m.cookies.SetAuth(w, pair)
	next.ServeHTTP(w, WithIdentity(r, identity))
}

// AdminOnly is Protect plus a role check.
func (m *SessionMiddleware) AdminOnly(next http.Handler) http.Handler {
	return m.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := FromContext(r)
		if !ok || !identity.Admin() {
			m.respond.Fail(w, http.StatusForbidden, "This action is not allowed")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

