package maintenance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ecom-server/internal/httpjson"
	"ecom-server/internal/observability"
)

type fakePurger struct {
	purged  int64
	revoked int64
	calls   int
}

func (f *fakePurger) PurgeExpiredCredentialTokens(context.Context, time.Time) (int64, error) {
	f.calls++
	return f.purged, nil
}

func (f *fakePurger) PurgeDeactivatedRefreshTokens(context.Context) (int64, error) {
	return f.revoked, nil
}

func TestCleanupHandler(t *testing.T) {
	newHandler := func(secret string) (*CleanupHandler, *fakePurger) {
		purger := &fakePurger{purged: 3, revoked: 2}
		return NewCleanupHandler(purger, observability.NewLogger(), &httpjson.Responder{}, secret), purger
	}

	t.Run("hidden without a configured secret", func(t *testing.T) {
		h, purger := newHandler("")
		rec := httptest.NewRecorder()
		h.Handle(rec, httptest.NewRequest(http.MethodGet, "/internal/maintenance/cleanup", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, purger.calls)
	})

	t.Run("rejects a wrong bearer token", func(t *testing.T) {
		h, purger := newHandler("cron-secret")
		req := httptest.NewRequest(http.MethodGet, "/internal/maintenance/cleanup", nil)
		req.Header.Set("Authorization", "Bearer nope")

		rec := httptest.NewRecorder()
		h.Handle(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, purger.calls)
	})

	t.Run("purges with the right secret", func(t *testing.T) {
		h, purger := newHandler("cron-secret")
		req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
		req.Header.Set("Authorization", "Bearer cron-secret")

		rec := httptest.NewRecorder()
		h.Handle(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, purger.calls)
		assert.Contains(t, rec.Body.String(), `"purgedAccounts":3`)
		assert.Contains(t, rec.Body.String(), `"revokedSessions":2`)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		h, purger := newHandler("cron-secret")
		req := httptest.NewRequest(http.MethodDelete, "/internal/maintenance/cleanup", nil)
		req.Header.Set("Authorization", "Bearer cron-secret")

		rec := httptest.NewRecorder()
		h.Handle(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Zero(t, purger.calls)
	})
}
