package account

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ecom-server/internal/httpjson"
)

func TestLoginRateLimiter(t *testing.T) {
	limiter := NewLoginRateLimiter(3, time.Minute, &httpjson.Responder{})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	}

	rec := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other clients are unaffected.
	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code)
}

func TestLoginRateLimiterWindowSlides(t *testing.T) {
	limiter := NewLoginRateLimiter(2, 50*time.Millisecond, &httpjson.Responder{})

	now := time.Now().UTC()
	allowed, _ := limiter.allow("ip", now)
	assert.True(t, allowed)
	allowed, _ = limiter.allow("ip", now)
	assert.True(t, allowed)

	allowed, retryAfter := limiter.allow("ip", now)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	allowed, _ = limiter.allow("ip", now.Add(time.Second))
	assert.True(t, allowed)
}
