package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecom-server/internal/apperror"
)

type sampleBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestDecode(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","password":"password1"}`))
		var dst sampleBody
		require.NoError(t, Decode(httptest.NewRecorder(), req, &dst))
		assert.Equal(t, "a@b.com", dst.Email)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
		var dst sampleBody
		err := Decode(httptest.NewRecorder(), req, &dst)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperror.StatusCode(err))
		assert.Contains(t, err.Error(), "invalid json")
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","password":"password1","extra":1}`))
		var dst sampleBody
		assert.Error(t, Decode(httptest.NewRecorder(), req, &dst))
	})

	t.Run("failing validation names the field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","password":"short"}`))
		var dst sampleBody
		err := Decode(httptest.NewRecorder(), req, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "password")
	})
}

func TestResponderErr(t *testing.T) {
	t.Run("application error keeps status and message", func(t *testing.T) {
		re := &Responder{}
		rec := httptest.NewRecorder()
		re.Err(rec, apperror.New("Invalid credential", http.StatusUnauthorized))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Invalid credential", body["message"])
		assert.NotContains(t, body, "error")
	})

	t.Run("unexpected error is masked in production", func(t *testing.T) {
		re := &Responder{}
		rec := httptest.NewRecorder()
		re.Err(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Something went wrong", body["message"])
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("development mode carries the detail", func(t *testing.T) {
		re := &Responder{Development: true}
		rec := httptest.NewRecorder()
		re.Err(rec, errors.New("pq: connection refused"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Contains(t, body, "error")
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}

func TestResponderFail(t *testing.T) {
	re := &Responder{}
	rec := httptest.NewRecorder()
	re.Fail(rec, http.StatusForbidden, "This action is not allowed")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "This action is not allowed", body["message"])
}
