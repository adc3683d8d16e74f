// Package httpjson centralizes the JSON envelope every handler speaks:
// {"success": bool, "message": string, ...}.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"

	"ecom-server/internal/apperror"
)

const maxJSONBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Responder writes response envelopes. Development mode attaches error
// details that production responses withhold.
type Responder struct {
	Development bool
}

func (re *Responder) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (re *Responder) Fail(w http.ResponseWriter, status int, message string) {
	re.JSON(w, status, map[string]any{"success": false, "message": message})
}

// Err normalizes err into the failure envelope. Application errors keep
// their status and message; anything else is reported to Sentry and
// answered with a generic 500.
func (re *Responder) Err(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		sentry.CaptureException(err)
		appErr = apperror.New("Something went wrong", http.StatusInternalServerError)
	}

	body := map[string]any{"success": false, "message": appErr.Message}
	if re.Development {
		body["error"] = map[string]any{
			"name":       fmt.Sprintf("%T", err),
			"detail":     err.Error(),
			"statusCode": appErr.StatusCode,
		}
	}

	re.JSON(w, appErr.StatusCode, body)
}

// Decode reads a JSON body into dst and checks its validator tags.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperror.New("Body is invalid json", http.StatusBadRequest)
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			field := strings.ToLower(fieldErrs[0].Field())
			return apperror.New(fmt.Sprintf("%s is missing or invalid", field), http.StatusBadRequest)
		}
		return apperror.New("Required fields missing", http.StatusBadRequest)
	}

	return nil
}
