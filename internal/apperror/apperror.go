// Package apperror defines the single error shape every failure is
// normalized into before it reaches a client: a message plus an HTTP
// status code.
package apperror

import "errors"

type Error struct {
	Message    string
	StatusCode int
}

func New(message string, statusCode int) *Error {
	return &Error{Message: message, StatusCode: statusCode}
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode extracts the embedded status from err, or 500 when err is
// not an application error.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}

// Is reports whether err carries an application error.
func Is(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr)
}
