// Package apierr carries an HTTP status and a stable error code alongside a wrapped error.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is returned across the request boundary.
type Error struct {
	Status  int
	Code    string
	Message string // safe to show to end users
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error.
func New(status int, code, message string, err error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

// From extracts an *Error from err. Anything else becomes a 500.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    "internal",
		Message: "Internal Server Error",
		Err:     err,
	}
}
