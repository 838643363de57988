// Package apperr holds the error kinds shared by the scheduling and chat
// operations and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced session, booking, user or conversation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidReference is returned when a doctor id does not resolve to a Doctor.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrInvalidTimeRange is returned when a session ends at or before it starts.
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrUnauthorized is returned when the caller may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when the current state forbids the transition.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned for malformed request values.
	ErrInvalidInput = errors.New("invalid input")
)

// Error pairs an error kind with the message shown to the caller.
type Error struct {
	Kind    error
	Message string
}

// New builds an Error of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// StatusCode maps an error onto the HTTP status returned by handlers.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidReference), errors.Is(err, ErrInvalidTimeRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing text for err. Errors without a kind are
// reported generically so store failures never leak.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
