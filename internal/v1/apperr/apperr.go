// Package apperr defines the error kinds the hub exposes at its HTTP edge.
//
// Handlers and services return errors wrapped with one of the sentinel kinds
// below; the edge maps the kind to a status code exactly once. Comparing with
// errors.Is keeps the mapping safe against message changes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Services return these (usually wrapped with a message);
// the HTTP layer maps them to status codes.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// Error carries a kind plus the client-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets errors.Is match the kind through wrapping.
func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error of the given kind with a client-facing message.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt-style formatting.
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a VALIDATION error naming the offending field.
func Validation(message string) error { return New(ErrValidation, message) }

// Conflict builds a CONFLICT error identifying the uniqueness dimension.
func Conflict(message string) error { return New(ErrConflict, message) }

// NotFound builds a NOT_FOUND error for an invisible or missing resource.
func NotFound(message string) error { return New(ErrNotFound, message) }

// Forbidden builds a FORBIDDEN error for an authenticated-but-denied caller.
func Forbidden(message string) error { return New(ErrForbidden, message) }

// Unauthenticated builds an UNAUTHENTICATED error. Login failures use a
// single generic message so username probing and password mismatch are
// indistinguishable.
func Unauthenticated(message string) error { return New(ErrUnauthenticated, message) }

// Status maps an error to its HTTP status code. Unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the message safe to show a client. Errors that are
// not apperr kinds collapse to a generic message so internals never leak.
func ClientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
