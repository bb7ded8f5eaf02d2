package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mmorady/authgate/pkg/api"
)

// Kind classifies authentication failures.
type Kind string

const (
	KindNotAuthenticated     Kind = "not_authenticated"
	KindMalformedHeader      Kind = "malformed_header"
	KindInvalidToken         Kind = "invalid_token"
	KindExpiredToken         Kind = "expired_token"
	KindInternalVerification Kind = "internal_verification"
	KindUnknownStrategy      Kind = "unknown_strategy"
)

// Error is a terminal authentication failure. It carries the HTTP status
// the routing layer should answer with and a client-facing detail string.
// Err, when set, is the underlying cause and is never shown to clients.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Detail, e.Err)
	}
	return "auth: " + e.Detail
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrExpiredToken)
// holds for every expired-token failure regardless of cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// APIError converts the failure into the JSON error envelope.
func (e *Error) APIError() *api.APIError {
	t := api.ErrorTypeAuthentication
	if e.Status >= http.StatusInternalServerError {
		t = api.ErrorTypeServerError
	}
	return &api.APIError{
		Type:    t,
		Code:    string(e.Kind),
		Message: e.Detail,
	}
}

// Sentinel errors. Compare with errors.Is; never mutate.
var (
	ErrNotAuthenticated = &Error{
		Kind:   KindNotAuthenticated,
		Status: http.StatusUnauthorized,
		Detail: "Not authenticated",
	}
	ErrMalformedHeader = &Error{
		Kind:   KindMalformedHeader,
		Status: http.StatusUnauthorized,
		Detail: "Invalid Authorization header format",
	}
	ErrInvalidToken = &Error{
		Kind:   KindInvalidToken,
		Status: http.StatusUnauthorized,
		Detail: "Invalid token",
	}
	ErrExpiredToken = &Error{
		Kind:   KindExpiredToken,
		Status: http.StatusUnauthorized,
		Detail: "Token has expired",
	}
	ErrInternalVerification = &Error{
		Kind:   KindInternalVerification,
		Status: http.StatusInternalServerError,
		Detail: "Internal server error during token verification",
	}
	ErrUnknownStrategy = &Error{
		Kind:   KindUnknownStrategy,
		Status: http.StatusInternalServerError,
		Detail: "unknown auth strategy",
	}
)

// ErrTooManyRequests is returned by a RateLimiter when the subject is over budget.
var ErrTooManyRequests = errors.New("rate limit exceeded")
