package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCacheMiss signals an absent or expired cache entry. It is a control-flow
	// signal and is never returned to callers of the facade.
	ErrCacheMiss = errors.New("cache miss")

	// ErrAggregateFailure marks a failed POST /api/batch round-trip.
	ErrAggregateFailure = errors.New("aggregate request failed")

	// ErrAuthExpired marks a 401 from an authenticated call.
	ErrAuthExpired = errors.New("authorization expired")

	// ErrAuthIrrecoverable means the refresh exchange itself failed; the session
	// has been cleared and the user must log in again.
	ErrAuthIrrecoverable = errors.New("session could not be refreshed")

	// ErrAuthRequired is returned for authenticated resources when no session exists.
	ErrAuthRequired = errors.New("authentication required")
)

// TransportError wraps a network-level failure (dial, timeout, reset) of one call.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Status  int
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Path, e.Status)
}

// Is lets errors.Is(err, ErrAuthExpired) match a 401.
func (e *StatusError) Is(target error) bool {
	return target == ErrAuthExpired && e.Status == http.StatusUnauthorized
}

// ValidationError rejects malformed caller input before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsAuthError reports whether err should send the UI to the login flow.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRequired) ||
		errors.Is(err, ErrAuthIrrecoverable) ||
		errors.Is(err, ErrAuthExpired)
}

// HTTPStatus maps an error onto the status the bridge reports to the browser.
func HTTPStatus(err error) int {
	var validation *ValidationError
	var status *StatusError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case IsAuthError(err):
		return http.StatusUnauthorized
	case errors.As(err, &status):
		return status.Status
	default:
		return http.StatusBadGateway
	}
}
