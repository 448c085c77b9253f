// Package api provides an HTTP client for the EcoRoute backend with
// bearer-token authentication, single forced-refresh retry on rejection,
// and error classification.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for backend response classification.
// Use errors.Is(err, api.ErrUnauthorized) to check.
var (
	// ErrInvalidCredentials means the login form input was rejected.
	// Surfaced only at the login boundary.
	ErrInvalidCredentials = errors.New("api: invalid credentials")

	// ErrUnauthorized means the session is considered dead: the access token
	// was rejected and a forced refresh did not help.
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrNotFound maps HTTP 404. Some endpoints treat it as a display state
	// (no active route) rather than a failure.
	ErrNotFound = errors.New("api: not found")

	// ErrNetwork covers transport-level failures (timeout, DNS, connection
	// reset). Transient; retry policy belongs to the caller.
	ErrNetwork = errors.New("api: network error")

	// ErrServer maps 5xx responses.
	ErrServer = errors.New("api: server error")

	// ErrBadRequest maps HTTP 400 outside the login boundary.
	ErrBadRequest = errors.New("api: bad request")
)

// APIError wraps a sentinel error with the HTTP status code and the backend's
// error message body for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("api: HTTP %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusBadRequest:
		return ErrBadRequest
	case code >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrBadRequest
	}
}

// netError wraps a transport-level failure so it always classifies as
// ErrNetwork for callers while preserving the underlying cause.
func netError(op string, err error) error {
	return fmt.Errorf("api: %s: %w: %w", op, ErrNetwork, err)
}
