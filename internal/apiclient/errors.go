package apiclient

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for 401 responses; the session has already
// been cleared by the time the caller sees it.
var ErrUnauthorized = errors.New("unauthorized")

// TransportError wraps failures that never produced an HTTP response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx response carrying the server's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.Status)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// StatusOf returns the HTTP status behind err, 0 when there was none.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	if IsUnauthorized(err) {
		return 401
	}
	return 0
}
