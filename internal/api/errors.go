package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoToken is returned before any request is made when the token
// supplier has nothing to offer. The coordinator treats it like being
// offline: the intent is queued and replayed once a token exists.
var ErrNoToken = errors.New("no bearer token available")

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// IsAuth reports whether the response means the bearer token was
// missing, expired, or not allowed to touch the resource.
func (e *Error) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsRecoverable reports whether retrying the same request later could
// succeed without changing it.
func (e *Error) IsRecoverable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether err should surface as an authentication
// failure rather than be queued for retry.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// IsNotFound reports a 404, which drain treats as success for deletes:
// the record is already gone.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports a 409, which drain treats as success for follows:
// the pair already has its one follow record.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Retryable reports whether the failure is transient: transport-level
// errors, missing token, and recoverable server responses. A retryable
// failure queues the intent instead of rejecting it.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoToken) {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.IsRecoverable()
	}
	// Anything that never produced an HTTP status is a network error.
	return true
}
