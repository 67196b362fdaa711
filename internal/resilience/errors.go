// Package resilience retries whole operations on transient upstream failures.
// It is used by callers of the pipeline, never inside it.
package resilience

import (
	"errors"
	"net/http"
)

// Retryable is implemented by errors that know whether a later attempt may
// succeed.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err or any error it wraps declares itself
// retryable.
func IsRetryable(err error) bool {
	var r Retryable
	return errors.As(err, &r) && r.Retryable()
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
