package httpclient

import (
	"errors"
	"fmt"
)

// RetryableError is returned when a request exhausts its retry budget or
// fails with a non-retryable status. StatusCode is zero for transport-level
// failures.
type RetryableError struct {
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err represents a transient failure that a
// caller with its own retry budget may try again.
func IsRetryable(err error) bool {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0 when unavailable.
func StatusCode(err error) int {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
