package notifier

import (
	"errors"
	"fmt"
	"time"
)

// Error types shared by the transport and the governor.

// RateLimitError represents a 429 rate limit error from the messaging API.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from the messaging API.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from the messaging API.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// PoolTimeoutError represents a connection pool or request timeout. These
// clear slower than ordinary transient failures, so the governor backs off
// for a fixed longer interval instead of the attempt-scaled delay.
type PoolTimeoutError struct {
	Message string
}

func (e *PoolTimeoutError) Error() string {
	return e.Message
}

// DeliveryError is returned by the governor when a send fails permanently,
// either through a non-retryable error or retry exhaustion.
type DeliveryError struct {
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// is429Error checks if the error is a rate limit error and extracts retry_after.
func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isPoolTimeout checks for a pool or request timeout.
func isPoolTimeout(err error) bool {
	var poolErr *PoolTimeoutError
	return errors.As(err, &poolErr)
}

// isRetryableError checks if the error is worth retrying (5xx server errors,
// network errors). Client errors (4xx) are not retryable except for rate
// limits (429), which are handled separately.
func isRetryableError(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false // Handled by is429Error
	}

	// Network errors, timeouts, etc. are retryable
	return true
}
