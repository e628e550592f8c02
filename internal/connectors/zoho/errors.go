package zoho

import (
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// APIError represents a non-success Zoho API response.
type APIError struct {
	StatusCode int
	// Code is Zoho's numeric error code from the response body, if any.
	Code    int
	Message string
	URL     string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("zoho: API error %d (code %d): %s (URL: %s)", e.StatusCode, e.Code, e.Message, e.URL)
	}
	return fmt.Sprintf("zoho: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap maps the status onto a domain sentinel so callers can classify the
// failure with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode == http.StatusUnauthorized:
		return domain.ErrAuthRequired
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.StatusCode >= 500:
		return domain.ErrUpstreamUnavailable
	case e.StatusCode >= 400:
		return domain.ErrInvalidInput
	default:
		return nil
	}
}

// RateLimitError represents a rate limit exceeded error after retries.
type RateLimitError struct {
	RetryAfter time.Duration
	URL        string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("zoho: rate limit exceeded, retry after %s (URL: %s)", e.RetryAfter, e.URL)
}

// Unwrap returns domain.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// isRetryable reports whether a status is worth another attempt.
func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
