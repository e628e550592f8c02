package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// Returned by the external client when the source no longer has a record,
	// which drives deletion reconciliation in the cache.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownModule indicates a module name with no registered descriptor.
	ErrUnknownModule = errors.New("unknown module")

	// ErrSyncInProgress indicates a sync is already running for the principal.
	ErrSyncInProgress = errors.New("sync in progress")

	// Upstream Errors.

	// ErrUpstreamUnavailable indicates a transient upstream failure
	// (timeout, connection refused, 5xx). Aborts the current module.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthRequired indicates no credentials are configured for the principal.
	ErrAuthRequired = errors.New("authentication required")

	// ErrTokenRefreshFailed indicates token refresh operation failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// Storage Errors.

	// ErrStoreUnavailable indicates the store cannot be reached at all.
	// Unlike row-level write failures it aborts the remaining work.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsTransient reports whether err is an upstream failure worth aborting a
// module for rather than recording against a single row.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrRateLimited)
}

// TransformError is returned when a source payload does not have the shape a
// descriptor expects. Always row-scoped.
type TransformError struct {
	Table    string
	SourceID string
	Reason   string
}

func (e *TransformError) Error() string {
	if e.SourceID == "" {
		return fmt.Sprintf("transform %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("transform %s %s: %s", e.Table, e.SourceID, e.Reason)
}

// ValidationError is returned when a transformed record is missing required
// fields before a write is attempted.
type ValidationError struct {
	Table    string
	SourceID string
	Missing  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s %s: missing %s", e.Table, e.SourceID, strings.Join(e.Missing, ", "))
}

// IsRowError reports whether err only affects a single record.
func IsRowError(err error) bool {
	var te *TransformError
	var ve *ValidationError
	return errors.As(err, &te) || errors.As(err, &ve)
}
