package driving

import (
	"context"
	"net/url"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// SyncOrchestrator runs a one-pass list → transform → upsert refresh of a
// single entity type, without windowing or resumability.
type SyncOrchestrator interface {
	// List fetches one page of source records.
	// Returns an empty slice, not an error, when nothing is found.
	List(
		ctx context.Context, desc driven.EntityDescriptor, params url.Values, principal *domain.Principal,
	) ([]domain.Record, error)

	// Transform maps source records to storage records, dropping those that
	// fail to transform.
	Transform(desc driven.EntityDescriptor, records []domain.Record) []domain.Record

	// Upsert writes storage records in batches with per-record fallback.
	// Row-level failures are reported in the result; only connectivity
	// failures are returned as an error.
	Upsert(
		ctx context.Context, desc driven.EntityDescriptor, records []domain.Record, principal *domain.Principal,
	) (domain.UpsertResult, error)

	// Sync composes List, Transform and Upsert.
	Sync(
		ctx context.Context, desc driven.EntityDescriptor, params url.Values, principal *domain.Principal,
	) (*domain.SyncResult, error)
}
