package driven

import (
	"context"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// Store is the relational cache the sync engine reconciles into.
// Every operation is scoped to a single table.
//
// Implementations must wrap connectivity failures (closed database, refused
// connection) with domain.ErrStoreUnavailable so callers can tell them apart
// from row-level write failures.
type Store interface {
	// Select returns rows matching the query.
	Select(ctx context.Context, table string, q domain.Query) ([]domain.Record, error)

	// Insert writes new rows and returns them with any store-assigned id.
	Insert(ctx context.Context, table string, records []domain.Record) ([]domain.Record, error)

	// Upsert inserts or updates rows keyed on conflictKeys and returns the
	// written rows, including the store-assigned id. The batch is atomic.
	Upsert(ctx context.Context, table string, records []domain.Record, conflictKeys []string) ([]domain.Record, error)

	// Update applies patch to every row matching filter and returns the
	// number of rows changed.
	Update(ctx context.Context, table string, filter domain.Filter, patch domain.Record) (int, error)

	// Delete removes rows matching filter and returns the number removed.
	Delete(ctx context.Context, table string, filter domain.Filter) (int, error)

	// Replace deletes every row matching filter and inserts records in one
	// atomic step. Readers never observe a half-written set.
	Replace(ctx context.Context, table string, filter domain.Filter, records []domain.Record) error
}
