package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// HistoricalSync backfills a trailing window of transactions and their line
// items, resumably and cancellably.
type HistoricalSync interface {
	// SyncRecentTransactions syncs each module sequentially over
	// [today-windowDays, today]. An empty modules list syncs every
	// registered module. A partial failure still returns a result.
	SyncRecentTransactions(
		ctx context.Context, windowDays int, modules []string, principal *domain.Principal,
	) (*domain.HistoricalSyncResult, error)

	// StartRecentTransactions registers the sync for the principal and
	// runs it in the background. It fails with domain.ErrSyncInProgress,
	// starting nothing, when the principal already has an active sync.
	// done, if non-nil, receives the outcome.
	StartRecentTransactions(
		ctx context.Context,
		windowDays int,
		modules []string,
		principal *domain.Principal,
		done func(*domain.HistoricalSyncResult, error),
	) error

	// RequestStop asks the principal's active sync to stop at the next
	// record boundary. Returns false if no sync is active.
	RequestStop(principal *domain.Principal) bool

	// Status returns the progress snapshot of the principal's active sync.
	Status(principal *domain.Principal) (*domain.SyncStatus, bool)

	// IsRunning reports whether a sync is active for the principal.
	IsRunning(principal *domain.Principal) bool

	// LatestSyncTimestamps returns, per module, when it was last synced.
	// Modules never synced map to nil.
	LatestSyncTimestamps(ctx context.Context) (map[string]*time.Time, error)
}
