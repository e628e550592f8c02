package driving

import (
	"context"
	"net/url"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// GetOptions tunes a single cache lookup.
type GetOptions struct {
	// ForceRefresh skips the local lookup and always asks the source.
	ForceRefresh bool
}

// CacheRepository is a read-through cache over one entity type.
type CacheRepository interface {
	// GetByID returns the cached record, fetching and persisting it on a
	// miss. Returns nil and no error when the source no longer has it.
	GetByID(ctx context.Context, sourceID string, principal *domain.Principal, opts GetOptions) (domain.Record, error)

	// GetByIDs returns every record that exists, in no particular order.
	GetByIDs(ctx context.Context, sourceIDs []string, principal *domain.Principal) ([]domain.Record, error)

	// List calls the list endpoint once and optionally caches the results.
	// The extracted records are returned even when caching fails.
	List(ctx context.Context, params url.Values, principal *domain.Principal, cacheResults bool) ([]domain.Record, error)
}
