package driven

import (
	"context"
	"net/url"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// ExternalClient calls the source system's REST API.
// Implementations handle credential refresh and rate limiting transparently.
type ExternalClient interface {
	// Get issues a GET against endpoint on the given service and returns the
	// decoded JSON body.
	//
	// Errors are classified so callers can tell them apart:
	//   - domain.ErrNotFound: the source has no such record (HTTP 404)
	//   - domain.ErrRateLimited: the request was rejected by the rate limiter
	//   - domain.ErrUpstreamUnavailable: timeouts, connection failures, 5xx
	//
	// A nil principal calls under the system credentials.
	Get(
		ctx context.Context,
		service domain.Service,
		endpoint string,
		params url.Values,
		principal *domain.Principal,
	) (domain.Record, error)
}
