package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Ensure CacheRepository implements the interface.
var _ driving.CacheRepository = (*CacheRepository)(nil)

// CacheRepository is a read-through cache for one entity type. Rows the
// source reports as gone are soft-deleted rather than removed.
type CacheRepository struct {
	desc   driven.EntityDescriptor
	client driven.ExternalClient
	store  driven.Store
	now    func() time.Time
}

// NewCacheRepository creates a cache repository for desc.
func NewCacheRepository(
	desc driven.EntityDescriptor, client driven.ExternalClient, store driven.Store,
) *CacheRepository {
	return &CacheRepository{
		desc:   desc,
		client: client,
		store:  store,
		now:    time.Now,
	}
}

// GetByID returns the cached record, fetching it from the source on a miss.
// A failed local read is treated as a miss. When the write after a fetch
// fails, the transformed record is returned together with the error.
func (c *CacheRepository) GetByID(
	ctx context.Context, sourceID string, principal *domain.Principal, opts driving.GetOptions,
) (domain.Record, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: empty %s", domain.ErrInvalidInput, c.desc.SourceIDField())
	}

	if !opts.ForceRefresh {
		rows, err := c.store.Select(ctx, c.desc.TableName(), domain.Query{
			Filter: domain.Live(domain.Eq(c.desc.SourceIDField(), sourceID)),
			Limit:  1,
		})
		if err != nil {
			logger.Debug("Cache lookup %s %s failed, fetching: %v", c.desc.TableName(), sourceID, err)
		} else if len(rows) > 0 {
			return rows[0], nil
		}
	}

	raw, err := c.client.Get(ctx, c.desc.Service(), detailEndpoint(c.desc, sourceID), nil, principal)
	if errors.Is(err, domain.ErrNotFound) {
		c.markDeleted(ctx, sourceID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", c.desc.TableName(), sourceID, err)
	}

	records, err := c.desc.ExtractFromResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", c.desc.TableName(), sourceID, err)
	}
	if len(records) == 0 {
		c.markDeleted(ctx, sourceID)
		return nil, nil
	}

	rec, err := c.desc.Transform(records[0], nil)
	if err != nil {
		return nil, err
	}
	rec[domain.FieldDeletedAt] = nil
	rec[domain.FieldSyncedAt] = c.now().UTC()

	written, err := c.store.Upsert(ctx, c.desc.TableName(), []domain.Record{rec}, c.desc.ConflictKeys())
	if err != nil {
		return rec, fmt.Errorf("cache %s %s: %w", c.desc.TableName(), sourceID, err)
	}
	if len(written) > 0 {
		return written[0], nil
	}
	return rec, nil
}

// GetByIDs returns every record that exists. Hits come from one local
// query; misses are fetched one at a time. Fetch failures are joined into
// the returned error alongside the records that were found.
func (c *CacheRepository) GetByIDs(
	ctx context.Context, sourceIDs []string, principal *domain.Principal,
) ([]domain.Record, error) {
	ids := uniqueStrings(sourceIDs)
	if len(ids) == 0 {
		return []domain.Record{}, nil
	}

	out := make([]domain.Record, 0, len(ids))
	found := make(map[string]struct{}, len(ids))

	rows, err := c.store.Select(ctx, c.desc.TableName(), domain.Query{
		Filter: domain.Live(domain.InStrings(c.desc.SourceIDField(), ids)),
	})
	if err != nil {
		logger.Debug("Cache lookup %s failed, fetching %d ids: %v", c.desc.TableName(), len(ids), err)
	}
	for _, row := range rows {
		id := row.String(c.desc.SourceIDField())
		if _, dup := found[id]; dup {
			continue
		}
		found[id] = struct{}{}
		out = append(out, row)
	}

	var errs []error
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		rec, err := c.GetByID(ctx, id, principal, driving.GetOptions{ForceRefresh: true})
		if err != nil {
			errs = append(errs, err)
		}
		if rec != nil {
			out = append(out, rec)
		}
	}

	return out, errors.Join(errs...)
}

// List calls the list endpoint once. When cacheResults is set the records
// are transformed and written in a single batch; transform failures are
// skipped and a write failure is returned with the records.
func (c *CacheRepository) List(
	ctx context.Context, params url.Values, principal *domain.Principal, cacheResults bool,
) ([]domain.Record, error) {
	raw, err := c.client.Get(ctx, c.desc.Service(), c.desc.Endpoint(), params, principal)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.desc.TableName(), err)
	}

	records, err := c.desc.ExtractFromResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.desc.TableName(), err)
	}
	if !cacheResults || len(records) == 0 {
		return records, nil
	}

	now := c.now().UTC()
	rows := make([]domain.Record, 0, len(records))
	for _, src := range records {
		rec, err := c.desc.Transform(src, nil)
		if err != nil {
			logger.Warn("Skipping %s record %s: %v", c.desc.TableName(), src.String(c.desc.SourceIDField()), err)
			continue
		}
		rec[domain.FieldDeletedAt] = nil
		rec[domain.FieldSyncedAt] = now
		rows = append(rows, rec)
	}
	rows = dedupe(rows, c.desc.ConflictKeys())
	if len(rows) == 0 {
		return records, nil
	}

	if _, err := c.store.Upsert(ctx, c.desc.TableName(), rows, c.desc.ConflictKeys()); err != nil {
		return records, fmt.Errorf("cache %s: %w", c.desc.TableName(), err)
	}
	return records, nil
}

// markDeleted soft-deletes the live row for sourceID, if any.
func (c *CacheRepository) markDeleted(ctx context.Context, sourceID string) {
	n, err := c.store.Update(ctx, c.desc.TableName(),
		domain.Live(domain.Eq(c.desc.SourceIDField(), sourceID)),
		domain.Record{domain.FieldDeletedAt: c.now().UTC()},
	)
	if err != nil {
		logger.Warn("Soft-delete %s %s failed: %v", c.desc.TableName(), sourceID, err)
		return
	}
	if n > 0 {
		logger.Debug("Soft-deleted %s %s: gone at source", c.desc.TableName(), sourceID)
	}
}

func detailEndpoint(desc driven.EntityDescriptor, sourceID string) string {
	return desc.Endpoint() + "/" + url.PathEscape(sourceID)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
