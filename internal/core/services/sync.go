package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// upsertBatchSize is the number of rows written per store call.
const upsertBatchSize = 50

// SyncOrchestrator runs a single list → transform → upsert pass for one
// entity type. It is stateless and safe for concurrent use.
type SyncOrchestrator struct {
	client driven.ExternalClient
	store  driven.Store
	now    func() time.Time
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(client driven.ExternalClient, store driven.Store) *SyncOrchestrator {
	return &SyncOrchestrator{
		client: client,
		store:  store,
		now:    time.Now,
	}
}

// List fetches one page of source records.
func (o *SyncOrchestrator) List(
	ctx context.Context, desc driven.EntityDescriptor, params url.Values, principal *domain.Principal,
) ([]domain.Record, error) {
	raw, err := o.client.Get(ctx, desc.Service(), desc.Endpoint(), params, principal)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", desc.Endpoint(), err)
	}

	records, err := desc.ExtractFromResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", desc.Endpoint(), err)
	}
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}

// Transform maps source records to storage records.
func (o *SyncOrchestrator) Transform(desc driven.EntityDescriptor, records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, src := range records {
		rec, err := desc.Transform(src, nil)
		if err != nil {
			logger.Warn("Skipping %s record %s: %v", desc.TableName(), src.String(desc.SourceIDField()), err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Upsert writes records in batches. A failed batch is retried one record at
// a time so a single bad row does not sink its neighbours.
func (o *SyncOrchestrator) Upsert(
	ctx context.Context, desc driven.EntityDescriptor, records []domain.Record, _ *domain.Principal,
) (domain.UpsertResult, error) {
	var result domain.UpsertResult

	records = dedupe(records, desc.ConflictKeys())
	now := o.now().UTC()

	valid := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		id := rec.String(desc.SourceIDField())
		if v := desc.Validate(rec); !v.Valid {
			result.Errors = append(result.Errors, domain.RecordError{
				SourceID: id,
				Record:   rec,
				Err:      &domain.ValidationError{Table: desc.TableName(), SourceID: id, Missing: v.Missing},
			})
			continue
		}
		row := rec.Clone()
		row[domain.FieldSyncedAt] = now
		row[domain.FieldDeletedAt] = nil
		valid = append(valid, row)
	}

	for start := 0; start < len(valid); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(valid))
		batch := valid[start:end]

		_, err := o.store.Upsert(ctx, desc.TableName(), batch, desc.ConflictKeys())
		if err == nil {
			result.Synced += len(batch)
			continue
		}
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return result, fmt.Errorf("upsert %s: %w", desc.TableName(), err)
		}

		logger.Debug("Batch upsert into %s failed, retrying per record: %v", desc.TableName(), err)
		for _, rec := range batch {
			_, err := o.store.Upsert(ctx, desc.TableName(), []domain.Record{rec}, desc.ConflictKeys())
			if err == nil {
				result.Synced++
				continue
			}
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return result, fmt.Errorf("upsert %s: %w", desc.TableName(), err)
			}
			id := rec.String(desc.SourceIDField())
			logger.Warn("Upsert %s %s failed: %v", desc.TableName(), id, err)
			result.Errors = append(result.Errors, domain.RecordError{SourceID: id, Record: rec, Err: err})
		}
	}

	return result, nil
}

// Sync composes List, Transform and Upsert. The result is always non-nil;
// the error is set whenever the result reports failure.
func (o *SyncOrchestrator) Sync(
	ctx context.Context, desc driven.EntityDescriptor, params url.Values, principal *domain.Principal,
) (*domain.SyncResult, error) {
	result := &domain.SyncResult{Table: desc.TableName()}

	records, err := o.List(ctx, desc, params, principal)
	if err != nil {
		result.Message = "list failed: " + err.Error()
		return result, err
	}
	result.Fetched = len(records)
	if len(records) == 0 {
		result.Success = true
		result.Message = "no records"
		return result, nil
	}

	rows := o.Transform(desc, records)
	result.Transformed = len(rows)
	if len(rows) == 0 {
		err := fmt.Errorf("%w: all %d %s records failed to transform",
			domain.ErrInvalidInput, len(records), desc.TableName())
		result.Message = err.Error()
		return result, err
	}

	up, err := o.Upsert(ctx, desc, rows, principal)
	result.Synced = up.Synced
	result.Errors = up.Errors
	if err != nil {
		result.Message = "store unavailable: " + err.Error()
		return result, err
	}

	result.Success = true
	dropped := len(records) - len(rows)
	switch {
	case len(up.Errors) == 0 && dropped == 0:
		result.Message = fmt.Sprintf("synced %d %s", up.Synced, desc.TableName())
	default:
		result.Message = fmt.Sprintf("synced %d of %d %s (%d failed to transform, %d failed to write)",
			up.Synced, len(records), desc.TableName(), dropped, len(up.Errors))
	}
	logger.Info("Sync %s: %s", desc.TableName(), result.Message)
	return result, nil
}

// dedupe keeps the last record for each conflict key, preserving the order in
// which keys were first seen. Records missing any key part are kept as is and
// left for validation to reject.
func dedupe(records []domain.Record, keys []string) []domain.Record {
	index := make(map[string]int, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		k, ok := conflictKey(rec, keys)
		if !ok {
			out = append(out, rec)
			continue
		}
		if i, seen := index[k]; seen {
			out[i] = rec
			continue
		}
		index[k] = len(out)
		out = append(out, rec)
	}
	return out
}

func conflictKey(rec domain.Record, keys []string) (string, bool) {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = rec.String(k)
		if parts[i] == "" {
			return "", false
		}
	}
	return strings.Join(parts, "\x00"), true
}
