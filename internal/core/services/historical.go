package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Ensure HistoricalSyncEngine implements the interface.
var _ driving.HistoricalSync = (*HistoricalSyncEngine)(nil)

// HistoricalOptions tunes the optional steps of a historical sync.
type HistoricalOptions struct {
	// FetchComments enables the best-effort comments step.
	FetchComments bool

	// OperatorDomain is excluded when collecting external e-mail addresses.
	OperatorDomain string
}

// HistoricalSyncEngine backfills a trailing window of transactions. Modules
// are synced one after another, pages newest-first, records in order. A
// stop request is honoured between records.
type HistoricalSyncEngine struct {
	modules driven.ModuleRegistry
	client  driven.ExternalClient
	store   driven.Store
	cancel  *CancellationRegistry
	now     func() time.Time

	optsMu sync.RWMutex
	opts   HistoricalOptions
}

// NewHistoricalSyncEngine creates a historical sync engine.
func NewHistoricalSyncEngine(
	modules driven.ModuleRegistry,
	client driven.ExternalClient,
	store driven.Store,
	cancel *CancellationRegistry,
	opts HistoricalOptions,
) *HistoricalSyncEngine {
	return &HistoricalSyncEngine{
		modules: modules,
		client:  client,
		store:   store,
		cancel:  cancel,
		opts:    opts,
		now:     time.Now,
	}
}

// SetOptions replaces the options used by syncs started afterwards.
func (e *HistoricalSyncEngine) SetOptions(opts HistoricalOptions) {
	e.optsMu.Lock()
	defer e.optsMu.Unlock()
	e.opts = opts
}

func (e *HistoricalSyncEngine) options() HistoricalOptions {
	e.optsMu.RLock()
	defer e.optsMu.RUnlock()
	return e.opts
}

// SyncRecentTransactions syncs each module over [today-windowDays, today].
// A failed module is reported in the result and the remaining modules still
// run. A stop request ends the current module and skips the rest.
func (e *HistoricalSyncEngine) SyncRecentTransactions(
	ctx context.Context, windowDays int, modules []string, principal *domain.Principal,
) (*domain.HistoricalSyncResult, error) {
	descs, err := e.begin(windowDays, modules, principal)
	if err != nil {
		return nil, err
	}
	defer e.cancel.UnregisterSync(principal.Key())

	return e.run(ctx, descs, windowDays, principal)
}

// StartRecentTransactions registers the sync before returning and runs it
// in the background. A principal with an active sync gets
// ErrSyncInProgress and nothing is started. done, if non-nil, receives the
// outcome after the sync has been unregistered.
func (e *HistoricalSyncEngine) StartRecentTransactions(
	ctx context.Context,
	windowDays int,
	modules []string,
	principal *domain.Principal,
	done func(*domain.HistoricalSyncResult, error),
) error {
	descs, err := e.begin(windowDays, modules, principal)
	if err != nil {
		return err
	}

	go func() {
		result, err := e.run(ctx, descs, windowDays, principal)
		e.cancel.UnregisterSync(principal.Key())
		if done != nil {
			done(result, err)
		}
	}()
	return nil
}

// begin validates a request and registers it for the principal.
func (e *HistoricalSyncEngine) begin(
	windowDays int, modules []string, principal *domain.Principal,
) ([]driven.TransactionDescriptor, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: window days must be positive, got %d", domain.ErrInvalidInput, windowDays)
	}
	descs, err := e.modules.Resolve(modules)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: no modules", domain.ErrInvalidInput)
	}

	key := principal.Key()
	if !e.cancel.TryRegisterSync(key, descs[0].Module()) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, key)
	}
	return descs, nil
}

func (e *HistoricalSyncEngine) run(
	ctx context.Context, descs []driven.TransactionDescriptor, windowDays int, principal *domain.Principal,
) (*domain.HistoricalSyncResult, error) {
	key := principal.Key()
	window := domain.NewSyncWindow(e.now(), windowDays)
	result := &domain.HistoricalSyncResult{
		Window: window,
		Synced: make(map[string]int, len(descs)),
	}

	logger.Section("Historical Sync")
	logger.Info("Window %s..%s, modules %d, principal %s", window.StartDate(), window.EndDate(), len(descs), key)

	for _, desc := range descs {
		if e.cancel.IsStopRequested(key) {
			result.Stopped = true
			break
		}

		out := e.syncModule(ctx, desc, window, principal)
		result.Outcomes = append(result.Outcomes, out)
		result.Synced[out.Module] = out.Synced
		for _, re := range out.Errors {
			result.Errors = append(result.Errors, domain.ModuleError{Module: out.Module, SourceID: re.SourceID, Err: re.Err})
		}
		if out.Err != nil {
			result.Errors = append(result.Errors, domain.ModuleError{Module: out.Module, Err: out.Err})
		}

		logger.Info("Module %s: %s, %d synced, %d skipped, %d pages, %d errors",
			out.Module, out.State, out.Synced, out.Skipped, out.Pages, len(out.Errors))

		if out.State == domain.ModuleStopped {
			result.Stopped = true
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	logger.Info("Historical sync complete: %d records, %d errors, stopped=%t",
		result.Total(), len(result.Errors), result.Stopped)
	return result, nil
}

// syncModule pages through one module until the window boundary, a short
// page, a stop request or a systemic failure.
func (e *HistoricalSyncEngine) syncModule(
	ctx context.Context, desc driven.TransactionDescriptor, window domain.SyncWindow, principal *domain.Principal,
) domain.ModuleOutcome {
	key := principal.Key()
	strategy := strategyFor(desc.Service())
	out := domain.ModuleOutcome{Module: desc.Module()}

	for page := 1; ; page++ {
		if e.cancel.IsStopRequested(key) {
			out.State = domain.ModuleStopped
			return out
		}
		e.cancel.UpdateProgress(key, desc.Module(), page, 0)

		params := strategy.pageParams(desc, window, page)
		raw, err := e.client.Get(ctx, desc.Service(), desc.Endpoint(), params, principal)
		if errors.Is(err, domain.ErrNotFound) {
			out.State = domain.ModuleDone
			return out
		}
		if err != nil {
			out.State = domain.ModuleFailed
			out.Err = fmt.Errorf("list page %d: %w", page, err)
			return out
		}
		records, err := desc.ExtractFromResponse(raw)
		if err != nil {
			out.State = domain.ModuleFailed
			out.Err = fmt.Errorf("list page %d: %w", page, err)
			return out
		}
		out.Pages++
		logger.Debug("%s page %d: %d records", desc.Module(), page, len(records))

		for i, src := range records {
			e.cancel.UpdateProgress(key, desc.Module(), page, i)

			date, dated := src.Time(desc.DateField())
			if dated && window.Before(date) {
				out.State = domain.ModuleDone
				return out
			}

			synced, err := e.syncRecord(ctx, desc, src, principal)
			switch {
			case err != nil && isSystemic(err):
				out.State = domain.ModuleFailed
				out.Err = err
				return out
			case err != nil:
				id := src.String(desc.SourceIDField())
				logger.Warn("%s %s: %v", desc.Module(), id, err)
				out.Errors = append(out.Errors, domain.RecordError{SourceID: id, Record: src, Err: err})
			case synced:
				out.Synced++
			default:
				out.Skipped++
			}

			if dated && window.AtBoundary(date) {
				out.State = domain.ModuleDone
				return out
			}
			if e.cancel.IsStopRequested(key) {
				out.State = domain.ModuleStopped
				return out
			}
		}

		if len(records) < pageSize {
			out.State = domain.ModuleDone
			return out
		}
	}
}

// syncRecord refetches and persists one list record when the cache is
// stale. Returns false without error when the record was already current or
// has disappeared at the source.
func (e *HistoricalSyncEngine) syncRecord(
	ctx context.Context, desc driven.TransactionDescriptor, src domain.Record, principal *domain.Principal,
) (bool, error) {
	id := src.String(desc.SourceIDField())
	if id == "" {
		return false, &domain.TransformError{Table: desc.TableName(), Reason: "missing " + desc.SourceIDField()}
	}

	existing := e.lookup(ctx, desc, id)
	if !needsUpdate(existing, src) {
		return false, nil
	}

	raw, err := e.client.Get(ctx, desc.Service(), detailEndpoint(desc, id), nil, principal)
	if errors.Is(err, domain.ErrNotFound) {
		e.markDeleted(ctx, desc, id, existing)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", id, err)
	}
	details, err := desc.ExtractFromResponse(raw)
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", id, err)
	}
	if len(details) == 0 {
		e.markDeleted(ctx, desc, id, existing)
		return false, nil
	}
	detail := details[0]

	row, err := desc.Transform(detail, nil)
	if err != nil {
		return false, err
	}
	if v := desc.Validate(row); !v.Valid {
		return false, &domain.ValidationError{Table: desc.TableName(), SourceID: id, Missing: v.Missing}
	}
	row[domain.FieldSyncedAt] = e.now().UTC()
	row[domain.FieldDeletedAt] = nil

	written, err := e.store.Upsert(ctx, desc.TableName(), []domain.Record{row}, desc.ConflictKeys())
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", id, err)
	}

	parentID := storageID(written)
	if parentID == "" {
		if stored := e.lookup(ctx, desc, id); stored != nil {
			parentID = stored.String(domain.FieldID)
		}
	}
	if parentID == "" {
		return false, fmt.Errorf("resolve storage id for %s %s", desc.TableName(), id)
	}

	if err := e.replaceLineItems(ctx, desc, detail, parentID); err != nil {
		return false, fmt.Errorf("line items for %s: %w", id, err)
	}

	if e.options().FetchComments {
		e.attachComments(ctx, desc, id, parentID, principal)
	}
	return true, nil
}

// replaceLineItems swaps the stored line items of one parent for the set in
// the detail payload in a single atomic store call.
func (e *HistoricalSyncEngine) replaceLineItems(
	ctx context.Context, desc driven.TransactionDescriptor, detail domain.Record, parentID string,
) error {
	li := desc.LineItems()
	parent := &domain.ParentRef{ID: parentID, Type: desc.Kind()}
	items, _ := detail.List(desc.LineItemsKey())

	now := e.now().UTC()
	rows := make([]domain.Record, 0, len(items))
	for _, item := range items {
		rec, err := li.Transform(item, parent)
		if err != nil {
			logger.Warn("Skipping line item of %s %s: %v", desc.Kind(), parentID, err)
			continue
		}
		if v := li.Validate(rec); !v.Valid {
			logger.Warn("Skipping line item of %s %s: missing %s", desc.Kind(), parentID, strings.Join(v.Missing, ", "))
			continue
		}
		rec[domain.FieldSyncedAt] = now
		rows = append(rows, rec)
	}
	rows = dedupe(rows, li.ConflictKeys())

	filter := domain.Filter{
		domain.Eq(domain.FieldParentID, parentID),
		domain.Eq(domain.FieldParentType, desc.Kind()),
	}
	return e.store.Replace(ctx, li.TableName(), filter, rows)
}

// attachComments stores external e-mail addresses mentioned in the record's
// comments. Failures are logged and never fail the record.
func (e *HistoricalSyncEngine) attachComments(
	ctx context.Context, desc driven.TransactionDescriptor, sourceID, parentID string, principal *domain.Principal,
) {
	raw, err := e.client.Get(ctx, desc.Service(), detailEndpoint(desc, sourceID)+"/comments", nil, principal)
	if err != nil {
		logger.Debug("Comments for %s %s unavailable: %v", desc.Kind(), sourceID, err)
		return
	}
	emails := externalEmails(raw, e.options().OperatorDomain)
	if len(emails) == 0 {
		return
	}

	_, err = e.store.Update(ctx, desc.TableName(),
		domain.Filter{domain.Eq(domain.FieldID, parentID)},
		domain.Record{domain.FieldExternalEmails: strings.Join(emails, ",")},
	)
	if err != nil {
		logger.Debug("Storing e-mails for %s %s failed: %v", desc.Kind(), sourceID, err)
	}
}

// lookup returns the stored row for sourceID including soft-deleted rows.
// A failed read is treated as a miss so the record is refetched.
func (e *HistoricalSyncEngine) lookup(
	ctx context.Context, desc driven.EntityDescriptor, sourceID string,
) domain.Record {
	rows, err := e.store.Select(ctx, desc.TableName(), domain.Query{
		Filter: domain.Filter{domain.Eq(desc.SourceIDField(), sourceID)},
		Limit:  1,
	})
	if err != nil {
		logger.Debug("Lookup %s %s failed: %v", desc.TableName(), sourceID, err)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func (e *HistoricalSyncEngine) markDeleted(
	ctx context.Context, desc driven.EntityDescriptor, sourceID string, existing domain.Record,
) {
	if existing == nil || existing.IsDeleted() {
		return
	}
	_, err := e.store.Update(ctx, desc.TableName(),
		domain.Live(domain.Eq(desc.SourceIDField(), sourceID)),
		domain.Record{domain.FieldDeletedAt: e.now().UTC()},
	)
	if err != nil {
		logger.Warn("Soft-delete %s %s failed: %v", desc.TableName(), sourceID, err)
		return
	}
	logger.Debug("Soft-deleted %s %s: gone at source", desc.TableName(), sourceID)
}

// RequestStop asks the principal's active sync to stop.
func (e *HistoricalSyncEngine) RequestStop(principal *domain.Principal) bool {
	return e.cancel.RequestStop(principal.Key())
}

// Status returns the principal's progress snapshot.
func (e *HistoricalSyncEngine) Status(principal *domain.Principal) (*domain.SyncStatus, bool) {
	return e.cancel.Status(principal.Key())
}

// IsRunning reports whether the principal has an active sync.
func (e *HistoricalSyncEngine) IsRunning(principal *domain.Principal) bool {
	return e.cancel.IsActive(principal.Key())
}

// LatestSyncTimestamps returns the newest synced_at per module, falling back
// to the newest last_modified_time for rows written before synced_at existed.
func (e *HistoricalSyncEngine) LatestSyncTimestamps(ctx context.Context) (map[string]*time.Time, error) {
	descs, err := e.modules.Resolve(nil)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*time.Time, len(descs))
	for _, desc := range descs {
		ts, err := e.latest(ctx, desc.TableName(), domain.FieldSyncedAt)
		if err != nil {
			return nil, fmt.Errorf("latest %s: %w", desc.Module(), err)
		}
		if ts == nil {
			ts, err = e.latest(ctx, desc.TableName(), domain.FieldLastModifiedTime)
			if err != nil {
				return nil, fmt.Errorf("latest %s: %w", desc.Module(), err)
			}
		}
		out[desc.Module()] = ts
	}
	return out, nil
}

func (e *HistoricalSyncEngine) latest(ctx context.Context, table, column string) (*time.Time, error) {
	rows, err := e.store.Select(ctx, table, domain.Query{
		Filter:  domain.Filter{domain.NotNull(column)},
		OrderBy: column,
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	t, ok := rows[0].Time(column)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// needsUpdate reports whether the list record is newer than the stored row.
// Missing or soft-deleted rows and rows without comparable timestamps are
// always refetched.
func needsUpdate(existing, src domain.Record) bool {
	if existing == nil || existing.IsDeleted() {
		return true
	}
	listed, ok := src.Time(domain.FieldLastModifiedTime)
	if !ok {
		return true
	}
	stored, ok := existing.Time(domain.FieldLastModifiedTime)
	if !ok {
		return true
	}
	return listed.After(stored)
}

// isSystemic reports whether err should abort the whole module rather than
// be recorded against a single row.
func isSystemic(err error) bool {
	return domain.IsTransient(err) ||
		errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, domain.ErrAuthRequired) ||
		errors.Is(err, domain.ErrTokenRefreshFailed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func storageID(written []domain.Record) string {
	if len(written) == 0 {
		return ""
	}
	return written[0].String(domain.FieldID)
}
