package services

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/entities"
)

func newTestEngine(source *fakeSource, store driven.Store, opts HistoricalOptions) *HistoricalSyncEngine {
	e := NewHistoricalSyncEngine(entities.Default(), source, store, NewCancellationRegistry(), opts)
	e.now = func() time.Time { return testNow }
	return e
}

func lineItemsOf(t *testing.T, store driven.Store, invoiceID string) []domain.Record {
	t.Helper()
	parents := liveRows(store, "invoices", domain.Eq("invoice_id", invoiceID))
	require.Len(t, parents, 1)
	rows, err := store.Select(context.Background(), entities.LineItemsTable, domain.Query{
		Filter: domain.Filter{
			domain.Eq(domain.FieldParentID, parents[0][domain.FieldID]),
			domain.Eq(domain.FieldParentType, "invoice"),
		},
		OrderBy: "line_item_id",
	})
	require.NoError(t, err)
	return rows
}

func TestHistoricalSync_SingleModule(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "3", "2024-03-20", "2024-03-20T10:00:00+0000", "a", "b")
	source.addInvoice(1, "2", "2024-03-15", "2024-03-15T10:00:00+0000", "c")
	source.addInvoice(1, "1", "2024-03-05", "2024-03-05T10:00:00+0000")
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Stopped)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, result.Synced["invoices"])
	assert.Equal(t, "2024-03-01", result.Window.StartDate())
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, domain.ModuleDone, result.Outcomes[0].State)

	assert.Len(t, liveRows(store, "invoices"), 3)
	assert.Len(t, lineItemsOf(t, store, "3"), 2)
	assert.Len(t, lineItemsOf(t, store, "2"), 1)
	assert.Empty(t, lineItemsOf(t, store, "1"))
}

func TestHistoricalSync_ListParams(t *testing.T) {
	source := newFakeSource()
	var got url.Values
	source.onGet = func(endpoint string, params url.Values) {
		if endpoint == "invoices" {
			got = params
		}
	}
	engine := newTestEngine(source, newTestStore(), HistoricalOptions{})

	_, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "50", got.Get("per_page"))
	assert.Equal(t, "1", got.Get("page"))
	assert.Equal(t, "date", got.Get("sort_column"))
	assert.Equal(t, "D", got.Get("sort_order"))
	assert.Equal(t, "2024-03-01", got.Get("date_start"))
	assert.Equal(t, "2024-03-31", got.Get("date_end"))
}

func TestHistoricalSync_Idempotent(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "2", "2024-03-15", "2024-03-15T10:00:00+0000", "a")
	source.addInvoice(1, "1", "2024-03-05", "2024-03-05T10:00:00+0000", "b")
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})
	ctx := context.Background()

	_, err := engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	before, err := store.Select(ctx, "invoices", domain.Query{OrderBy: "invoice_id"})
	require.NoError(t, err)
	beforeItems, err := store.Select(ctx, entities.LineItemsTable, domain.Query{OrderBy: "line_item_id"})
	require.NoError(t, err)

	source.resetCalls()
	result, err := engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synced["invoices"])
	assert.Equal(t, 2, result.Outcomes[0].Skipped)
	assert.Equal(t, 0, source.callCount("invoices/"))

	after, err := store.Select(ctx, "invoices", domain.Query{OrderBy: "invoice_id"})
	require.NoError(t, err)
	afterItems, err := store.Select(ctx, entities.LineItemsTable, domain.Query{OrderBy: "line_item_id"})
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeItems, afterItems)
}

func TestHistoricalSync_RefetchesWhenModified(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-15", "2024-03-15T10:00:00+0000", "a", "b", "c")
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})
	ctx := context.Background()

	_, err := engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	require.Len(t, lineItemsOf(t, store, "1"), 3)
	parentID := liveRows(store, "invoices")[0][domain.FieldID]

	source.setPages("invoices")
	source.addInvoice(1, "1", "2024-03-15", "2024-03-16T09:00:00+0000", "b", "d")

	result, err := engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced["invoices"])

	items := lineItemsOf(t, store, "1")
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0]["line_item_id"])
	assert.Equal(t, "d", items[1]["line_item_id"])

	rows := liveRows(store, "invoices")
	require.Len(t, rows, 1)
	assert.Equal(t, parentID, rows[0][domain.FieldID])
	assert.Equal(t, "2024-03-16T09:00:00Z", rows[0][domain.FieldLastModifiedTime])
}

func TestHistoricalSync_SoftDeletedRowIsRefetched(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-15", "2024-03-15T10:00:00+0000")
	store := newTestStore()
	_, err := store.Insert(context.Background(), "invoices", []domain.Record{{
		"invoice_id":                 "1",
		domain.FieldLastModifiedTime: "2024-03-15T10:00:00Z",
		domain.FieldDeletedAt:        testNow,
	}})
	require.NoError(t, err)
	engine := newTestEngine(source, store, HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced["invoices"])
	assert.Len(t, liveRows(store, "invoices"), 1)
}

func TestHistoricalSync_DetailNotFoundSoftDeletes(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-15", "2024-03-15T10:00:00+0000")
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})
	ctx := context.Background()

	_, err := engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)

	source.setPages("invoices")
	source.addInvoice(1, "1", "2024-03-15", "2024-03-16T10:00:00+0000")
	delete(source.details, "invoices/1")

	result, err := engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Empty(t, liveRows(store, "invoices"))
}

func TestHistoricalSync_BoundaryTermination(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "4", "2024-03-10", "2024-03-10T10:00:00+0000")
	source.addInvoice(1, "3", "2024-03-01", "2024-03-01T10:00:00+0000")
	source.addInvoice(1, "2", "2024-02-28", "2024-02-28T10:00:00+0000")
	source.addInvoice(1, "1", "2024-02-20", "2024-02-20T10:00:00+0000")
	for i := 0; i < pageSize-4; i++ {
		source.addInvoice(1, fmt.Sprintf("old-%d", i), "2024-02-01", "2024-02-01T10:00:00+0000")
	}
	source.addInvoice(2, "0", "2024-01-01", "2024-01-01T10:00:00+0000")
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleDone, result.Outcomes[0].State)
	assert.Equal(t, 2, result.Synced["invoices"])

	assert.True(t, source.called("invoices/3"))
	assert.False(t, source.called("invoices/2"))
	assert.False(t, source.called("invoices/1"))
	assert.False(t, source.called("invoices?page=2"))
}

func TestHistoricalSync_BeforeWindowEndsWithoutDetail(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "2", "2024-03-02", "2024-03-02T10:00:00+0000")
	source.addInvoice(1, "1", "2024-02-29", "2024-02-29T10:00:00+0000")
	engine := newTestEngine(source, newTestStore(), HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced["invoices"])
	assert.False(t, source.called("invoices/1"))
}

func TestHistoricalSync_TwoPagesEndToEnd(t *testing.T) {
	source := newFakeSource()
	day := time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)
	for i := 0; i < pageSize; i++ {
		d := day.Add(-time.Duration(i) * 10 * time.Hour).Format("2006-01-02")
		source.addInvoice(1, fmt.Sprintf("p1-%02d", i), d, d+"T10:00:00+0000", "x")
	}
	for i := 0; i < 5; i++ {
		source.addInvoice(2, fmt.Sprintf("p2-%02d", i), "2024-03-08", "2024-03-08T10:00:00+0000", "y", "z")
	}
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)

	out := result.Outcomes[0]
	assert.Equal(t, domain.ModuleDone, out.State)
	assert.Equal(t, 2, out.Pages)
	assert.Equal(t, pageSize+5, out.Synced)
	assert.Equal(t, pageSize+5, result.Total())
	assert.Len(t, liveRows(store, "invoices"), pageSize+5)

	items, err := store.Select(context.Background(), entities.LineItemsTable, domain.Query{})
	require.NoError(t, err)
	assert.Len(t, items, pageSize+10)
	assert.False(t, source.called("invoices?page=3"))
}

func TestHistoricalSync_CooperativeStop(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "3", "2024-03-20", "2024-03-20T10:00:00+0000")
	source.addInvoice(1, "2", "2024-03-15", "2024-03-15T10:00:00+0000")
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	source.setPages("bills", []domain.Record{})
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})

	source.onGet = func(endpoint string, _ url.Values) {
		if endpoint == "invoices/2" {
			assert.True(t, engine.RequestStop(nil))
		}
	}

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices", "bills"}, nil)
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, domain.ModuleStopped, result.Outcomes[0].State)
	assert.Equal(t, 2, result.Synced["invoices"])

	assert.False(t, source.called("invoices/1"))
	assert.Equal(t, 0, source.callCount("bills"))
	assert.False(t, engine.IsRunning(nil))
}

func TestHistoricalSync_StopWithoutActiveSync(t *testing.T) {
	engine := newTestEngine(newFakeSource(), newTestStore(), HistoricalOptions{})
	assert.False(t, engine.RequestStop(&domain.Principal{UserID: "u1"}))
}

func TestHistoricalSync_TransientErrorFailsModuleOnly(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "2", "2024-03-20", "2024-03-20T10:00:00+0000")
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	source.errs["invoices/1"] = fmt.Errorf("GET: %w", domain.ErrUpstreamUnavailable)
	source.setPages("bills", []domain.Record{{
		"bill_id":            "b1",
		"date":               "2024-03-12",
		"last_modified_time": "2024-03-12T10:00:00+0000",
	}})
	source.details["bills/b1"] = domain.Record{"bill": map[string]any{
		"bill_id":   "b1",
		"vendor_id": "v1",
		"date":      "2024-03-12",
	}}
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices", "bills"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)

	assert.Equal(t, domain.ModuleFailed, result.Outcomes[0].State)
	assert.ErrorIs(t, result.Outcomes[0].Err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, 1, result.Synced["invoices"])

	assert.Equal(t, domain.ModuleDone, result.Outcomes[1].State)
	assert.Equal(t, 1, result.Synced["bills"])

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "invoices", result.Errors[0].Module)
}

func TestHistoricalSync_ListFailureFailsModule(t *testing.T) {
	source := newFakeSource()
	source.errs["invoices?page=1"] = domain.ErrRateLimited
	engine := newTestEngine(source, newTestStore(), HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleFailed, result.Outcomes[0].State)
	assert.Len(t, result.Errors, 1)
}

func TestHistoricalSync_RowErrorsAreCollected(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "2", "2024-03-20", "2024-03-20T10:00:00+0000")
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	store := newFailingStore(newTestStore())
	store.failIDs["2"] = true
	engine := newTestEngine(source, store, HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleDone, result.Outcomes[0].State)
	assert.Equal(t, 1, result.Synced["invoices"])
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "2", result.Errors[0].SourceID)
}

func TestHistoricalSync_StoreUnavailableFailsModule(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	store := newFailingStore(newTestStore())
	store.unavailable = true
	engine := newTestEngine(source, store, HistoricalOptions{})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleFailed, result.Outcomes[0].State)
	assert.ErrorIs(t, result.Outcomes[0].Err, domain.ErrStoreUnavailable)
}

func TestHistoricalSync_Comments(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	source.comments["invoices/1"] = []domain.Record{
		{"description": "Sent to Jane <jane@customer.example> and ops@acme.example"},
		{"description": "cc billing@Customer.example", "commented_by": "bob@acme.example"},
	}
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{FetchComments: true, OperatorDomain: "acme.example"})

	_, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)

	rows := liveRows(store, "invoices")
	require.Len(t, rows, 1)
	assert.Equal(t, "billing@customer.example,jane@customer.example", rows[0][domain.FieldExternalEmails])
}

func TestHistoricalSync_CommentsFailureIsIgnored(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	source.errs["invoices/1/comments"] = domain.ErrUpstreamUnavailable
	engine := newTestEngine(source, newTestStore(), HistoricalOptions{FetchComments: true})

	result, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced["invoices"])
	assert.Empty(t, result.Errors)
}

func TestHistoricalSync_RejectsConcurrentRunForPrincipal(t *testing.T) {
	engine := newTestEngine(newFakeSource(), newTestStore(), HistoricalOptions{})
	principal := &domain.Principal{UserID: "u1"}
	engine.cancel.RegisterSync(principal.Key(), "invoices")

	_, err := engine.SyncRecentTransactions(context.Background(), 30, nil, principal)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	_, err = engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, &domain.Principal{UserID: "u2"})
	assert.NoError(t, err)
}

func TestHistoricalSync_InvalidArguments(t *testing.T) {
	engine := newTestEngine(newFakeSource(), newTestStore(), HistoricalOptions{})

	_, err := engine.SyncRecentTransactions(context.Background(), 0, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = engine.SyncRecentTransactions(context.Background(), 30, []string{"payments"}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownModule)
}

func TestHistoricalSync_StatusDuringRun(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "2", "2024-03-20", "2024-03-20T10:00:00+0000")
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	engine := newTestEngine(source, newTestStore(), HistoricalOptions{})
	principal := &domain.Principal{UserID: "u1"}

	var seen *domain.SyncStatus
	source.onGet = func(endpoint string, _ url.Values) {
		if endpoint == "invoices/1" {
			seen, _ = engine.Status(principal)
		}
	}

	_, err := engine.SyncRecentTransactions(context.Background(), 30, []string{"invoices"}, principal)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "invoices", seen.Module)
	assert.Equal(t, 1, seen.Page)
	assert.Equal(t, 1, seen.RecordIndex)

	_, ok := engine.Status(principal)
	assert.False(t, ok)
}

func TestLatestSyncTimestamps(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	_, err := store.Insert(ctx, "invoices", []domain.Record{
		{"invoice_id": "1", domain.FieldSyncedAt: "2024-03-02T00:00:00Z"},
		{"invoice_id": "2", domain.FieldSyncedAt: "2024-03-05T00:00:00Z"},
	})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "bills", []domain.Record{
		{"bill_id": "1", domain.FieldLastModifiedTime: "2024-02-10T08:00:00Z"},
	})
	require.NoError(t, err)
	engine := newTestEngine(newFakeSource(), store, HistoricalOptions{})

	latest, err := engine.LatestSyncTimestamps(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 4)

	require.NotNil(t, latest["invoices"])
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), *latest["invoices"])
	require.NotNil(t, latest["bills"])
	assert.Equal(t, time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC), *latest["bills"])
	assert.Nil(t, latest["salesorders"])
}

func TestLatestSyncTimestamps_StoreUnavailable(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Close())
	engine := newTestEngine(newFakeSource(), store, HistoricalOptions{})

	_, err := engine.LatestSyncTimestamps(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNeedsUpdate(t *testing.T) {
	listed := domain.Record{domain.FieldLastModifiedTime: "2024-03-02T10:00:00+0000"}

	assert.True(t, needsUpdate(nil, listed))
	assert.True(t, needsUpdate(domain.Record{domain.FieldDeletedAt: "2024-03-01T00:00:00Z"}, listed))
	assert.True(t, needsUpdate(domain.Record{}, listed))
	assert.True(t, needsUpdate(domain.Record{domain.FieldLastModifiedTime: "2024-03-01T00:00:00Z"}, listed))
	assert.False(t, needsUpdate(domain.Record{domain.FieldLastModifiedTime: "2024-03-02T10:00:00Z"}, listed))
	assert.True(t, needsUpdate(domain.Record{domain.FieldLastModifiedTime: "2024-03-02T10:00:00Z"}, domain.Record{}))
}

func TestHistoricalSync_StartRegistersBeforeReturning(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	release := make(chan struct{})
	source.onGet = func(string, url.Values) { <-release }
	engine := newTestEngine(source, newTestStore(), HistoricalOptions{})
	ctx := context.Background()

	done := make(chan *domain.HistoricalSyncResult, 1)
	err := engine.StartRecentTransactions(ctx, 30, []string{"invoices"}, nil,
		func(result *domain.HistoricalSyncResult, err error) {
			assert.NoError(t, err)
			done <- result
		})
	require.NoError(t, err)
	assert.True(t, engine.IsRunning(nil))

	err = engine.StartRecentTransactions(ctx, 30, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	_, err = engine.SyncRecentTransactions(ctx, 30, nil, nil)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	close(release)
	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.Equal(t, 1, result.Synced["invoices"])
	case <-time.After(5 * time.Second):
		t.Fatal("background sync did not finish")
	}
	assert.False(t, engine.IsRunning(nil))
}

func TestHistoricalSync_StartRejectsInvalidInput(t *testing.T) {
	engine := newTestEngine(newFakeSource(), newTestStore(), HistoricalOptions{})

	err := engine.StartRecentTransactions(context.Background(), 0, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = engine.StartRecentTransactions(context.Background(), 30, []string{"widgets"}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownModule)
	assert.False(t, engine.IsRunning(nil))
}

func TestHistoricalSync_SetOptionsAppliesToNextRun(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	source.comments["invoices/1"] = []domain.Record{{"description": "cc kim@customer.example"}}
	store := newTestStore()
	engine := newTestEngine(source, store, HistoricalOptions{})
	ctx := context.Background()

	_, err := engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)
	assert.False(t, source.called("invoices/1/comments"))

	engine.SetOptions(HistoricalOptions{FetchComments: true})
	source.addInvoice(1, "1", "2024-03-10", "2024-03-11T10:00:00+0000")
	_, err = engine.SyncRecentTransactions(ctx, 30, []string{"invoices"}, nil)
	require.NoError(t, err)

	assert.True(t, source.called("invoices/1/comments"))
	rows := liveRows(store, "invoices")
	require.Len(t, rows, 1)
	assert.Equal(t, "kim@customer.example", rows[0][domain.FieldExternalEmails])
}
