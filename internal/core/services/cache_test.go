package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/entities"
)

func TestCacheRepository_GetByID_MissFetchesAndCaches(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "42", "2024-03-10", "2024-03-10T10:00:00+0000")
	store := newTestStore()
	repo := NewCacheRepository(entities.NewInvoices(), source, store)
	ctx := context.Background()

	rec, err := repo.GetByID(ctx, "42", nil, driving.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "42", rec["invoice_id"])
	assert.NotEmpty(t, rec[domain.FieldID])
	assert.Equal(t, 1, source.callCount("invoices/42"))

	// second lookup is served locally
	rec2, err := repo.GetByID(ctx, "42", nil, driving.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, rec[domain.FieldID], rec2[domain.FieldID])
	assert.Equal(t, 1, source.callCount("invoices/42"))

	// force refresh always asks the source
	_, err = repo.GetByID(ctx, "42", nil, driving.GetOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount("invoices/42"))
	assert.Len(t, liveRows(store, "invoices"), 1)
}

func TestCacheRepository_GetByID_DeletionReconciliation(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "42", "2024-03-10", "2024-03-10T10:00:00+0000")
	store := newTestStore()
	repo := NewCacheRepository(entities.NewInvoices(), source, store)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "42", nil, driving.GetOptions{})
	require.NoError(t, err)

	delete(source.details, "invoices/42")

	rec, err := repo.GetByID(ctx, "42", nil, driving.GetOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.Empty(t, liveRows(store, "invoices"))
	all, err := store.Select(ctx, "invoices", domain.Query{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted())

	// a soft-deleted row is never a cache hit
	source.resetCalls()
	rec, err = repo.GetByID(ctx, "42", nil, driving.GetOptions{})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 1, source.callCount("invoices/42"))
}

func TestCacheRepository_GetByID_Resurrects(t *testing.T) {
	source := newFakeSource()
	store := newTestStore()
	repo := NewCacheRepository(entities.NewInvoices(), source, store)
	ctx := context.Background()

	_, err := store.Insert(ctx, "invoices", []domain.Record{{
		"invoice_id":          "42",
		domain.FieldDeletedAt: testNow,
	}})
	require.NoError(t, err)

	source.addInvoice(1, "42", "2024-03-10", "2024-03-10T10:00:00+0000")
	rec, err := repo.GetByID(ctx, "42", nil, driving.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.IsDeleted())
	assert.Len(t, liveRows(store, "invoices"), 1)
}

func TestCacheRepository_GetByID_ReadFailureIsMiss(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "42", "2024-03-10", "2024-03-10T10:00:00+0000")
	store := newFailingStore(newTestStore())
	store.failSelect = true
	repo := NewCacheRepository(entities.NewInvoices(), source, store)

	rec, err := repo.GetByID(context.Background(), "42", nil, driving.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, source.callCount("invoices/42"))
}

func TestCacheRepository_GetByID_WriteFailureReturnsRecord(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "42", "2024-03-10", "2024-03-10T10:00:00+0000")
	store := newFailingStore(newTestStore())
	store.failIDs["42"] = true
	repo := NewCacheRepository(entities.NewInvoices(), source, store)

	rec, err := repo.GetByID(context.Background(), "42", nil, driving.GetOptions{})
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "42", rec["invoice_id"])
}

func TestCacheRepository_GetByID_UpstreamError(t *testing.T) {
	source := newFakeSource()
	source.errs["invoices/42"] = domain.ErrUpstreamUnavailable
	repo := NewCacheRepository(entities.NewInvoices(), source, newTestStore())

	rec, err := repo.GetByID(context.Background(), "42", nil, driving.GetOptions{})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Nil(t, rec)
}

func TestCacheRepository_GetByIDs(t *testing.T) {
	source := newFakeSource()
	source.addInvoice(1, "1", "2024-03-10", "2024-03-10T10:00:00+0000")
	source.addInvoice(1, "2", "2024-03-10", "2024-03-10T10:00:00+0000")
	store := newTestStore()
	repo := NewCacheRepository(entities.NewInvoices(), source, store)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "1", nil, driving.GetOptions{})
	require.NoError(t, err)
	source.resetCalls()

	recs, err := repo.GetByIDs(ctx, []string{"1", "2", "3", "2"}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	ids := []string{recs[0].String("invoice_id"), recs[1].String("invoice_id")}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
	assert.Equal(t, 0, source.callCount("invoices/1"))
	assert.Equal(t, 1, source.callCount("invoices/2"))
	assert.Equal(t, 1, source.callCount("invoices/3"))
}

func TestCacheRepository_List(t *testing.T) {
	source := newFakeSource()
	source.setPages("invoices", []domain.Record{
		invoiceRow("1", "draft"),
		{"invoice_number": "no id"},
		invoiceRow("2", "sent"),
	})
	store := newTestStore()
	repo := NewCacheRepository(entities.NewInvoices(), source, store)
	ctx := context.Background()

	recs, err := repo.List(ctx, nil, nil, false)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Empty(t, liveRows(store, "invoices"))

	recs, err = repo.List(ctx, nil, nil, true)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Len(t, liveRows(store, "invoices"), 2)
}

func TestCacheRepository_List_WriteErrorStillReturnsRecords(t *testing.T) {
	source := newFakeSource()
	source.setPages("invoices", []domain.Record{invoiceRow("1", "draft")})
	store := newFailingStore(newTestStore())
	store.unavailable = true
	repo := NewCacheRepository(entities.NewInvoices(), source, store)

	recs, err := repo.List(context.Background(), nil, nil, true)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Len(t, recs, 1)
}
