package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

func TestRefreshCmd_Success(t *testing.T) {
	orch := &mockSyncOrchestrator{result: &domain.SyncResult{
		Table:       "invoices",
		Success:     true,
		Fetched:     3,
		Transformed: 2,
		Synced:      1,
		Message:     "synced 1 of 3 (1 failed to transform)",
		Errors:      []domain.RecordError{{SourceID: "7", Err: errors.New("constraint failed")}},
	}}
	setupServices(t, Services{Sync: orch})

	out, err := execute(t, "refresh", "invoices", "--page", "2")
	require.NoError(t, err)

	assert.Equal(t, "invoices", orch.table)
	assert.Equal(t, "2", orch.params.Get("page"))
	assert.Equal(t, "200", orch.params.Get("per_page"))
	assert.Contains(t, out, "Refreshing invoices (page 2)...")
	assert.Contains(t, out, "invoices: fetched 3, transformed 2, synced 1")
	assert.Contains(t, out, "7: constraint failed")
}

func TestRefreshCmd_UnknownModule(t *testing.T) {
	setupServices(t, Services{Sync: &mockSyncOrchestrator{}})

	_, err := execute(t, "refresh", "widgets")
	assert.ErrorIs(t, err, domain.ErrUnknownModule)
}

func TestRefreshCmd_Failure(t *testing.T) {
	orch := &mockSyncOrchestrator{
		result: &domain.SyncResult{Table: "bills"},
		err:    domain.ErrUpstreamUnavailable,
	}
	setupServices(t, Services{Sync: orch})

	_, err := execute(t, "refresh", "bills")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestRefreshCmd_RequiresModule(t *testing.T) {
	setupServices(t, Services{Sync: &mockSyncOrchestrator{}})

	_, err := execute(t, "refresh")
	assert.Error(t, err)
}
