package mcp

import (
	"context"
	"net/url"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/entities"
)

// mockHistorical is a mock implementation of driving.HistoricalSync.
type mockHistorical struct {
	result     *domain.HistoricalSyncResult
	err        error
	windowDays int
	modules    []string
	stopped    bool
	status     *domain.SyncStatus
	latest     map[string]*time.Time
}

func (m *mockHistorical) SyncRecentTransactions(
	_ context.Context, windowDays int, modules []string, _ *domain.Principal,
) (*domain.HistoricalSyncResult, error) {
	m.windowDays = windowDays
	m.modules = modules
	return m.result, m.err
}

func (m *mockHistorical) StartRecentTransactions(
	ctx context.Context,
	windowDays int,
	modules []string,
	principal *domain.Principal,
	done func(*domain.HistoricalSyncResult, error),
) error {
	result, err := m.SyncRecentTransactions(ctx, windowDays, modules, principal)
	if done != nil {
		done(result, err)
	}
	return nil
}

func (m *mockHistorical) RequestStop(_ *domain.Principal) bool {
	m.stopped = true
	return m.status != nil
}

func (m *mockHistorical) Status(_ *domain.Principal) (*domain.SyncStatus, bool) {
	return m.status, m.status != nil
}

func (m *mockHistorical) IsRunning(_ *domain.Principal) bool {
	return m.status != nil
}

func (m *mockHistorical) LatestSyncTimestamps(_ context.Context) (map[string]*time.Time, error) {
	return m.latest, m.err
}

// mockCache is a mock implementation of driving.CacheRepository.
type mockCache struct {
	records map[string]domain.Record
	err     error
	forced  bool
}

func (m *mockCache) GetByID(
	_ context.Context, id string, _ *domain.Principal, opts driving.GetOptions,
) (domain.Record, error) {
	m.forced = opts.ForceRefresh
	return m.records[id], m.err
}

func (m *mockCache) GetByIDs(_ context.Context, _ []string, _ *domain.Principal) ([]domain.Record, error) {
	return nil, nil
}

func (m *mockCache) List(_ context.Context, _ url.Values, _ *domain.Principal, _ bool) ([]domain.Record, error) {
	return nil, nil
}

func newPorts(hs *mockHistorical, cache *mockCache) *Ports {
	p := &Ports{Historical: hs}
	if cache != nil {
		p.Modules = entities.Default()
		p.Cache = func(driven.EntityDescriptor) driving.CacheRepository { return cache }
	}
	return p
}
