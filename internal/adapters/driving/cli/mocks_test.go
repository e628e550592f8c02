package cli

import (
	"bytes"
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/entities"
)

// mockHistorical implements driving.HistoricalSync for testing.
type mockHistorical struct {
	mu         sync.Mutex
	result     *domain.HistoricalSyncResult
	err        error
	windowDays int
	modules    []string
	principal  *domain.Principal
	latest     map[string]*time.Time
	status     *domain.SyncStatus
	stops      int
}

func (m *mockHistorical) SyncRecentTransactions(
	_ context.Context, windowDays int, modules []string, principal *domain.Principal,
) (*domain.HistoricalSyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windowDays = windowDays
	m.modules = modules
	m.principal = principal
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return true
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

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	result *domain.SyncResult
	err    error
	params url.Values
	table  string
}

func (m *mockSyncOrchestrator) List(
	_ context.Context, _ driven.EntityDescriptor, _ url.Values, _ *domain.Principal,
) ([]domain.Record, error) {
	return []domain.Record{}, nil
}

func (m *mockSyncOrchestrator) Transform(_ driven.EntityDescriptor, records []domain.Record) []domain.Record {
	return records
}

func (m *mockSyncOrchestrator) Upsert(
	_ context.Context, _ driven.EntityDescriptor, _ []domain.Record, _ *domain.Principal,
) (domain.UpsertResult, error) {
	return domain.UpsertResult{}, nil
}

func (m *mockSyncOrchestrator) Sync(
	_ context.Context, desc driven.EntityDescriptor, params url.Values, _ *domain.Principal,
) (*domain.SyncResult, error) {
	m.params = params
	m.table = desc.TableName()
	return m.result, m.err
}

// mockCache implements driving.CacheRepository for testing.
type mockCache struct {
	records map[string]domain.Record
	err     error
	forced  bool
}

func (m *mockCache) GetByID(
	_ context.Context, sourceID string, _ *domain.Principal, opts driving.GetOptions,
) (domain.Record, error) {
	m.forced = opts.ForceRefresh
	return m.records[sourceID], m.err
}

func (m *mockCache) GetByIDs(_ context.Context, sourceIDs []string, _ *domain.Principal) ([]domain.Record, error) {
	var out []domain.Record
	for _, id := range sourceIDs {
		if rec, ok := m.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, m.err
}

func (m *mockCache) List(_ context.Context, _ url.Values, _ *domain.Principal, _ bool) ([]domain.Record, error) {
	return nil, nil
}

// mockSettings implements driving.SettingsService for testing.
type mockSettings struct {
	settings    domain.Settings
	saved       *domain.Settings
	validateErr error
}

func newMockSettings() *mockSettings {
	return &mockSettings{settings: domain.DefaultSettings()}
}

func (m *mockSettings) Get() (*domain.Settings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) Save(s *domain.Settings) error {
	m.saved = s
	m.settings = *s
	return nil
}

func (m *mockSettings) Validate() error { return m.validateErr }

func (m *mockSettings) GetDefaults() domain.Settings { return domain.DefaultSettings() }

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// setupServices installs services for one test and restores the previous
// wiring and flag values afterwards.
func setupServices(t *testing.T, s Services) {
	t.Helper()
	old := Services{
		Settings:   settingsService,
		Sync:       syncOrchestrator,
		Historical: historicalSync,
		Modules:    moduleRegistry,
		Cache:      cacheFactory,
		Scheduler:  scheduler,
		API:        apiHandler,
		Config:     configWatcher,
		Reload:     reloadSettings,
	}
	if s.Modules == nil {
		s.Modules = entities.Default()
	}
	SetServices(s)
	resetContexts(rootCmd)
	t.Cleanup(func() {
		SetServices(old)
		resetFlags()
		resetContexts(rootCmd)
	})
}

// resetContexts clears subcommand contexts left by an earlier run. Cobra
// only fills a subcommand context that is nil.
func resetContexts(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		c.SetContext(nil) //nolint:staticcheck // cobra treats nil as unset
		resetContexts(c)
	}
}

func resetFlags() {
	syncWindowDays, syncModules, syncUser, syncOrg = 0, nil, "", ""
	refreshPage, refreshPerPage = 1, 200
	getForce = false
	serveAddr, serveNoScheduler = "", false
	verbose, configDir = false, ""
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
