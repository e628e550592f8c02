// Command ledgersync syncs and caches transactional data from Zoho.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/ledgersync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ledgersync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ledgersync/internal/adapters/driving/cli"
	"github.com/custodia-labs/ledgersync/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/ledgersync/internal/connectors/zoho"
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/core/services"
	"github.com/custodia-labs/ledgersync/internal/entities"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap wires adapters into services for a single command run.
func bootstrap(configDir string) (cli.Services, func(), error) {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := configStore.LoadEnv(".env"); err != nil {
		return cli.Services{}, nil, fmt.Errorf("loading .env: %w", err)
	}

	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("reading settings: %w", err)
	}

	if settings.LogFile != "" {
		if err := logger.SetFile(settings.LogFile); err != nil {
			return cli.Services{}, nil, fmt.Errorf("opening log file: %w", err)
		}
	}
	logger.Debug("config: %s", configStore.Path())

	dataDir := settings.DataDir
	if dataDir == "" && configDir != "" {
		dataDir = filepath.Join(configDir, "data")
	}
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		_ = logger.Close()
		return cli.Services{}, nil, fmt.Errorf("opening cache: %w", err)
	}
	logger.Debug("cache: %s", store.Path())

	ctx, cancel := context.WithCancel(context.Background())

	client, err := zoho.NewClient(ctx, zoho.ConfigFromSettings(settings.Source))
	if err != nil {
		cancel()
		_ = store.Close()
		_ = logger.Close()
		return cli.Services{}, nil, fmt.Errorf("creating zoho client: %w", err)
	}

	registry := entities.Default()
	historical := services.NewHistoricalSyncEngine(
		registry,
		client,
		store,
		services.NewCancellationRegistry(),
		services.HistoricalOptions{
			FetchComments:  settings.Sync.FetchComments,
			OperatorDomain: settings.Sync.OperatorDomain,
		},
	)
	cache := func(desc driven.EntityDescriptor) driving.CacheRepository {
		return services.NewCacheRepository(desc, client, store)
	}

	schedulerConfig := domain.DefaultSchedulerConfig()
	schedulerConfig.TaskConfigs[domain.TaskIDHistoricalSync] = domain.TaskConfig{
		Enabled:  settings.Sync.ScheduleInterval > 0,
		Interval: settings.Sync.ScheduleInterval,
	}
	scheduler := services.NewScheduler(
		schedulerConfig,
		store.SchedulerStore(),
		historical,
		settings.Sync.WindowDays,
		settings.Sync.Modules,
	)

	api := httpapi.NewHandler(ctx, historical, settingsService, registry, cache)

	// Credentials, data dir, log file, listen address and schedule interval
	// need a restart. Window, modules and comment options follow the file.
	reload := func() {
		updated, err := settingsService.Get()
		if err != nil {
			logger.Warn("reloading settings: %v", err)
			return
		}
		historical.SetOptions(services.HistoricalOptions{
			FetchComments:  updated.Sync.FetchComments,
			OperatorDomain: updated.Sync.OperatorDomain,
		})
		scheduler.SetTarget(updated.Sync.WindowDays, updated.Sync.Modules)
	}

	cleanup := func() {
		cancel()
		api.Wait()
		if err := store.Close(); err != nil {
			logger.Warn("closing cache: %v", err)
		}
		_ = logger.Close()
	}

	return cli.Services{
		Settings:   settingsService,
		Sync:       services.NewSyncOrchestrator(client, store),
		Historical: historical,
		Modules:    registry,
		Cache:      cache,
		Scheduler:  scheduler,
		API:        api.Router(),
		Config:     configStore,
		Reload:     reload,
	}, cleanup, nil
}
