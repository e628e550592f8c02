// Package cli provides the cobra command tree for ledgersync.
package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

var version = "dev"

// Services are the driving ports the commands call into.
type Services struct {
	Settings   driving.SettingsService
	Sync       driving.SyncOrchestrator
	Historical driving.HistoricalSync
	Modules    driven.ModuleRegistry
	Cache      func(desc driven.EntityDescriptor) driving.CacheRepository
	Scheduler  driving.Scheduler
	API        http.Handler
	Config     ConfigWatcher

	// Reload applies settings re-read after a config change. May be nil.
	Reload func()
}

// ConfigWatcher reloads configuration when the backing file changes.
type ConfigWatcher interface {
	Watch(ctx context.Context, onReload func()) error
}

// Bootstrap builds services from the config directory given on the
// command line. The returned cleanup runs after the command finishes.
type Bootstrap func(configDir string) (Services, func(), error)

var (
	settingsService  driving.SettingsService
	syncOrchestrator driving.SyncOrchestrator
	historicalSync   driving.HistoricalSync
	moduleRegistry   driven.ModuleRegistry
	cacheFactory     func(desc driven.EntityDescriptor) driving.CacheRepository
	scheduler        driving.Scheduler
	apiHandler       http.Handler
	configWatcher    ConfigWatcher
	reloadSettings   func()

	bootstrap Bootstrap
	cleanup   func()

	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "ledgersync",
	Short: "Sync and cache transactional data from Zoho",
	Long: `ledgersync keeps a local cache of sales orders, invoices, purchase orders
and bills, refreshed from Zoho on demand, on a schedule, or as a historical
backfill over a trailing window of days.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.ledgersync)")
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	syncOrchestrator = s.Sync
	historicalSync = s.Historical
	moduleRegistry = s.Modules
	cacheFactory = s.Cache
	scheduler = s.Scheduler
	apiHandler = s.API
	configWatcher = s.Config
	reloadSettings = s.Reload
}

// SetBootstrap registers the function that wires services before a
// command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	defer teardown()
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd == versionCmd {
		return nil
	}

	services, done, err := bootstrap(configDir)
	if err != nil {
		return err
	}
	SetServices(services)
	cleanup = done
	return nil
}

func teardown() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// lookupModule resolves a module name against the registry.
func lookupModule(module string) (driven.TransactionDescriptor, error) {
	if moduleRegistry == nil {
		return nil, errors.New("module registry not configured")
	}
	return moduleRegistry.Lookup(module)
}
