package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill recent transactions",
	Long: `Runs a historical sync over the trailing window of days for each module.
Modules are synced one after another, newest records first.

Press Ctrl+C once to stop after the current record. Press it again to abort.`,
	RunE: runSync,
}

var (
	syncWindowDays int
	syncModules    []string
	syncUser       string
	syncOrg        string
)

func init() {
	syncCmd.Flags().IntVarP(&syncWindowDays, "window", "w", 0, "window in days (default from settings)")
	syncCmd.Flags().StringSliceVarP(&syncModules, "modules", "m", nil, "modules to sync (default from settings)")
	syncCmd.Flags().StringVar(&syncUser, "user", "", "operator the sync runs for")
	syncCmd.Flags().StringVar(&syncOrg, "org", "", "organisation id (default from settings)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if historicalSync == nil {
		return errors.New("historical sync not configured")
	}

	windowDays, modules := syncWindowDays, syncModules
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			if windowDays == 0 {
				windowDays = settings.Sync.WindowDays
			}
			if len(modules) == 0 {
				modules = settings.Sync.Modules
			}
		}
	}
	if windowDays <= 0 {
		windowDays = settingsDefaults().Sync.WindowDays
	}

	var principal *domain.Principal
	if syncUser != "" || syncOrg != "" {
		principal = &domain.Principal{UserID: syncUser, OrganizationID: syncOrg}
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		stopping := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				if stopping {
					cancel()
					return
				}
				stopping = true
				historicalSync.RequestStop(principal)
				cmd.PrintErrln("\nStopping after the current record...")
			}
		}
	}()

	cmd.Printf("Syncing last %d days", windowDays)
	if len(modules) > 0 {
		cmd.Printf(" (%s)", strings.Join(modules, ", "))
	}
	cmd.Println("...")

	result, err := syncWithProgress(ctx, cmd, historicalSync, windowDays, modules, principal)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printHistoricalResult(cmd, result)
	return nil
}

// syncWithProgress runs the sync while displaying progress updates on a
// terminal.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	hs driving.HistoricalSync,
	windowDays int,
	modules []string,
	principal *domain.Principal,
) (*domain.HistoricalSyncResult, error) {
	type outcome struct {
		result *domain.HistoricalSyncResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := hs.SyncRecentTransactions(ctx, windowDays, modules, principal)
		done <- outcome{r, err}
	}()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case o := <-done:
			if interactive {
				cmd.Print("\r\033[K")
			}
			return o.result, o.err
		case <-ticker.C:
			if !interactive {
				continue
			}
			if status, ok := hs.Status(principal); ok && status.Module != "" {
				cmd.Printf("\r\033[KSyncing %s: page %d, record %d",
					status.Module, status.Page, status.RecordIndex)
			}
		}
	}
}

func printHistoricalResult(cmd *cobra.Command, result *domain.HistoricalSyncResult) {
	if result == nil {
		return
	}

	cmd.Printf("Window: %s to %s\n", result.Window.StartDate(), result.Window.EndDate())

	modules := make([]string, 0, len(result.Synced))
	for m := range result.Synced {
		modules = append(modules, m)
	}
	sort.Strings(modules)
	for _, m := range modules {
		cmd.Printf("  %-16s %d synced\n", m, result.Synced[m])
	}

	if len(result.Errors) > 0 {
		cmd.Printf("%d errors:\n", len(result.Errors))
		for _, e := range result.Errors {
			cmd.Printf("  %s\n", e.Error())
		}
	}

	if result.Stopped {
		cmd.Printf("Stopped early. %d records synced.\n", result.Total())
		return
	}
	cmd.Printf("Sync complete. %d records synced.\n", result.Total())
}
