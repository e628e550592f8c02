package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache freshness per module",
	Long:  `Shows when each module was last written to the local cache.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if historicalSync == nil {
		return errors.New("historical sync not configured")
	}

	latest, err := historicalSync.LatestSyncTimestamps(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to read sync state: %w", err)
	}

	var modules []string
	if moduleRegistry != nil {
		modules = moduleRegistry.Modules()
	}
	for m := range latest {
		if !containsModule(modules, m) {
			modules = append(modules, m)
		}
	}

	cmd.Println("Last synced")
	cmd.Println("===========")
	for _, m := range modules {
		ts := latest[m]
		if ts == nil {
			cmd.Printf("  %-16s never\n", m)
			continue
		}
		cmd.Printf("  %-16s %s\n", m, ts.Local().Format(time.RFC3339))
	}

	if status, ok := historicalSync.Status(nil); ok {
		cmd.Println()
		cmd.Printf("Sync running since %s: %s page %d\n",
			status.StartedAt.Local().Format(time.Kitchen), status.Module, status.Page)
		if status.StopPending {
			cmd.Println("Stop requested.")
		}
	}
	return nil
}

func containsModule(modules []string, m string) bool {
	for _, v := range modules {
		if v == m {
			return true
		}
	}
	return false
}
