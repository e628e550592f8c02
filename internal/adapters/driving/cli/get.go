package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

var getCmd = &cobra.Command{
	Use:   "get <module> <id> [id...]",
	Short: "Look up records by source id",
	Long: `Returns records from the local cache, fetching from Zoho on a miss.
With --force the cache is bypassed and the record re-read from Zoho.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runGet,
}

var getForce bool

func init() {
	getCmd.Flags().BoolVarP(&getForce, "force", "f", false, "bypass the cache")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	if cacheFactory == nil {
		return errors.New("cache not configured")
	}

	desc, err := lookupModule(args[0])
	if err != nil {
		return err
	}
	repo := cacheFactory(desc)
	ctx := commandContext(cmd)
	ids := args[1:]

	var records []domain.Record
	if len(ids) == 1 {
		rec, err := repo.GetByID(ctx, ids[0], nil, driving.GetOptions{ForceRefresh: getForce})
		if rec == nil {
			if err != nil {
				return fmt.Errorf("get %s %s: %w", desc.Module(), ids[0], err)
			}
			return fmt.Errorf("%s %s: %w", desc.Module(), ids[0], domain.ErrNotFound)
		}
		if err != nil {
			cmd.PrintErrf("Warning: record not cached: %v\n", err)
		}
		records = []domain.Record{rec}
	} else {
		records, err = repo.GetByIDs(ctx, ids, nil)
		if err != nil {
			return fmt.Errorf("get %s: %w", desc.Module(), err)
		}
	}

	for _, rec := range records {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		cmd.Println(string(data))
	}
	if missing := len(ids) - len(records); missing > 0 && len(ids) > 1 {
		cmd.PrintErrf("%d of %d records not found\n", missing, len(ids))
	}
	return nil
}
