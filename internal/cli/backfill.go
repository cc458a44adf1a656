package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"goldchecker/internal/app"
)

var (
	backfillFrom        string
	backfillTo          string
	backfillPruneBefore string
	backfillDryRun      bool
	backfillWorkers     int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import backend rate history into the snapshot archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		opts := app.BackfillOptions{
			From:        backfillFrom,
			To:          backfillTo,
			PruneBefore: backfillPruneBefore,
			DryRun:      backfillDryRun,
			Workers:     backfillWorkers,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "Start date (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "End date (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().StringVar(&backfillPruneBefore, "prune-before", "", "Delete archived snapshots older than this date (YYYY-MM-DD)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Fetch history without writing to storage")
	backfillCmd.Flags().IntVar(&backfillWorkers, "workers", 2, "Number of concurrent history requests")
}
