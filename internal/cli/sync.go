package cli

import (
	"github.com/spf13/cobra"

	"goldchecker/internal/app"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch live rates and push them to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sync(cmd.Context(), app.SyncOptions{DryRun: syncDryRun})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Fetch and print rates without pushing them")
}
