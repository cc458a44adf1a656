package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goldchecker/internal/app"
	"goldchecker/internal/gold"
)

var (
	exportKarat     string
	exportPeriod    string
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export rate history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		for flag, value := range map[string]string{"--from": exportFrom, "--to": exportTo} {
			if value == "" {
				continue
			}
			if _, err := time.Parse(gold.DateLayout, value); err != nil {
				return fmt.Errorf("invalid %s value: %w", flag, err)
			}
		}

		opts := app.ExportOptions{
			Karat:     exportKarat,
			Period:    exportPeriod,
			From:      exportFrom,
			To:        exportTo,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportKarat, "karat", "all", "Karat to export (24k, 22k, 21k, 18k or all)")
	exportCmd.Flags().StringVar(&exportPeriod, "period", "month", "Window length (week or month)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start date (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End date (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
