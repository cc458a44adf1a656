package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateLive   string
	simulateStored string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic rate discrepancy notice",
	RunE: func(cmd *cobra.Command, args []string) error {
		live, err := decimal.NewFromString(simulateLive)
		if err != nil || !live.IsPositive() {
			return errors.New("--live must be a positive number")
		}
		stored, err := decimal.NewFromString(simulateStored)
		if err != nil || !stored.IsPositive() {
			return errors.New("--stored must be a positive number")
		}
		return getApp().SimulateAlert(cmd.Context(), live, stored)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateLive, "live", "", "Live 24K rate in AED per gram")
	simulateCmd.Flags().StringVar(&simulateStored, "stored", "", "Stored 24K rate in AED per gram")
}
