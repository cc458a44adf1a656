package cli

import (
	"github.com/spf13/cobra"

	"goldchecker/internal/app"
)

var (
	calcKarat  string
	calcWeight string
	calcPrice  string
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Compare a shop's quote with the market value of the gold",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Calculate(cmd.Context(), app.CalcOptions{
			Karat:     calcKarat,
			Weight:    calcWeight,
			ShopPrice: calcPrice,
		})
	},
}

func init() {
	calcCmd.Flags().StringVar(&calcKarat, "karat", "22", "Karat of the piece (24, 22, 21, 18)")
	calcCmd.Flags().StringVar(&calcWeight, "weight", "", "Weight in grams")
	calcCmd.Flags().StringVar(&calcPrice, "price", "", "Total price quoted by the shop in AED")
	_ = calcCmd.MarkFlagRequired("weight")
	_ = calcCmd.MarkFlagRequired("price")
}
