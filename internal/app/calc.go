package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"goldchecker/internal/calculator"
)

// Calculate resolves the current rate for the karat and prints the margin
// breakdown of a shop quote.
func (a *App) Calculate(ctx context.Context, opts CalcOptions) error {
	rt, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer a.drain(rt)

	live := rt.rates.LiveSnapshot(ctx)
	in, err := calculator.ParseInput(opts.Karat, opts.Weight, opts.ShopPrice, live.Snapshot)
	if err != nil {
		return err
	}
	res, err := calculator.Calculate(in)
	if err != nil {
		return err
	}
	printResult(a, res, live.Snapshot.Source, live.Snapshot.BusinessDate, live.Notice)
	return nil
}

func printResult(a *App, res calculator.Result, source, date, notice string) {
	if notice != "" {
		fmt.Fprintf(a.Out, "Notice: %s\n", notice)
	}
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Karat\t%s\n", res.Karat.Label())
	fmt.Fprintf(writer, "Weight\t%s g\n", formatAmount(res.Weight))
	fmt.Fprintf(writer, "Market rate\t%s/g (%s, %s)\n", formatAED(res.MarketRate), source, date)
	fmt.Fprintf(writer, "Gold value\t%s\n", formatAED(res.OfficialGoldValue))
	fmt.Fprintf(writer, "Shop price\t%s\n", formatAED(res.ShopPrice))
	fmt.Fprintf(writer, "Shop profit\t%s\n", formatAED(res.TotalProfit))
	fmt.Fprintf(writer, "Profit per gram\t%s\n", formatAED(res.ProfitPerGram))
	fmt.Fprintf(writer, "Margin\t%s%% (%s)\n", formatAmount(res.MarginPercentage), res.Status)
	writer.Flush()
}
