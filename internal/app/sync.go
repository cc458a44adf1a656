package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"goldchecker/internal/gold"
	"goldchecker/internal/service"
)

// Sync fetches live rates and pushes them to the backend. With DryRun it only
// prints what would be pushed.
func (a *App) Sync(ctx context.Context, opts SyncOptions) error {
	rt, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer a.drain(rt)

	if opts.DryRun {
		snap, err := rt.rates.CheckSync(ctx)
		if err != nil {
			return err
		}
		a.printSnapshot(snap)
		fmt.Fprintln(a.Out, "dry run: nothing pushed")
		return nil
	}

	res, err := rt.rates.Sync(ctx, service.TriggerCLI)
	if err != nil {
		return err
	}
	a.printSnapshot(res.Snapshot)
	fmt.Fprintf(a.Out, "synced to %s at %s\n", rt.backend.BaseURL(), res.SyncedAt.UTC().Format(time.RFC3339))
	return nil
}

func (a *App) printSnapshot(snap gold.Snapshot) {
	fmt.Fprintf(a.Out, "%s rates for %s", snap.Source, snap.BusinessDate)
	if snap.RateID != "" {
		fmt.Fprintf(a.Out, " (rate id %s)", snap.RateID)
	}
	fmt.Fprintln(a.Out)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, k := range gold.Karats {
		if r, ok := snap.Rate(k); ok {
			fmt.Fprintf(writer, "%s\t%s\n", k.Label(), formatAED(r))
		}
	}
	writer.Flush()
}
