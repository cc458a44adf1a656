package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"goldchecker/internal/gold"
	"goldchecker/internal/storage"
)

// Show prints current prices, the day-over-day comparison and, when the
// archive is configured, recent sync attempts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	rt, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer a.drain(rt)

	cmp := rt.rates.TodayVsYesterday(ctx)

	fmt.Fprintf(a.Out, "Today %s (%s)", cmp.Today.BusinessDate, cmp.Today.Source)
	if cmp.Yesterday.BusinessDate != "" {
		fmt.Fprintf(a.Out, " vs %s (%s)", cmp.Yesterday.BusinessDate, cmp.Yesterday.Source)
	}
	fmt.Fprintln(a.Out)
	if cmp.Notice != "" {
		fmt.Fprintf(a.Out, "Notice: %s\n", cmp.Notice)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Karat\tToday\tYesterday\tChange\tChange%")
	for _, k := range gold.Karats {
		today, ok := cmp.Today.Rate(k)
		if !ok {
			continue
		}
		yesterday, change, pct := "-", "-", "-"
		if y, ok := cmp.Yesterday.Rate(k); ok {
			yesterday = formatAmount(y)
		}
		if c, ok := cmp.Changes[k]; ok {
			change = formatAmount(c.Absolute)
			pct = formatPercent(c.Percentage)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", k.Label(), formatAmount(today), yesterday, change, pct)
	}
	writer.Flush()

	if opts.Limit <= 0 {
		return nil
	}
	runs, err := rt.rates.RecentSyncs(ctx, opts.Limit)
	if errors.Is(err, storage.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.Out)
	if len(runs) == 0 {
		fmt.Fprintln(a.Out, "no sync runs recorded")
		return nil
	}
	writer = tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tTrigger\tBusiness date\tStatus\tError")
	for _, run := range runs {
		errMsg := ""
		if run.Error != nil {
			errMsg = sanitizeInline(*run.Error)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.Trigger,
			run.BusinessDate,
			run.Status,
			errMsg,
		)
	}
	return writer.Flush()
}
