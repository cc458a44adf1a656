package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"goldchecker/internal/backend"
	"goldchecker/internal/gold"
	"goldchecker/internal/storage"
)

// backfillChunkDays bounds each backend history request.
const backfillChunkDays = 30

type dateRange struct {
	from string
	to   string
}

// Backfill imports backend rate history into the snapshot archive so chart
// data survives a backend outage.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	chunks, err := splitRange(opts.From, opts.To, backfillChunkDays)
	if err != nil {
		return err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var store *storage.Store
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
	} else {
		store, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn is not configured; cannot backfill")
		}
		defer store.Close()
	}

	client := a.newBackend()

	var imported, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, chunk := range chunks {
		g.Go(func() error {
			data, err := client.Chart(gctx, backend.ChartQuery{Karat: "all", From: chunk.from, To: chunk.to})
			if err != nil {
				return fmt.Errorf("history %s..%s: %w", chunk.from, chunk.to, err)
			}
			for _, d := range data.Data {
				snap, err := d.Snapshot()
				if err != nil {
					skipped.Add(1)
					a.Logger.Warn().Err(err).Str("date", d.Date).Msg("skipping malformed history point")
					continue
				}
				if store != nil {
					if err := store.UpsertSnapshot(gctx, snap); err != nil {
						return fmt.Errorf("archive %s: %w", snap.BusinessDate, err)
					}
				}
				imported.Add(1)
			}
			a.Logger.Debug().Str("from", chunk.from).Str("to", chunk.to).Int("points", len(data.Data)).Msg("history chunk processed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if store != nil && opts.PruneBefore != "" {
		if _, err := time.Parse(gold.DateLayout, opts.PruneBefore); err != nil {
			return fmt.Errorf("--prune-before must be YYYY-MM-DD: %w", err)
		}
		pruned, err := store.DeleteSnapshotsBefore(ctx, opts.PruneBefore)
		if err != nil {
			return err
		}
		a.Logger.Info().Int64("pruned", pruned).Str("before", opts.PruneBefore).Msg("pruned archived snapshots")
	}

	event := a.Logger.Info().Int64("imported", imported.Load()).Int64("skipped", skipped.Load()).Int("chunks", len(chunks))
	if store != nil {
		if total, err := store.CountSnapshots(ctx); err == nil {
			event = event.Int64("archived", total)
		}
	}
	event.Msg("backfill complete")

	fmt.Fprintf(a.Out, "imported %d snapshots (%d skipped) from %s to %s\n", imported.Load(), skipped.Load(), opts.From, opts.To)
	return nil
}

// splitRange cuts the inclusive window [from, to] into chunks of at most size days.
func splitRange(from, to string, size int) ([]dateRange, error) {
	start, err := time.Parse(gold.DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
	}
	end, err := time.Parse(gold.DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
	}
	if end.Before(start) {
		return nil, errors.New("backfill range is empty; check --from/--to")
	}

	var chunks []dateRange
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, size) {
		last := cur.AddDate(0, 0, size-1)
		if last.After(end) {
			last = end
		}
		chunks = append(chunks, dateRange{from: cur.Format(gold.DateLayout), to: last.Format(gold.DateLayout)})
	}
	return chunks, nil
}
