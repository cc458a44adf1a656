package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"goldchecker/internal/report"
	"goldchecker/internal/service"
)

// Export renders rate history as CSV and/or PNG. History comes from the same
// chain the chart endpoint uses: backend, archive, then the fallback series.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	rt, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer a.drain(rt)

	series, err := rt.rates.ChartSeries(ctx, service.ChartQuery{
		Karat:  opts.Karat,
		Period: opts.Period,
		From:   opts.From,
		To:     opts.To,
	})
	if err != nil {
		return err
	}
	if series.Degraded {
		a.Logger.Warn().Str("source", series.Source).Msg("backend history unavailable; exporting degraded series")
	}

	points := report.Downsample(series.Points, opts.MaxPoints)
	karats := series.Query.Karats()
	a.Logger.Info().
		Int("total", len(series.Points)).
		Int("exported", len(points)).
		Str("from", series.From).
		Str("to", series.To).
		Msg("exporting rate history")

	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(f *os.File) error {
			return report.WriteCSV(f, points, karats)
		}); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		title := "Gold price " + series.From + " to " + series.To
		if err := writeFile(opts.PNGPath, func(f *os.File) error {
			return report.WritePNG(f, points, karats, report.PNGOptions{Title: title})
		}); err != nil {
			return err
		}
	}

	return nil
}

func writeFile(path string, write func(f *os.File) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
