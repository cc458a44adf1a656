// Package report renders rate histories as CSV tables and PNG charts.
package report

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"goldchecker/internal/gold"
)

// ErrEmptySeries is returned when there is nothing to render.
var ErrEmptySeries = errors.New("report: no data points")

// Chart dimensions.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// Downsample keeps at most max points, evenly spaced and always including the
// first and last. A max of 1 is raised to 2 so both ends survive.
func Downsample(points []gold.Snapshot, max int) []gold.Snapshot {
	if max == 1 {
		max = 2
	}
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]gold.Snapshot, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

// WriteCSV writes one row per snapshot with a column per karat. Missing rates
// are left empty.
func WriteCSV(w io.Writer, points []gold.Snapshot, karats []gold.Karat) error {
	writer := csv.NewWriter(w)

	header := []string{"business_date", "captured_at", "source"}
	for _, k := range karats {
		header = append(header, k.Key())
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{p.BusinessDate, p.CapturedAt.UTC().Format(time.RFC3339), p.Source}
		for _, k := range karats {
			v := ""
			if r, ok := p.Rate(k); ok {
				v = r.StringFixed(2)
			}
			record = append(record, v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// PNGOptions tune chart rendering.
type PNGOptions struct {
	Title  string
	Width  int
	Height int
}

// WritePNG renders one line per karat against the business date.
func WritePNG(w io.Writer, points []gold.Snapshot, karats []gold.Karat, opts PNGOptions) error {
	if len(points) == 0 {
		return ErrEmptySeries
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	series := make([]chart.Series, 0, len(karats))
	for _, k := range karats {
		x := make([]time.Time, 0, len(points))
		y := make([]float64, 0, len(points))
		for _, p := range points {
			r, ok := p.Rate(k)
			if !ok {
				continue
			}
			x = append(x, dayOf(p))
			y = append(y, r.InexactFloat64())
		}
		// go-chart needs at least two values to draw a line.
		if len(x) == 1 {
			x = append(x, x[0].Add(24*time.Hour))
			y = append(y, y[0])
		}
		if len(x) == 0 {
			continue
		}
		series = append(series, chart.TimeSeries{Name: k.Label(), XValues: x, YValues: y})
	}
	if len(series) == 0 {
		return ErrEmptySeries
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (" + gold.Currency + "/g)",
			ValueFormatter: rateFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func dayOf(p gold.Snapshot) time.Time {
	if t, err := time.ParseInLocation(gold.DateLayout, p.BusinessDate, gold.Dubai()); err == nil {
		return t
	}
	return p.CapturedAt
}
