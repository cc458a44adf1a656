package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"goldchecker/internal/backend"
	"goldchecker/internal/gold"
)

// Chart periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"

	KaratAll = "all"

	maxChartDays = 366
)

var periodDays = map[string]int{
	PeriodWeek:  7,
	PeriodMonth: 30,
}

// ErrInvalidQuery marks a malformed chart query.
var ErrInvalidQuery = errors.New("invalid chart query")

// ChartQuery selects a chart window. From and To are YYYY-MM-DD.
type ChartQuery struct {
	Karat  string
	Period string
	From   string
	To     string
}

// Normalize validates the query against the business date of now and fills
// defaults: all karats, monthly. The resolved window never exceeds
// maxChartDays, whether or not To is given.
func (q ChartQuery) Normalize(now time.Time) (ChartQuery, error) {
	out := ChartQuery{
		Karat:  strings.ToLower(strings.TrimSpace(q.Karat)),
		Period: strings.ToLower(strings.TrimSpace(q.Period)),
		From:   strings.TrimSpace(q.From),
		To:     strings.TrimSpace(q.To),
	}

	switch out.Karat {
	case "", KaratAll:
		out.Karat = KaratAll
	default:
		k, err := gold.ParseKarat(out.Karat)
		if err != nil || !isProviderKarat(k) {
			return ChartQuery{}, fmt.Errorf("%w: karat must be one of all, 24k, 22k, 21k, 18k", ErrInvalidQuery)
		}
		out.Karat = strings.ToLower(k.Label())
	}

	if out.Period == "" {
		out.Period = PeriodMonth
	}
	if _, ok := periodDays[out.Period]; !ok {
		return ChartQuery{}, fmt.Errorf("%w: period must be week or month", ErrInvalidQuery)
	}

	var from, to time.Time
	var err error
	if out.From != "" {
		if from, err = time.Parse(gold.DateLayout, out.From); err != nil {
			return ChartQuery{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidQuery)
		}
	}
	if out.To != "" {
		if to, err = time.Parse(gold.DateLayout, out.To); err != nil {
			return ChartQuery{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidQuery)
		}
	}
	if !from.IsZero() {
		today, _ := time.Parse(gold.DateLayout, gold.BusinessDate(now))
		if from.After(today) {
			return ChartQuery{}, fmt.Errorf("%w: from is in the future", ErrInvalidQuery)
		}
		end := to
		if end.IsZero() {
			end = today
		}
		if from.After(end) {
			return ChartQuery{}, fmt.Errorf("%w: from is after to", ErrInvalidQuery)
		}
		if end.Sub(from) >= maxChartDays*24*time.Hour {
			return ChartQuery{}, fmt.Errorf("%w: window exceeds %d days", ErrInvalidQuery, maxChartDays)
		}
	}
	return out, nil
}

// Key identifies the query in the chart cache.
func (q ChartQuery) Key() string {
	return strings.Join([]string{q.Karat, q.Period, q.From, q.To}, "|")
}

// Karats lists the karats the query selects.
func (q ChartQuery) Karats() []gold.Karat {
	if q.Karat == KaratAll || q.Karat == "" {
		return gold.ProviderKarats
	}
	k, err := gold.ParseKarat(q.Karat)
	if err != nil {
		return gold.ProviderKarats
	}
	return []gold.Karat{k}
}

// Window resolves the inclusive date range for the query relative to now.
func (q ChartQuery) Window(now time.Time) (from, to string, days int) {
	end := gold.BusinessDate(now)
	if q.To != "" {
		end = q.To
	}
	endDay, _ := time.Parse(gold.DateLayout, end)

	if q.From != "" {
		startDay, _ := time.Parse(gold.DateLayout, q.From)
		days = int(endDay.Sub(startDay).Hours()/24) + 1
		if days < 1 {
			days = 1
		}
		return q.From, end, days
	}

	days = periodDays[q.Period]
	if days == 0 {
		days = periodDays[PeriodMonth]
	}
	return endDay.AddDate(0, 0, -(days - 1)).Format(gold.DateLayout), end, days
}

// Series is a chart history, oldest first.
type Series struct {
	Query    ChartQuery
	From     string
	To       string
	Source   string
	Points   []gold.Snapshot
	Degraded bool
}

// ChartSeries returns the history for q. Only a malformed query fails; an
// unavailable backend and archive yield a synthesized fallback series.
func (r *Rates) ChartSeries(ctx context.Context, q ChartQuery) (Series, error) {
	nq, err := q.Normalize(r.opts.Now())
	if err != nil {
		return Series{}, err
	}
	res, _ := r.charts.GetOrRefresh(ctx, nq.Key(), func(ctx context.Context) (Series, error) {
		return r.series(ctx, nq), nil
	})
	return res.Value, nil
}

func (r *Rates) series(ctx context.Context, q ChartQuery) Series {
	from, to, days := q.Window(r.opts.Now())

	data, err := r.backend.Chart(ctx, backend.ChartQuery{Karat: q.Karat, Period: q.Period, From: q.From, To: q.To})
	if err == nil {
		points := make([]gold.Snapshot, 0, len(data.Data))
		for _, d := range data.Data {
			snap, convErr := d.Snapshot()
			if convErr != nil {
				r.logger.Warn().Err(convErr).Str("date", d.Date).Msg("skipping malformed chart point")
				continue
			}
			if d.Source != "" {
				snap = snap.WithSource(d.Source)
			}
			points = append(points, snap)
		}
		if len(points) > 0 {
			if data.From != "" {
				from = data.From
			}
			if data.To != "" {
				to = data.To
			}
			return Series{Query: q, From: from, To: to, Source: gold.SourceBackend, Points: points}
		}
		err = errors.New("backend returned no chart points")
	}
	r.logger.Warn().Err(err).Str("query", q.Key()).Msg("backend chart unavailable")

	if r.archive != nil {
		points, archErr := r.archive.ListBetween(ctx, from, to)
		if archErr == nil && len(points) > 0 {
			return Series{Query: q, From: from, To: to, Source: gold.SourceArchive, Points: points, Degraded: true}
		}
		if archErr != nil {
			r.logger.Error().Err(archErr).Msg("archive chart lookup failed")
		}
	}

	endDay, _ := time.ParseInLocation(gold.DateLayout, to, gold.Dubai())
	points := gold.FallbackSeries(endDay.Add(12*time.Hour), days)
	return Series{Query: q, From: points[0].BusinessDate, To: points[len(points)-1].BusinessDate, Source: gold.SourceFallback, Points: points, Degraded: true}
}

func isProviderKarat(k gold.Karat) bool {
	for _, p := range gold.ProviderKarats {
		if p == k {
			return true
		}
	}
	return false
}
