package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"goldchecker/internal/gold"
)

// IngestRequest is the body of POST /api/gold/manual. The backend validates
// plain JSON numbers.
type IngestRequest struct {
	Source string  `json:"source"`
	K24    float64 `json:"k24"`
	K22    float64 `json:"k22"`
	K21    float64 `json:"k21"`
	K18    float64 `json:"k18"`
	Notes  string  `json:"notes,omitempty"`
}

// NewIngestRequest builds an ingestion body from a snapshot.
func NewIngestRequest(snap gold.Snapshot, notes string) IngestRequest {
	rate := func(k gold.Karat) float64 {
		r, _ := snap.Rate(k)
		return r.Round(2).InexactFloat64()
	}
	return IngestRequest{
		Source: snap.Source,
		K24:    rate(gold.K24),
		K22:    rate(gold.K22),
		K21:    rate(gold.K21),
		K18:    rate(gold.K18),
		Notes:  notes,
	}
}

// PushRates ingests a snapshot and returns the backend's raw response.
func (c *Client) PushRates(ctx context.Context, req IngestRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, c.goldURL(ingestPath, nil), req, &out); err != nil {
		return nil, fmt.Errorf("push rates: %w", err)
	}
	return out, nil
}

// Rates is the backend's per-karat rate object. Absent karats stay nil.
type Rates struct {
	K24 *decimal.Decimal `json:"k24,omitempty"`
	K22 *decimal.Decimal `json:"k22,omitempty"`
	K21 *decimal.Decimal `json:"k21,omitempty"`
	K18 *decimal.Decimal `json:"k18,omitempty"`
}

func (r Rates) byKarat() map[gold.Karat]decimal.Decimal {
	out := make(map[gold.Karat]decimal.Decimal, 4)
	for k, v := range map[gold.Karat]*decimal.Decimal{
		gold.K24: r.K24,
		gold.K22: r.K22,
		gold.K21: r.K21,
		gold.K18: r.K18,
	} {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// DayRates is one persisted day as returned by the backend.
type DayRates struct {
	Date       string `json:"date"`
	CapturedAt string `json:"capturedAt,omitempty"`
	Source     string `json:"source,omitempty"`
	Rates      Rates  `json:"rates"`
}

// Snapshot validates the day's rates into a snapshot labelled as backend data.
func (d DayRates) Snapshot() (gold.Snapshot, error) {
	capturedAt := parseTimestamp(d.CapturedAt)
	businessDate := normalizeDate(d.Date)
	if capturedAt.IsZero() {
		if t, err := time.ParseInLocation(gold.DateLayout, businessDate, gold.Dubai()); err == nil {
			capturedAt = t
		}
	}
	snap, err := gold.NewSnapshot(capturedAt, businessDate, gold.SourceBackend, d.Rates.byKarat())
	if err != nil {
		return gold.Snapshot{}, fmt.Errorf("backend day %q: %w", d.Date, err)
	}
	return snap, nil
}

// Comparison is the response of GET /api/gold/today-vs-yesterday.
type Comparison struct {
	Today     *DayRates `json:"today"`
	Yesterday *DayRates `json:"yesterday"`
}

// TodayVsYesterday reads the persisted latest and previous day.
func (c *Client) TodayVsYesterday(ctx context.Context) (Comparison, error) {
	var out Comparison
	if err := c.doJSON(ctx, http.MethodGet, c.goldURL(comparisonPath, nil), nil, &out); err != nil {
		return Comparison{}, fmt.Errorf("today vs yesterday: %w", err)
	}
	if out.Today == nil {
		return Comparison{}, fmt.Errorf("today vs yesterday: response has no today rates")
	}
	return out, nil
}

// ChartQuery selects a chart history window.
type ChartQuery struct {
	Karat  string
	Period string
	From   string
	To     string
}

// Values encodes the query, omitting empty parameters.
func (q ChartQuery) Values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(key, val)
		}
	}
	set("karat", q.Karat)
	set("period", q.Period)
	set("from", q.From)
	set("to", q.To)
	return v
}

// ChartData is the response of GET /api/gold/chart-data.
type ChartData struct {
	Period    string     `json:"period"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Karat     string     `json:"karat"`
	TotalDays int        `json:"totalDays"`
	Data      []DayRates `json:"data"`
}

// Chart reads the persisted history for a window.
func (c *Client) Chart(ctx context.Context, q ChartQuery) (ChartData, error) {
	var out ChartData
	if err := c.doJSON(ctx, http.MethodGet, c.goldURL(chartDataPath, q.Values()), nil, &out); err != nil {
		return ChartData{}, fmt.Errorf("chart data: %w", err)
	}
	return out, nil
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// normalizeDate accepts YYYY-MM-DD, DD-MM-YYYY and timestamps.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(gold.DateLayout, s); err == nil {
		return s
	}
	if t, err := time.Parse("02-01-2006", s); err == nil {
		return t.Format(gold.DateLayout)
	}
	if t := parseTimestamp(s); !t.IsZero() {
		return gold.BusinessDate(t)
	}
	return s
}
