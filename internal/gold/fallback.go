package gold

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Last-known-good prices served when every live and persisted source is down.
var (
	fallbackToday = map[Karat]decimal.Decimal{
		K24: decimal.RequireFromString("589.50"),
		K22: decimal.RequireFromString("545.75"),
		K21: decimal.RequireFromString("523.25"),
		K18: decimal.RequireFromString("448.50"),
		K14: decimal.RequireFromString("349.75"),
	}
	fallbackYesterday = map[Karat]decimal.Decimal{
		K24: decimal.RequireFromString("594.00"),
		K22: decimal.RequireFromString("550.00"),
		K21: decimal.RequireFromString("527.50"),
		K18: decimal.RequireFromString("452.00"),
	}
)

// FallbackToday returns the constant snapshot for the business date of now.
func FallbackToday(now time.Time) Snapshot {
	s, err := NewSnapshot(now, BusinessDate(now), SourceFallback, fallbackToday)
	if err != nil {
		panic("gold: fallback rates invalid: " + err.Error())
	}
	return s
}

// FallbackYesterday returns the constant snapshot for the day before now.
func FallbackYesterday(now time.Time) Snapshot {
	prev := now.Add(-24 * time.Hour)
	s, err := NewSnapshot(prev, BusinessDate(prev), SourceFallback, fallbackYesterday)
	if err != nil {
		panic("gold: fallback rates invalid: " + err.Error())
	}
	return s
}

// FallbackSeries synthesizes days snapshots ending on the business date of
// end, oldest first. Values vary smoothly around 560 AED so a chart stays
// readable while upstream is unavailable.
func FallbackSeries(end time.Time, days int) []Snapshot {
	if days <= 0 {
		return nil
	}
	out := make([]Snapshot, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		base := 560 + math.Sin(float64(i)/5)*30 + float64(days-1-i)*0.8
		rates := make(map[Karat]decimal.Decimal, len(ProviderKarats))
		for _, k := range ProviderKarats {
			f, _ := PurityFactor(k)
			rates[k] = decimal.NewFromFloat(base).Mul(f).Round(2)
		}
		s, err := NewSnapshot(day, BusinessDate(day), SourceFallback, rates)
		if err != nil {
			panic("gold: fallback series invalid: " + err.Error())
		}
		out = append(out, s)
	}
	return out
}
