package gold

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var captured = time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveMonotonic(t *testing.T) {
	for _, raw := range []string{"0.01", "1", "589.50", "600", "123456.789"} {
		r := d(raw)
		prev := r
		for _, k := range []Karat{K24, K22, K21, K18, K14} {
			got, err := Derive(r, k)
			if err != nil {
				t.Fatalf("derive %s: %v", k, err)
			}
			f, _ := PurityFactor(k)
			if !got.Equal(r.Mul(f)) {
				t.Fatalf("%s from %s: expected %s, got %s", k, raw, r.Mul(f), got)
			}
			if got.GreaterThan(prev) {
				t.Fatalf("%s price %s exceeds higher karat %s", k, got, prev)
			}
			prev = got
		}
	}
}

func TestDerive22KWorkedExample(t *testing.T) {
	got, err := Derive(d("600"), K22)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d("549.60")) {
		t.Fatalf("expected 549.60, got %s", got)
	}
}

func TestNewSnapshotDerivesMissingKarats(t *testing.T) {
	snap, err := NewSnapshot(captured, "", SourceDCOG, map[Karat]decimal.Decimal{
		K24: d("589.50"),
		K22: d("545.75"),
		K21: d("523.25"),
		K18: d("448.50"),
	})
	if err != nil {
		t.Fatalf("valid rates rejected: %v", err)
	}
	if snap.BusinessDate != "2026-03-15" {
		t.Fatalf("20:30 UTC is the next day in Dubai, got %s", snap.BusinessDate)
	}
	k14, ok := snap.Rate(K14)
	if !ok || !k14.Equal(d("589.50").Mul(d("0.583"))) {
		t.Fatalf("14K should be derived from 24K, got %s", k14)
	}
	k20, ok := snap.Rate(K20)
	if !ok || !k20.Equal(d("589.50").Mul(d("0.833"))) {
		t.Fatalf("20K should be derived from 24K, got %s", k20)
	}
	k22, _ := snap.Rate(K22)
	if !k22.Equal(d("545.75")) {
		t.Fatalf("supplied 22K must be kept, got %s", k22)
	}
}

func TestNewSnapshotRejectsInvalidRates(t *testing.T) {
	cases := map[string]map[Karat]decimal.Decimal{
		"missing 24K":           {K22: d("500")},
		"zero 24K":              {K24: decimal.Zero},
		"negative 22K":          {K24: d("600"), K22: d("-1")},
		"22K above 24K":         {K24: d("600"), K22: d("601")},
		"18K above 21K":         {K24: d("600"), K21: d("500"), K18: d("510")},
		"unknown karat":         {K24: d("600"), Karat(9): d("100")},
		"derived 14K above 18K": {K24: d("600"), K22: d("540"), K21: d("520"), K18: d("300")},
		"18K above derived 20K": {K24: d("600"), K22: d("549"), K21: d("524"), K18: d("520")},
	}
	for name, rates := range cases {
		if _, err := NewSnapshot(captured, "", SourceDCOG, rates); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("%s: expected ErrInvalidSnapshot, got %v", name, err)
		}
	}
}

func TestFromFloatsRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := FromFloats(captured, "", SourceBackend, map[Karat]float64{K24: v}); err == nil {
			t.Fatalf("%v should be rejected", v)
		}
	}
}

func TestNewSnapshotRejectsBadDate(t *testing.T) {
	if _, err := NewSnapshot(captured, "14-03-2026", SourceDCOG, map[Karat]decimal.Decimal{K24: d("600")}); err == nil {
		t.Fatal("non ISO business date should be rejected")
	}
}

func TestParseKarat(t *testing.T) {
	for _, in := range []string{"24", "24k", "24K", "k24", " 24k "} {
		k, err := ParseKarat(in)
		if err != nil || k != K24 {
			t.Fatalf("%q: got %v, %v", in, k, err)
		}
	}
	if _, err := ParseKarat("23k"); err == nil {
		t.Fatal("23k is not supported")
	}
}

func TestChangesOmitsPercentageForZeroYesterday(t *testing.T) {
	today, _ := NewSnapshot(captured, "", SourceDCOG, map[Karat]decimal.Decimal{K24: d("600")})
	yesterday := FallbackYesterday(captured)

	cs := Changes(today, yesterday, ProviderKarats)
	c24 := cs[K24]
	if !c24.Absolute.Equal(d("6")) {
		t.Fatalf("expected +6, got %s", c24.Absolute)
	}
	if c24.Percentage == nil || !c24.Percentage.Round(4).Equal(d("1.0101")) {
		t.Fatalf("unexpected percentage %v", c24.Percentage)
	}

	empty := Snapshot{}
	if len(Changes(today, empty, ProviderKarats)) != 0 {
		t.Fatal("missing yesterday rates should produce no changes")
	}

	zeroed := yesterday
	zeroed.rates = map[Karat]decimal.Decimal{K24: decimal.Zero}
	c := Changes(today, zeroed, []Karat{K24})[K24]
	if c.Percentage != nil {
		t.Fatal("percentage against a zero rate must be omitted")
	}
}

func TestFallbackSeries(t *testing.T) {
	series := FallbackSeries(captured, 30)
	if len(series) != 30 {
		t.Fatalf("expected 30 points, got %d", len(series))
	}
	if series[len(series)-1].BusinessDate != BusinessDate(captured) {
		t.Fatalf("series must end on the requested date")
	}
	for i := 1; i < len(series); i++ {
		if series[i].BusinessDate <= series[i-1].BusinessDate {
			t.Fatalf("series must be oldest first at %d", i)
		}
		if !series[i].IsFallback() {
			t.Fatalf("point %d not labelled fallback", i)
		}
		r, _ := series[i].Rate(K24)
		if r.LessThan(d("500")) || r.GreaterThan(d("650")) {
			t.Fatalf("point %d outside expected band: %s", i, r)
		}
	}
	if FallbackSeries(captured, 0) != nil {
		t.Fatal("zero days should yield no series")
	}
}
