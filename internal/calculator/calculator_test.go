package calculator

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"goldchecker/internal/gold"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateWorkedExample(t *testing.T) {
	res, err := Calculate(Input{Karat: gold.K24, Weight: d("10"), ShopPrice: d("6200"), MarketRate: d("589.50")})
	if err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if !res.OfficialGoldValue.Equal(d("5895")) {
		t.Fatalf("official value: %s", res.OfficialGoldValue)
	}
	if !res.TotalProfit.Equal(d("305")) {
		t.Fatalf("total profit: %s", res.TotalProfit)
	}
	if !res.ProfitPerGram.Equal(d("30.5")) {
		t.Fatalf("profit per gram: %s", res.ProfitPerGram)
	}
	if !res.MarginPercentage.Round(2).Equal(d("5.17")) {
		t.Fatalf("margin: %s", res.MarginPercentage)
	}
	if res.Status != StatusGood {
		t.Fatalf("expected good, got %s", res.Status)
	}
}

func TestCalculateIsPure(t *testing.T) {
	in := Input{Karat: gold.K21, Weight: d("7.3"), ShopPrice: d("4321.17"), MarketRate: d("523.25")}
	first, err := Calculate(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, _ := Calculate(in)
		if !again.MarginPercentage.Equal(first.MarginPercentage) ||
			!again.TotalProfit.Equal(first.TotalProfit) ||
			!again.ProfitPerGram.Equal(first.ProfitPerGram) ||
			again.Status != first.Status {
			t.Fatalf("run %d drifted: %+v vs %+v", i, again, first)
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := map[string]Status{
		"-12.5":   StatusGood,
		"0":       StatusGood,
		"10.0":    StatusGood,
		"10.0001": StatusMedium,
		"25.0":    StatusMedium,
		"25.0001": StatusHigh,
		"300":     StatusHigh,
	}
	for raw, want := range cases {
		if got := Classify(d(raw)); got != want {
			t.Fatalf("%s: expected %s, got %s", raw, want, got)
		}
	}
}

func TestCalculateBoundaryFromPrices(t *testing.T) {
	// 1000 AED of gold quoted at exactly 1100 and 1250.
	res, _ := Calculate(Input{Karat: gold.K24, Weight: d("10"), ShopPrice: d("1100"), MarketRate: d("100")})
	if !res.MarginPercentage.Equal(d("10")) || res.Status != StatusGood {
		t.Fatalf("10%% margin should be good: %s %s", res.MarginPercentage, res.Status)
	}
	res, _ = Calculate(Input{Karat: gold.K24, Weight: d("10"), ShopPrice: d("1250"), MarketRate: d("100")})
	if !res.MarginPercentage.Equal(d("25")) || res.Status != StatusMedium {
		t.Fatalf("25%% margin should be medium: %s %s", res.MarginPercentage, res.Status)
	}
}

func TestNegativeMarginIsValid(t *testing.T) {
	res, err := Calculate(Input{Karat: gold.K22, Weight: d("5"), ShopPrice: d("2500"), MarketRate: d("545.75")})
	if err != nil {
		t.Fatalf("below-market quote must not be an error: %v", err)
	}
	if !res.TotalProfit.IsNegative() || !res.MarginPercentage.IsNegative() {
		t.Fatalf("expected negative profit and margin, got %s / %s", res.TotalProfit, res.MarginPercentage)
	}
	if !res.TotalProfit.Equal(d("-228.75")) {
		t.Fatalf("profit must not be clamped: %s", res.TotalProfit)
	}
	if res.Status != StatusGood {
		t.Fatalf("negative margin is good, got %s", res.Status)
	}
}

func TestCalculateValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    Input
		field string
	}{
		{"zero weight", Input{Karat: gold.K24, Weight: d("0"), ShopPrice: d("100"), MarketRate: d("500")}, "weight"},
		{"negative weight", Input{Karat: gold.K24, Weight: d("-5"), ShopPrice: d("100"), MarketRate: d("500")}, "weight"},
		{"zero shop price", Input{Karat: gold.K24, Weight: d("1"), ShopPrice: d("0"), MarketRate: d("500")}, "shopPrice"},
		{"zero rate", Input{Karat: gold.K24, Weight: d("1"), ShopPrice: d("100"), MarketRate: d("0")}, "marketRate"},
		{"bad karat", Input{Karat: gold.Karat(23), Weight: d("1"), ShopPrice: d("100"), MarketRate: d("500")}, "karat"},
	}
	for _, tc := range cases {
		_, err := Calculate(tc.in)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: expected field %s, got %s", tc.name, tc.field, verr.Field)
		}
	}
}

func TestParseInput(t *testing.T) {
	snap := gold.FallbackToday(time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC))

	in, err := ParseInput("22k", "10", "6,000.00", snap)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.Karat != gold.K22 || !in.ShopPrice.Equal(d("6000")) || !in.MarketRate.Equal(d("545.75")) {
		t.Fatalf("unexpected input %+v", in)
	}

	for _, bad := range [][3]string{
		{"24k", "ten", "100"},
		{"24k", "", "100"},
		{"24k", "1", "abc"},
		{"25k", "1", "100"},
	} {
		_, err := ParseInput(bad[0], bad[1], bad[2], snap)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%v: expected ValidationError, got %v", bad, err)
		}
	}
}

func TestRoundedKeepsExactSource(t *testing.T) {
	res, _ := Calculate(Input{Karat: gold.K24, Weight: d("3"), ShopPrice: d("1000"), MarketRate: d("300.333")})
	r := res.Rounded()
	if !r.OfficialGoldValue.Equal(d("901")) {
		t.Fatalf("rounded official: %s", r.OfficialGoldValue)
	}
	if !res.OfficialGoldValue.Equal(d("900.999")) {
		t.Fatalf("source result must stay exact: %s", res.OfficialGoldValue)
	}
}
