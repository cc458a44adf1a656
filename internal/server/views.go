package server

import (
	"time"

	"github.com/shopspring/decimal"

	"goldchecker/internal/gold"
)

// Karats listed on the price board, highest purity first.
var boardKarats = []gold.Karat{gold.K24, gold.K22, gold.K21, gold.K18, gold.K14}

type priceView struct {
	Karat    string  `json:"karat"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

type goldPricesView struct {
	Prices      []priceView `json:"prices"`
	Date        string      `json:"date"`
	Source      string      `json:"source"`
	LastUpdated string      `json:"lastUpdated"`
	Error       string      `json:"error,omitempty"`
}

type dayView struct {
	Date       string             `json:"date"`
	CapturedAt string             `json:"capturedAt"`
	Source     string             `json:"source"`
	Rates      map[string]float64 `json:"rates"`
}

type changeView struct {
	Absolute   float64  `json:"absolute"`
	Percentage *float64 `json:"percentage"`
}

type comparisonView struct {
	Today     dayView               `json:"today"`
	Yesterday dayView               `json:"yesterday"`
	Changes   map[string]changeView `json:"changes"`
	Degraded  bool                  `json:"degraded,omitempty"`
	Notice    string                `json:"notice,omitempty"`
}

type chartView struct {
	Period    string    `json:"period"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Karat     string    `json:"karat"`
	TotalDays int       `json:"totalDays"`
	Source    string    `json:"source"`
	Degraded  bool      `json:"degraded,omitempty"`
	Data      []dayView `json:"data"`
}

type currentPricesView struct {
	Source string  `json:"source"`
	Date   string  `json:"date"`
	K24    float64 `json:"k24"`
	K22    float64 `json:"k22"`
	K21    float64 `json:"k21"`
	K18    float64 `json:"k18"`
	K14    float64 `json:"k14"`
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// displayDate turns YYYY-MM-DD into DD-MM-YYYY.
func displayDate(businessDate string) string {
	t, err := time.Parse(gold.DateLayout, businessDate)
	if err != nil {
		return businessDate
	}
	return t.Format("02-01-2006")
}

func newGoldPricesView(snap gold.Snapshot, notice string) goldPricesView {
	prices := make([]priceView, 0, len(boardKarats))
	for _, k := range boardKarats {
		r, ok := snap.Rate(k)
		if !ok {
			continue
		}
		prices = append(prices, priceView{Karat: k.Label(), Price: money(r), Currency: gold.Currency})
	}
	return goldPricesView{
		Prices:      prices,
		Date:        displayDate(snap.BusinessDate),
		Source:      snap.Source,
		LastUpdated: timestamp(snap.CapturedAt),
		Error:       notice,
	}
}

func newDayView(snap gold.Snapshot, karats []gold.Karat) dayView {
	rates := make(map[string]float64, len(karats))
	for _, k := range karats {
		if r, ok := snap.Rate(k); ok {
			rates[k.Key()] = money(r)
		}
	}
	return dayView{
		Date:       snap.BusinessDate,
		CapturedAt: timestamp(snap.CapturedAt),
		Source:     snap.Source,
		Rates:      rates,
	}
}

func newChangesView(changes gold.ChangeSet) map[string]changeView {
	out := make(map[string]changeView, len(changes))
	for k, c := range changes {
		v := changeView{Absolute: money(c.Absolute)}
		if c.Percentage != nil {
			pct := money(*c.Percentage)
			v.Percentage = &pct
		}
		out[k.Key()] = v
	}
	return out
}

func newCurrentPricesView(snap gold.Snapshot) currentPricesView {
	rate := func(k gold.Karat) float64 {
		r, _ := snap.Rate(k)
		return money(r)
	}
	return currentPricesView{
		Source: snap.Source,
		Date:   snap.BusinessDate,
		K24:    rate(gold.K24),
		K22:    rate(gold.K22),
		K21:    rate(gold.K21),
		K18:    rate(gold.K18),
		K14:    rate(gold.K14),
	}
}
