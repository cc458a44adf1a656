// Package calculator derives a shop's profit margin on a gold purchase.
package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"goldchecker/internal/gold"
)

// Status classifies how far a shop price sits above market value.
type Status string

const (
	StatusGood   Status = "good"
	StatusMedium Status = "medium"
	StatusHigh   Status = "high"
)

var (
	hundred         = decimal.NewFromInt(100)
	goodCeiling     = decimal.NewFromInt(10)
	mediumCeiling   = decimal.NewFromInt(25)
	presentationDPs = int32(2)
)

// Input is a validated margin request. MarketRate comes from the
// authoritative snapshot, never from the user.
type Input struct {
	Karat      gold.Karat
	Weight     decimal.Decimal
	ShopPrice  decimal.Decimal
	MarketRate decimal.Decimal
}

// Result carries exact values; round only when rendering.
type Result struct {
	Karat             gold.Karat
	Weight            decimal.Decimal
	ShopPrice         decimal.Decimal
	MarketRate        decimal.Decimal
	OfficialGoldValue decimal.Decimal
	TotalProfit       decimal.Decimal
	ProfitPerGram     decimal.Decimal
	MarginPercentage  decimal.Decimal
	Status            Status
}

// ValidationError rejects input before any computation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Calculate computes the margin breakdown for in.
func Calculate(in Input) (Result, error) {
	if !in.Karat.Valid() {
		return Result{}, &ValidationError{Field: "karat", Reason: fmt.Sprintf("unsupported karat %d", int(in.Karat))}
	}
	if !in.Weight.IsPositive() {
		return Result{}, &ValidationError{Field: "weight", Reason: "must be greater than zero"}
	}
	if !in.ShopPrice.IsPositive() {
		return Result{}, &ValidationError{Field: "shopPrice", Reason: "must be greater than zero"}
	}
	if !in.MarketRate.IsPositive() {
		return Result{}, &ValidationError{Field: "marketRate", Reason: "must be greater than zero"}
	}

	official := in.MarketRate.Mul(in.Weight)
	if official.IsZero() {
		return Result{}, &ValidationError{Field: "weight", Reason: "official gold value is zero"}
	}
	profit := in.ShopPrice.Sub(official)
	margin := profit.Mul(hundred).Div(official)

	return Result{
		Karat:             in.Karat,
		Weight:            in.Weight,
		ShopPrice:         in.ShopPrice,
		MarketRate:        in.MarketRate,
		OfficialGoldValue: official,
		TotalProfit:       profit,
		ProfitPerGram:     profit.Div(in.Weight),
		MarginPercentage:  margin,
		Status:            Classify(margin),
	}, nil
}

// Classify buckets a margin percentage. Band ceilings are inclusive.
func Classify(margin decimal.Decimal) Status {
	switch {
	case margin.LessThanOrEqual(goodCeiling):
		return StatusGood
	case margin.LessThanOrEqual(mediumCeiling):
		return StatusMedium
	default:
		return StatusHigh
	}
}

// ParseAmount parses user-entered text such as "6,200.50".
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if v == "" {
		return decimal.Decimal{}, &ValidationError{Field: field, Reason: "is required"}
	}
	amount, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	return amount, nil
}

// ParseInput builds an Input from form text and a resolved market rate.
func ParseInput(karat, weight, shopPrice string, rates gold.Snapshot) (Input, error) {
	k, err := gold.ParseKarat(karat)
	if err != nil {
		return Input{}, &ValidationError{Field: "karat", Reason: err.Error()}
	}
	w, err := ParseAmount("weight", weight)
	if err != nil {
		return Input{}, err
	}
	p, err := ParseAmount("shopPrice", shopPrice)
	if err != nil {
		return Input{}, err
	}
	rate, ok := rates.Rate(k)
	if !ok {
		return Input{}, &ValidationError{Field: "marketRate", Reason: "no rate available for " + k.Label()}
	}
	return Input{Karat: k, Weight: w, ShopPrice: p, MarketRate: rate}, nil
}

// Rounded returns a copy with every amount rounded for display.
func (r Result) Rounded() Result {
	out := r
	out.MarketRate = r.MarketRate.Round(presentationDPs)
	out.OfficialGoldValue = r.OfficialGoldValue.Round(presentationDPs)
	out.TotalProfit = r.TotalProfit.Round(presentationDPs)
	out.ProfitPerGram = r.ProfitPerGram.Round(presentationDPs)
	out.MarginPercentage = r.MarginPercentage.Round(presentationDPs)
	return out
}
