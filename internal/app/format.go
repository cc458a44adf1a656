package app

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"goldchecker/internal/gold"
)

var printer = message.NewPrinter(language.English)

// formatAED renders an amount with grouping and two decimals, e.g. "6,200.50 AED".
func formatAED(d decimal.Decimal) string {
	return printer.Sprintf("%.2f %s", d.Round(2).InexactFloat64(), gold.Currency)
}

func formatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func formatPercent(d *decimal.Decimal) string {
	if d == nil {
		return "n/a"
	}
	return printer.Sprintf("%+.2f%%", d.Round(2).InexactFloat64())
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
