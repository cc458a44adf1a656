package gold

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Change is the day-over-day movement of one karat. Percentage is nil when
// yesterday's rate is missing or zero.
type Change struct {
	Absolute   decimal.Decimal
	Percentage *decimal.Decimal
}

// ChangeSet maps karats to their movement.
type ChangeSet map[Karat]Change

// Changes compares today's snapshot against yesterday's for the given karats.
// Karats missing from either side are skipped.
func Changes(today, yesterday Snapshot, karats []Karat) ChangeSet {
	out := make(ChangeSet, len(karats))
	for _, k := range karats {
		t, ok := today.Rate(k)
		if !ok {
			continue
		}
		y, ok := yesterday.Rate(k)
		if !ok {
			continue
		}
		abs := t.Sub(y)
		c := Change{Absolute: abs}
		if !y.IsZero() {
			pct := abs.Mul(hundred).Div(y)
			c.Percentage = &pct
		}
		out[k] = c
	}
	return out
}
