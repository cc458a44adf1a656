package gold

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Karat identifies a gold purity grade.
type Karat int

const (
	K24 Karat = 24
	K22 Karat = 22
	K21 Karat = 21
	K20 Karat = 20
	K18 Karat = 18
	K14 Karat = 14
)

// Karats lists every supported karat from purest to least pure.
var Karats = []Karat{K24, K22, K21, K20, K18, K14}

// ProviderKarats must be supplied by a rate source; the rest may be derived.
var ProviderKarats = []Karat{K24, K22, K21, K18}

var purity = map[Karat]decimal.Decimal{
	K24: decimal.NewFromInt(1),
	K22: decimal.RequireFromString("0.916"),
	K21: decimal.RequireFromString("0.875"),
	K20: decimal.RequireFromString("0.833"),
	K18: decimal.RequireFromString("0.75"),
	K14: decimal.RequireFromString("0.583"),
}

// PurityFactor returns the fraction of pure gold for k.
func PurityFactor(k Karat) (decimal.Decimal, bool) {
	f, ok := purity[k]
	return f, ok
}

// Valid reports whether k is a supported karat.
func (k Karat) Valid() bool {
	_, ok := purity[k]
	return ok
}

// Label renders the karat as "24K".
func (k Karat) Label() string {
	return strconv.Itoa(int(k)) + "K"
}

// Key renders the karat as the wire key used by the backend ("k24").
func (k Karat) Key() string {
	return "k" + strconv.Itoa(int(k))
}

func (k Karat) String() string {
	return k.Label()
}

// ParseKarat accepts "24", "24k", "24K" and "k24".
func ParseKarat(s string) (Karat, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "k")
	v = strings.TrimSuffix(v, "k")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("unsupported karat %q", s)
	}
	k := Karat(n)
	if !k.Valid() {
		return 0, fmt.Errorf("unsupported karat %q", s)
	}
	return k, nil
}

// Derive computes the price of k from a 24K price.
func Derive(rate24 decimal.Decimal, k Karat) (decimal.Decimal, error) {
	f, ok := PurityFactor(k)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("unsupported karat %d", int(k))
	}
	return rate24.Mul(f), nil
}
