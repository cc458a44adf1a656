package gold

import (
	"errors"
	"fmt"
	"math"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// Currency is the unit every rate is quoted in.
const Currency = "AED"

// Well-known provenance labels.
const (
	SourceDCOG     = "Dubai City of Gold"
	SourceBackend  = "backend"
	SourceArchive  = "archive"
	SourceFallback = "fallback"
)

// DateLayout is the business date wire format.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidSnapshot wraps every snapshot invariant violation.
	ErrInvalidSnapshot = errors.New("invalid rate snapshot")

	dubai = loadDubai()
)

func loadDubai() *time.Location {
	loc, err := time.LoadLocation("Asia/Dubai")
	if err != nil {
		return time.FixedZone("GST", 4*60*60)
	}
	return loc
}

// Dubai returns the business time zone.
func Dubai() *time.Location {
	return dubai
}

// BusinessDate returns the Dubai calendar date of t formatted as YYYY-MM-DD.
func BusinessDate(t time.Time) string {
	return t.In(dubai).Format(DateLayout)
}

// Snapshot is an immutable set of per-gram prices for one business date.
type Snapshot struct {
	CapturedAt   time.Time
	BusinessDate string
	Source       string
	RateID       string
	rates        map[Karat]decimal.Decimal
}

// NewSnapshot validates rates and returns a snapshot that owns a private copy
// of them. The 24K rate is required; other karats are derived when absent.
func NewSnapshot(capturedAt time.Time, businessDate, source string, rates map[Karat]decimal.Decimal) (Snapshot, error) {
	if businessDate == "" {
		businessDate = BusinessDate(capturedAt)
	}
	if _, err := time.Parse(DateLayout, businessDate); err != nil {
		return Snapshot{}, fmt.Errorf("%w: business date %q", ErrInvalidSnapshot, businessDate)
	}

	base, ok := rates[K24]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: missing 24K rate", ErrInvalidSnapshot)
	}
	if !base.IsPositive() {
		return Snapshot{}, fmt.Errorf("%w: 24K rate must be positive, got %s", ErrInvalidSnapshot, base)
	}

	owned := make(map[Karat]decimal.Decimal, len(Karats))
	for _, k := range Karats {
		r, supplied := rates[k]
		if !supplied {
			r, _ = Derive(base, k)
		} else if !r.IsPositive() {
			return Snapshot{}, fmt.Errorf("%w: %s rate must be positive, got %s", ErrInvalidSnapshot, k, r)
		}
		owned[k] = r
	}
	// Derived karats take part in the ordering too.
	prev := base
	for _, k := range Karats {
		r := owned[k]
		if r.GreaterThan(prev) {
			return Snapshot{}, fmt.Errorf("%w: %s rate %s exceeds higher karat rate %s", ErrInvalidSnapshot, k, r, prev)
		}
		prev = r
	}
	for k := range rates {
		if !k.Valid() {
			return Snapshot{}, fmt.Errorf("%w: unsupported karat %d", ErrInvalidSnapshot, int(k))
		}
	}

	return Snapshot{
		CapturedAt:   capturedAt.UTC(),
		BusinessDate: businessDate,
		Source:       source,
		rates:        owned,
	}, nil
}

// FromFloats converts float rates, rejecting NaN and infinities, and builds a snapshot.
func FromFloats(capturedAt time.Time, businessDate, source string, rates map[Karat]float64) (Snapshot, error) {
	converted := make(map[Karat]decimal.Decimal, len(rates))
	for k, v := range rates {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Snapshot{}, fmt.Errorf("%w: %s rate is not finite", ErrInvalidSnapshot, k)
		}
		converted[k] = decimal.NewFromFloat(v)
	}
	return NewSnapshot(capturedAt, businessDate, source, converted)
}

// Rate returns the price per gram for k.
func (s Snapshot) Rate(k Karat) (decimal.Decimal, bool) {
	r, ok := s.rates[k]
	return r, ok
}

// IsZero reports whether the snapshot was never populated.
func (s Snapshot) IsZero() bool {
	return len(s.rates) == 0
}

// IsFallback reports whether the snapshot came from the hardcoded constants.
func (s Snapshot) IsFallback() bool {
	return s.Source == SourceFallback
}

// WithSource returns a copy labelled with another provenance.
func (s Snapshot) WithSource(source string) Snapshot {
	s.Source = source
	return s
}

// WithRateID returns a copy carrying the provider's rate identifier.
func (s Snapshot) WithRateID(id string) Snapshot {
	s.RateID = id
	return s
}

// Rates returns a copy of the per-karat prices.
func (s Snapshot) Rates() map[Karat]decimal.Decimal {
	out := make(map[Karat]decimal.Decimal, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out
}
