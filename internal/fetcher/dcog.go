package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"goldchecker/internal/gold"
)

const (
	defaultDCOGEndpoint = "https://dubaicityofgold.com/gold-rate-app/dcoggoldrate"
	defaultDCOGOrigin   = "https://dubaicityofgold.com"
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	dcogStatusOK        = "1"
	maxResponseBytes    = 1 << 20
)

// DCOGOptions parameterise the Dubai City of Gold fetcher.
type DCOGOptions struct {
	Endpoint  string
	VendorKey string
	Timeout   time.Duration
	UserAgent string

	// RatePerSecond caps outbound requests; zero disables throttling.
	RatePerSecond float64
	Now           func() time.Time
}

// DCOG fetches retail gold rates from the Dubai City of Gold rate app.
type DCOG struct {
	opts     DCOGOptions
	logger   zerolog.Logger
	client   *http.Client
	limiter  *rate.Limiter
	endpoint string
	origin   string
}

// NewDCOG constructs a provider fetcher.
func NewDCOG(opts DCOGOptions, logger zerolog.Logger) *DCOG {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = defaultDCOGEndpoint
	}
	origin := defaultDCOGOrigin
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	return &DCOG{
		opts:     opts,
		logger:   logger.With().Str("component", "dcog_fetcher").Logger(),
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		endpoint: endpoint,
		origin:   origin,
	}
}

// FetchLive posts the vendor key and converts the response into a snapshot.
func (d *DCOG) FetchLive(ctx context.Context) (gold.Snapshot, error) {
	if d.opts.VendorKey == "" {
		return gold.Snapshot{}, &FetchError{Kind: KindTransport, Message: "vendor key not configured"}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return gold.Snapshot{}, &FetchError{Kind: KindTransport, Message: "rate limiter", Err: err}
		}
	}

	form := url.Values{"vendor_key": {d.opts.VendorKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return gold.Snapshot{}, &FetchError{Kind: KindTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Origin", d.origin)
	req.Header.Set("Referer", d.origin+"/")
	if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return gold.Snapshot{}, &FetchError{Kind: KindTransport, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gold.Snapshot{}, &FetchError{Kind: KindTransport, Message: "read body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return gold.Snapshot{}, &FetchError{
			Kind:    KindStatus,
			Message: fmt.Sprintf("dcog http %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(payload)), 200)),
		}
	}

	snap, err := parseDCOG(payload, d.opts.Now().UTC())
	if err != nil {
		d.logger.Warn().Err(err).Msg("rejected provider response")
		return gold.Snapshot{}, err
	}

	d.logger.Debug().
		Str("business_date", snap.BusinessDate).
		Str("rate_id", snap.RateID).
		Msg("fetched live rates")
	return snap, nil
}

type dcogResponse struct {
	Status  string `json:"status"`
	Msg     string `json:"msg"`
	Date    string `json:"gold_rate_date"`
	RateID  string `json:"gold_rate_id"`
	Rate24K string `json:"gold_rate_24k"`
	Rate22K string `json:"gold_rate_22k"`
	Rate21K string `json:"gold_rate_21k"`
	Rate18K string `json:"gold_rate_18k"`
	Rate14K string `json:"gold_rate_14k"`
}

func parseDCOG(payload []byte, capturedAt time.Time) (gold.Snapshot, error) {
	var res dcogResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return gold.Snapshot{}, &FetchError{Kind: KindMalformed, Message: "decode response", Err: err}
	}

	if strings.TrimSpace(res.Status) != dcogStatusOK {
		msg := strings.TrimSpace(res.Msg)
		if msg == "" {
			msg = "invalid response from dcog api"
		}
		return gold.Snapshot{}, &FetchError{Kind: KindStatus, Message: msg}
	}

	fields := []struct {
		karat    gold.Karat
		raw      string
		required bool
	}{
		{gold.K24, res.Rate24K, true},
		{gold.K22, res.Rate22K, true},
		{gold.K21, res.Rate21K, true},
		{gold.K18, res.Rate18K, true},
		{gold.K14, res.Rate14K, false},
	}

	rates := make(map[gold.Karat]decimal.Decimal, len(fields))
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			if f.required {
				return gold.Snapshot{}, &FetchError{Kind: KindMalformed, Message: fmt.Sprintf("missing %s rate", f.karat)}
			}
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return gold.Snapshot{}, &FetchError{Kind: KindMalformed, Message: fmt.Sprintf("parse %s rate %q", f.karat, raw), Err: err}
		}
		rates[f.karat] = v
	}

	businessDate := strings.TrimSpace(res.Date)
	if _, err := time.Parse(gold.DateLayout, businessDate); err != nil {
		businessDate = gold.BusinessDate(capturedAt)
	}

	snap, err := gold.NewSnapshot(capturedAt, businessDate, gold.SourceDCOG, rates)
	if err != nil {
		return gold.Snapshot{}, &FetchError{Kind: KindMalformed, Message: "validate rates", Err: err}
	}
	return snap.WithRateID(strings.TrimSpace(res.RateID)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ RateSource = (*DCOG)(nil)
