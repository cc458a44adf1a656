package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldchecker/internal/gold"
)

var fixedNow = time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestDCOG(url string) *DCOG {
	return NewDCOG(DCOGOptions{
		Endpoint:  url,
		VendorKey: "KEY",
		Timeout:   time.Second,
		UserAgent: "test",
		Now:       func() time.Time { return fixedNow },
	}, noopLogger())
}

func okPayload() map[string]string {
	return map[string]string{
		"status":         "1",
		"msg":            "success",
		"gold_rate_date": "2026-05-10",
		"gold_rate_id":   "4411",
		"gold_rate_24k":  "589.50",
		"gold_rate_22k":  "545.75",
		"gold_rate_21k":  "523.25",
		"gold_rate_18k":  "448.50",
		"gold_rate_14k":  "349.75",
	}
}

func serve(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("vendor_key") != "KEY" {
			t.Errorf("vendor_key missing from form")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDCOGFetchSuccess(t *testing.T) {
	srv := serve(t, http.StatusOK, okPayload())

	snap, err := newTestDCOG(srv.URL).FetchLive(context.Background())
	if err != nil {
		t.Fatalf("success response should not fail: %v", err)
	}
	if snap.Source != gold.SourceDCOG {
		t.Fatalf("unexpected source %q", snap.Source)
	}
	if snap.BusinessDate != "2026-05-10" || snap.RateID != "4411" {
		t.Fatalf("unexpected metadata %+v", snap)
	}
	if !snap.CapturedAt.Equal(fixedNow) {
		t.Fatalf("captured at should come from the clock")
	}
	r24, _ := snap.Rate(gold.K24)
	if !r24.Equal(decimal.RequireFromString("589.5")) {
		t.Fatalf("24K: %s", r24)
	}
	r14, _ := snap.Rate(gold.K14)
	if !r14.Equal(decimal.RequireFromString("349.75")) {
		t.Fatalf("supplied 14K must be kept: %s", r14)
	}
}

func TestDCOGDerives14KWhenAbsent(t *testing.T) {
	payload := okPayload()
	delete(payload, "gold_rate_14k")
	srv := serve(t, http.StatusOK, payload)

	snap, err := newTestDCOG(srv.URL).FetchLive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r14, _ := snap.Rate(gold.K14)
	want := decimal.RequireFromString("589.50").Mul(decimal.RequireFromString("0.583"))
	if !r14.Equal(want) {
		t.Fatalf("14K should be derived: expected %s, got %s", want, r14)
	}
}

func TestDCOGFallsBackToCaptureDate(t *testing.T) {
	payload := okPayload()
	payload["gold_rate_date"] = "10/05/2026"
	srv := serve(t, http.StatusOK, payload)

	snap, err := newTestDCOG(srv.URL).FetchLive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.BusinessDate != gold.BusinessDate(fixedNow) {
		t.Fatalf("expected capture business date, got %s", snap.BusinessDate)
	}
}

func TestDCOGFailures(t *testing.T) {
	missing := okPayload()
	delete(missing, "gold_rate_22k")
	garbage := okPayload()
	garbage["gold_rate_21k"] = "n/a"
	inverted := okPayload()
	inverted["gold_rate_18k"] = "700"

	cases := []struct {
		name   string
		status int
		body   any
		kind   ErrorKind
	}{
		{"provider status", http.StatusOK, map[string]string{"status": "0", "msg": "Invalid vendor"}, KindStatus},
		{"http error", http.StatusBadGateway, map[string]string{"error": "down"}, KindStatus},
		{"missing karat", http.StatusOK, missing, KindMalformed},
		{"non numeric", http.StatusOK, garbage, KindMalformed},
		{"invariant violated", http.StatusOK, inverted, KindMalformed},
		{"not json", http.StatusOK, "<html>", KindMalformed},
	}

	for _, tc := range cases {
		srv := serve(t, tc.status, tc.body)
		_, err := newTestDCOG(srv.URL).FetchLive(context.Background())
		var ferr *FetchError
		if !errors.As(err, &ferr) {
			t.Fatalf("%s: expected FetchError, got %v", tc.name, err)
		}
		if ferr.Kind != tc.kind {
			t.Fatalf("%s: expected kind %s, got %s (%v)", tc.name, tc.kind, ferr.Kind, err)
		}
	}
}

func TestDCOGProviderMessageSurfaced(t *testing.T) {
	srv := serve(t, http.StatusOK, map[string]string{"status": "0", "msg": "Invalid vendor"})
	_, err := newTestDCOG(srv.URL).FetchLive(context.Background())
	var ferr *FetchError
	if !errors.As(err, &ferr) || ferr.Message != "Invalid vendor" {
		t.Fatalf("provider msg should be surfaced, got %v", err)
	}
}

func TestDCOGMissingVendorKey(t *testing.T) {
	d := NewDCOG(DCOGOptions{Endpoint: "http://127.0.0.1:1"}, noopLogger())
	if _, err := d.FetchLive(context.Background()); err == nil {
		t.Fatal("missing vendor key should fail")
	}
}

func TestDCOGTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	d := NewDCOG(DCOGOptions{Endpoint: srv.URL, VendorKey: "KEY", Timeout: 50 * time.Millisecond}, noopLogger())
	_, err := d.FetchLive(context.Background())
	var ferr *FetchError
	if !errors.As(err, &ferr) || ferr.Kind != KindTransport {
		t.Fatalf("slow upstream should fail as transport, got %v", err)
	}
}
