package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func discrepancyNote() Notification {
	return Notification{
		Kind:         KindDiscrepancy,
		At:           time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC),
		BusinessDate: "2026-05-10",
		Source:       "Dubai City of Gold",
		LiveRate:     decimal.RequireFromString("600.00"),
		StoredRate:   decimal.RequireFromString("594.00"),
		Tolerance:    decimal.RequireFromString("0.01"),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), discrepancyNote()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	text := received["text"]
	for _, want := range []string{"[GoldChecker discrepancy]", "10:00 Dubai", "Live 24K: 600.00 AED/g", "Difference: 6.00"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message %q should contain %q", text, want)
		}
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), discrepancyNote()); err == nil {
		t.Fatal("ok=false should fail")
	}
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) Notify(context.Context, Notification) error {
	r.calls++
	return r.err
}

func TestThrottledCooldown(t *testing.T) {
	rec := &recorder{}
	now := time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)
	th := NewThrottled(rec, 30*time.Minute)
	th.now = func() time.Time { return now }

	_ = th.Notify(context.Background(), discrepancyNote())
	_ = th.Notify(context.Background(), discrepancyNote())
	if rec.calls != 1 {
		t.Fatalf("second notice inside cooldown should be dropped, calls=%d", rec.calls)
	}

	_ = th.Notify(context.Background(), Notification{Kind: KindDegraded})
	if rec.calls != 2 {
		t.Fatalf("other kinds are throttled independently, calls=%d", rec.calls)
	}

	now = now.Add(31 * time.Minute)
	_ = th.Notify(context.Background(), discrepancyNote())
	if rec.calls != 3 {
		t.Fatalf("notice after cooldown should be sent, calls=%d", rec.calls)
	}
}

func TestThrottledRetriesAfterFailure(t *testing.T) {
	rec := &recorder{err: errors.New("down")}
	th := NewThrottled(rec, time.Hour)

	if err := th.Notify(context.Background(), discrepancyNote()); err == nil {
		t.Fatal("delivery error should surface")
	}
	rec.err = nil
	if err := th.Notify(context.Background(), discrepancyNote()); err != nil {
		t.Fatal(err)
	}
	if rec.calls != 2 {
		t.Fatalf("failed delivery must not start the cooldown, calls=%d", rec.calls)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
