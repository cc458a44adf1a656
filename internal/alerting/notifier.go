package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldchecker/internal/gold"
)

// Kind classifies a notice.
type Kind string

const (
	KindDiscrepancy Kind = "discrepancy"
	KindDegraded    Kind = "degraded"
	KindSyncFailed  Kind = "sync_failed"
)

// Notification carries the context of an operator notice.
type Notification struct {
	Kind         Kind
	At           time.Time
	BusinessDate string
	Source       string
	LiveRate     decimal.Decimal
	StoredRate   decimal.Decimal
	Tolerance    decimal.Decimal
	Message      string
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes notices through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered notice.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("kind", string(note.Kind)).
		Str("business_date", note.BusinessDate).
		Msg("notice sent (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[GoldChecker %s]\n", note.Kind))
	at := note.At
	if at.IsZero() {
		at = time.Now()
	}
	builder.WriteString(fmt.Sprintf("At: %s Dubai\n", at.In(gold.Dubai()).Format("2006-01-02 15:04")))
	if note.BusinessDate != "" {
		builder.WriteString(fmt.Sprintf("Business date: %s\n", note.BusinessDate))
	}
	if note.Source != "" {
		builder.WriteString(fmt.Sprintf("Source: %s\n", note.Source))
	}
	if !note.LiveRate.IsZero() {
		builder.WriteString(fmt.Sprintf("Live 24K: %s %s/g\n", note.LiveRate.StringFixed(2), gold.Currency))
	}
	if !note.StoredRate.IsZero() {
		builder.WriteString(fmt.Sprintf("Stored 24K: %s %s/g\n", note.StoredRate.StringFixed(2), gold.Currency))
		diff := note.LiveRate.Sub(note.StoredRate)
		builder.WriteString(fmt.Sprintf("Difference: %s (tolerance %s)\n", diff.StringFixed(2), note.Tolerance.StringFixed(2)))
	}
	if note.Message != "" {
		builder.WriteString(note.Message)
	}
	return builder.String()
}

// Throttled suppresses repeated notices of the same kind within a cooldown.
type Throttled struct {
	next     Notifier
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[Kind]time.Time
}

// NewThrottled wraps a notifier with a per-kind cooldown.
func NewThrottled(next Notifier, cooldown time.Duration) *Throttled {
	return &Throttled{next: next, cooldown: cooldown, now: time.Now, last: make(map[Kind]time.Time)}
}

// Notify forwards the notice unless one of the same kind was sent recently.
func (t *Throttled) Notify(ctx context.Context, note Notification) error {
	now := t.now()
	t.mu.Lock()
	if last, ok := t.last[note.Kind]; ok && t.cooldown > 0 && now.Sub(last) < t.cooldown {
		t.mu.Unlock()
		return nil
	}
	t.last[note.Kind] = now
	t.mu.Unlock()

	if err := t.next.Notify(ctx, note); err != nil {
		t.mu.Lock()
		delete(t.last, note.Kind)
		t.mu.Unlock()
		return err
	}
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*Throttled)(nil)
)
