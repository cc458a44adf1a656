package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"goldchecker/internal/alerting"
	"goldchecker/internal/gold"
)

// SimulateAlert pushes a synthetic 24K discrepancy notice through the
// configured notifier so operators can verify delivery.
func (a *App) SimulateAlert(ctx context.Context, live, stored decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alerting channel configured")
	}

	now := time.Now()
	tolerance := a.Config.Reconcile.Tolerance
	diff := live.Sub(stored).Abs()
	note := alerting.Notification{
		Kind:         alerting.KindDiscrepancy,
		At:           now,
		BusinessDate: gold.BusinessDate(now),
		Source:       "simulated",
		LiveRate:     live,
		StoredRate:   stored,
		Tolerance:    tolerance,
		Message:      fmt.Sprintf("simulated 24K discrepancy of %s %s", diff.StringFixed(2), gold.Currency),
	}
	if diff.LessThanOrEqual(tolerance) {
		a.Logger.Warn().Str("diff", diff.String()).Str("tolerance", tolerance.String()).Msg("difference is within tolerance; a real sync would not alert")
	}

	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	fmt.Fprintln(a.Out, "notification delivered")
	return nil
}
