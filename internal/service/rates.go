// Package service resolves authoritative gold rates from the live provider,
// the backend, the local archive and the built-in fallback, and keeps them
// cached and eventually persisted.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"goldchecker/internal/alerting"
	"goldchecker/internal/backend"
	"goldchecker/internal/cache"
	"goldchecker/internal/fetcher"
	"goldchecker/internal/gold"
	"goldchecker/internal/storage"
)

const (
	liveKey       = "live"
	comparisonKey = "today-vs-yesterday"

	noticeStale    = "Live fetch temporarily unavailable - showing last known prices"
	noticeArchive  = "Live fetch temporarily unavailable - showing archived prices"
	noticeFallback = "Using cached prices - live fetch temporarily unavailable"
)

// Sync triggers.
const (
	TriggerManual      = "manual"
	TriggerCron        = "cron"
	TriggerScheduler   = "scheduler"
	TriggerCLI         = "cli"
	TriggerDiscrepancy = "discrepancy"
)

// Backend is the subset of the backend API the service relies on.
type Backend interface {
	TodayVsYesterday(ctx context.Context) (backend.Comparison, error)
	Chart(ctx context.Context, q backend.ChartQuery) (backend.ChartData, error)
	PushRates(ctx context.Context, req backend.IngestRequest) (json.RawMessage, error)
}

// Submitter accepts background jobs.
type Submitter interface {
	Submit(job Job) bool
}

// Deps are the collaborators of Rates. Archive, Notifier and Jobs are optional.
type Deps struct {
	Source   fetcher.RateSource
	Backend  Backend
	Archive  storage.SnapshotStore
	Jobs     Submitter
	Notifier alerting.Notifier
}

// Options tune caching and reconciliation.
type Options struct {
	LiveTTL       time.Duration
	ComparisonTTL time.Duration
	ChartTTL      time.Duration
	Tolerance     decimal.Decimal
	LockKey       int64
	Now           func() time.Time
}

// Resolved is a snapshot plus how trustworthy it is.
type Resolved struct {
	Snapshot gold.Snapshot
	Degraded bool
	Notice   string
}

// Comparison pairs today's and yesterday's snapshots with their movement.
type Comparison struct {
	Today     gold.Snapshot
	Yesterday gold.Snapshot
	Changes   gold.ChangeSet
	Degraded  bool
	Notice    string
}

// SyncResult describes a completed push to the backend.
type SyncResult struct {
	Trigger  string
	Snapshot gold.Snapshot
	Request  backend.IngestRequest
	Response json.RawMessage
	SyncedAt time.Time
}

// Rates is the reconciliation and cache layer.
type Rates struct {
	source   fetcher.RateSource
	backend  Backend
	archive  storage.SnapshotStore
	audit    storage.SyncRunStore
	locker   storage.AdvisoryLocker
	jobs     Submitter
	notifier alerting.Notifier
	logger   zerolog.Logger
	opts     Options

	live        *cache.Cache[gold.Snapshot]
	comparisons *cache.Cache[Comparison]
	charts      *cache.Cache[Series]
}

// NewRates wires the reconciliation layer.
func NewRates(deps Deps, opts Options, logger zerolog.Logger) *Rates {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LiveTTL <= 0 {
		opts.LiveTTL = 5 * time.Minute
	}
	if opts.ComparisonTTL <= 0 {
		opts.ComparisonTTL = time.Minute
	}
	if opts.ChartTTL <= 0 {
		opts.ChartTTL = 10 * time.Minute
	}

	r := &Rates{
		source:   deps.Source,
		backend:  deps.Backend,
		archive:  deps.Archive,
		jobs:     deps.Jobs,
		notifier: deps.Notifier,
		logger:   logger.With().Str("component", "rates").Logger(),
		opts:     opts,

		live:        cache.New[gold.Snapshot](cache.Options{TTL: opts.LiveTTL, Now: opts.Now}),
		comparisons: cache.New[Comparison](cache.Options{TTL: opts.ComparisonTTL, Now: opts.Now}),
		charts:      cache.New[Series](cache.Options{TTL: opts.ChartTTL, Now: opts.Now}),
	}
	if a, ok := deps.Archive.(storage.SyncRunStore); ok {
		r.audit = a
	}
	if l, ok := deps.Archive.(storage.AdvisoryLocker); ok {
		r.locker = l
	}
	return r
}

// NeedsSync reports whether live's 24K rate differs from persisted's by more
// than tolerance. A persisted snapshot without rates always needs a sync.
func NeedsSync(live, persisted gold.Snapshot, tolerance decimal.Decimal) bool {
	l, ok := live.Rate(gold.K24)
	if !ok {
		return false
	}
	p, ok := persisted.Rate(gold.K24)
	if !ok {
		return true
	}
	return l.Sub(p).Abs().GreaterThan(tolerance)
}

// LiveSnapshot returns the current rates. It never fails: a failed refresh
// falls back to the stale cache, then the archive, then the fixed snapshot.
func (r *Rates) LiveSnapshot(ctx context.Context) Resolved {
	res, err := r.live.GetOrRefresh(ctx, liveKey, r.fetchLive)
	if err == nil {
		out := Resolved{Snapshot: res.Value, Degraded: res.Degraded}
		if res.Degraded {
			out.Notice = noticeStale
			r.logger.Warn().Err(res.Err).Time("stored_at", res.StoredAt).Msg("live fetch failed, serving stale snapshot")
		}
		return out
	}

	r.logger.Warn().Err(err).Msg("live fetch failed with nothing cached")
	return r.lastKnown(ctx, err)
}

func (r *Rates) fetchLive(ctx context.Context) (gold.Snapshot, error) {
	snap, err := r.source.FetchLive(ctx)
	if err != nil {
		return gold.Snapshot{}, err
	}
	r.archiveAsync(snap)
	return snap, nil
}

func (r *Rates) lastKnown(ctx context.Context, cause error) Resolved {
	if r.archive != nil {
		snap, err := r.archive.LatestSnapshot(ctx)
		if err == nil {
			r.notifyAsync(alerting.Notification{Kind: alerting.KindDegraded, BusinessDate: snap.BusinessDate, Source: gold.SourceArchive, Message: cause.Error()})
			return Resolved{Snapshot: snap.WithSource(gold.SourceArchive), Degraded: true, Notice: noticeArchive}
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Error().Err(err).Msg("archive lookup failed")
		}
	}

	snap := gold.FallbackToday(r.opts.Now())
	r.notifyAsync(alerting.Notification{Kind: alerting.KindDegraded, BusinessDate: snap.BusinessDate, Source: gold.SourceFallback, Message: cause.Error()})
	return Resolved{Snapshot: snap, Degraded: true, Notice: noticeFallback}
}

// CheckSync fetches live rates without persisting them.
func (r *Rates) CheckSync(ctx context.Context) (gold.Snapshot, error) {
	snap, err := r.source.FetchLive(ctx)
	if err != nil {
		return gold.Snapshot{}, fmt.Errorf("fetch live rates: %w", err)
	}
	r.live.Set(liveKey, snap)
	return snap, nil
}

// TodayVsYesterday returns today's and yesterday's rates with changes. It
// never fails.
func (r *Rates) TodayVsYesterday(ctx context.Context) Comparison {
	res, _ := r.comparisons.GetOrRefresh(ctx, comparisonKey, func(ctx context.Context) (Comparison, error) {
		return r.compare(ctx), nil
	})
	return res.Value
}

func (r *Rates) compare(ctx context.Context) Comparison {
	var (
		g          errgroup.Group
		persisted  backend.Comparison
		backendErr error
		live       Resolved
	)
	g.Go(func() error {
		persisted, backendErr = r.backend.TodayVsYesterday(ctx)
		return nil
	})
	g.Go(func() error {
		live = r.LiveSnapshot(ctx)
		return nil
	})
	_ = g.Wait()

	if backendErr == nil {
		cmp, err := r.reconcile(ctx, persisted, live)
		if err == nil {
			return cmp
		}
		backendErr = err
	}

	r.logger.Warn().Err(backendErr).Msg("persisted comparison unavailable, using local sources")
	today := live.Snapshot
	yesterday, fromFallback := r.previousDay(ctx, today)
	notice := live.Notice
	if notice == "" && fromFallback {
		notice = noticeFallback
	}
	return newComparison(today, yesterday, live.Degraded || fromFallback, notice)
}

// reconcile prefers live rates over persisted ones when they disagree and
// schedules the live snapshot for persistence. Live rates for an earlier
// business date never replace a persisted newer day.
func (r *Rates) reconcile(ctx context.Context, persisted backend.Comparison, live Resolved) (Comparison, error) {
	today, err := persisted.Today.Snapshot()
	if err != nil {
		return Comparison{}, err
	}
	var yesterday gold.Snapshot
	if persisted.Yesterday != nil {
		if y, err := persisted.Yesterday.Snapshot(); err == nil {
			yesterday = y
		} else {
			r.logger.Warn().Err(err).Msg("ignoring malformed persisted yesterday")
		}
	}

	switch {
	case live.Degraded || !NeedsSync(live.Snapshot, today, r.opts.Tolerance):
	case live.Snapshot.BusinessDate < today.BusinessDate:
		r.logger.Debug().
			Str("live_date", live.Snapshot.BusinessDate).
			Str("persisted_date", today.BusinessDate).
			Msg("live rates are older than persisted today; keeping persisted")
	default:
		r.writeBackAsync(live.Snapshot, today)
		if live.Snapshot.BusinessDate > today.BusinessDate {
			yesterday = today
		}
		today = live.Snapshot
	}

	degraded := false
	if yesterday.IsZero() {
		yesterday, degraded = r.previousDay(ctx, today)
	}
	return newComparison(today, yesterday, degraded, ""), nil
}

// previousDay finds the latest archived snapshot before today's business
// date, falling back to the fixed snapshot.
func (r *Rates) previousDay(ctx context.Context, today gold.Snapshot) (gold.Snapshot, bool) {
	if r.archive != nil && !today.IsFallback() {
		snap, err := r.archive.LatestBefore(ctx, today.BusinessDate)
		if err == nil {
			return snap.WithSource(gold.SourceArchive), false
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Error().Err(err).Msg("archive lookup failed")
		}
	}
	return gold.FallbackYesterday(r.opts.Now()), true
}

func newComparison(today, yesterday gold.Snapshot, degraded bool, notice string) Comparison {
	return Comparison{
		Today:     today,
		Yesterday: yesterday,
		Changes:   gold.Changes(today, yesterday, gold.ProviderKarats),
		Degraded:  degraded,
		Notice:    notice,
	}
}

// Sync fetches live rates bypassing the cache and pushes them to the backend
// and the archive.
func (r *Rates) Sync(ctx context.Context, trigger string) (SyncResult, error) {
	snap, err := r.source.FetchLive(ctx)
	if err != nil {
		r.recordSync(ctx, trigger, "", err)
		return SyncResult{Trigger: trigger}, fmt.Errorf("fetch live rates: %w", err)
	}
	r.live.Set(liveKey, snap)

	if r.archive != nil {
		if err := r.archive.UpsertSnapshot(ctx, snap); err != nil {
			r.logger.Error().Err(err).Str("business_date", snap.BusinessDate).Msg("failed to archive snapshot")
		}
	}

	now := r.opts.Now().UTC()
	req := backend.NewIngestRequest(snap, syncNotes(trigger, snap, now))
	resp, err := r.backend.PushRates(ctx, req)
	if err != nil {
		r.recordSync(ctx, trigger, snap.BusinessDate, err)
		r.notifyAsync(alerting.Notification{Kind: alerting.KindSyncFailed, BusinessDate: snap.BusinessDate, Source: snap.Source, Message: err.Error()})
		return SyncResult{Trigger: trigger, Snapshot: snap, Request: req}, fmt.Errorf("push rates: %w", err)
	}

	r.comparisons.InvalidateAll()
	r.charts.InvalidateAll()
	r.recordSync(ctx, trigger, snap.BusinessDate, nil)

	r.logger.Info().
		Str("trigger", trigger).
		Str("business_date", snap.BusinessDate).
		Str("rate_id", snap.RateID).
		Msg("rates synced")
	return SyncResult{Trigger: trigger, Snapshot: snap, Request: req, Response: resp, SyncedAt: now}, nil
}

// ScheduledSync runs Sync under the archive's advisory lock so only one
// instance syncs per tick. It reports false when another instance holds it.
func (r *Rates) ScheduledSync(ctx context.Context) (bool, error) {
	unlock, proceed, err := r.acquireLock(ctx)
	if err != nil {
		return false, err
	}
	if !proceed {
		r.logger.Debug().Msg("skip scheduled sync because advisory lock held elsewhere")
		r.recordRun(ctx, storage.SyncRun{
			Trigger:      TriggerScheduler,
			BusinessDate: gold.BusinessDate(r.opts.Now()),
			Status:       storage.SyncStatusSkipped,
		})
		return false, nil
	}
	if unlock != nil {
		defer unlock()
	}
	_, err = r.Sync(ctx, TriggerScheduler)
	return err == nil, err
}

func (r *Rates) acquireLock(ctx context.Context) (func(), bool, error) {
	if r.opts.LockKey == 0 || r.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := r.locker.TryAdvisoryLock(ctx, r.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// RollOver drops cached values from previous business dates.
func (r *Rates) RollOver() int {
	n := r.live.RollOver() + r.comparisons.RollOver() + r.charts.RollOver()
	if n > 0 {
		r.logger.Info().Int("entries", n).Str("business_date", gold.BusinessDate(r.opts.Now())).Msg("caches rolled over")
	}
	return n
}

// RecentSyncs lists audited sync attempts when an archive is configured.
func (r *Rates) RecentSyncs(ctx context.Context, limit int) ([]storage.SyncRun, error) {
	if r.audit == nil {
		return nil, storage.ErrNotConfigured
	}
	return r.audit.ListRecentSyncRuns(ctx, limit)
}

func syncNotes(trigger string, snap gold.Snapshot, now time.Time) string {
	switch trigger {
	case TriggerCron, TriggerScheduler:
		return fmt.Sprintf("Auto-synced via %s on %s. DCOG date: %s", trigger, now.Format(time.RFC3339), snap.BusinessDate)
	default:
		note := fmt.Sprintf("Scraped from dubaicityofgold.com on %s.", snap.BusinessDate)
		if snap.RateID != "" {
			note += " Rate ID: " + snap.RateID
		}
		return note
	}
}

func (r *Rates) recordSync(ctx context.Context, trigger, businessDate string, syncErr error) {
	if r.audit == nil {
		return
	}
	run := storage.SyncRun{Trigger: trigger, BusinessDate: businessDate, Status: storage.SyncStatusOK}
	if syncErr != nil {
		msg := syncErr.Error()
		run.Status = storage.SyncStatusFailed
		run.Error = &msg
	}
	r.recordRun(ctx, run)
}

func (r *Rates) recordRun(ctx context.Context, run storage.SyncRun) {
	if r.audit == nil {
		return
	}
	if _, err := r.audit.InsertSyncRun(ctx, run); err != nil {
		r.logger.Error().Err(err).Str("trigger", run.Trigger).Msg("failed to record sync run")
	}
}

func (r *Rates) writeBackAsync(live, persisted gold.Snapshot) {
	l, _ := live.Rate(gold.K24)
	p, _ := persisted.Rate(gold.K24)
	r.logger.Info().
		Str("live_24k", l.String()).
		Str("persisted_24k", p.String()).
		Str("business_date", live.BusinessDate).
		Msg("live rates differ from persisted, scheduling write-back")

	notes := fmt.Sprintf("Auto-synced: live 24K %s differed from stored %s (%s).", l.StringFixed(2), p.StringFixed(2), persisted.BusinessDate)
	req := backend.NewIngestRequest(live, notes)
	r.submit(Job{
		Name: "backend-write-back",
		Run: func(ctx context.Context) error {
			_, err := r.backend.PushRates(ctx, req)
			if err == nil {
				r.recordSync(ctx, TriggerDiscrepancy, live.BusinessDate, nil)
			}
			return err
		},
	})
	r.notifyAsync(alerting.Notification{
		Kind:         alerting.KindDiscrepancy,
		At:           r.opts.Now(),
		BusinessDate: live.BusinessDate,
		Source:       live.Source,
		LiveRate:     l,
		StoredRate:   p,
		Tolerance:    r.opts.Tolerance,
	})
}

func (r *Rates) archiveAsync(snap gold.Snapshot) {
	if r.archive == nil {
		return
	}
	r.submit(Job{
		Name: "archive-snapshot",
		Run: func(ctx context.Context) error {
			return r.archive.UpsertSnapshot(ctx, snap)
		},
	})
}

func (r *Rates) notifyAsync(note alerting.Notification) {
	if r.notifier == nil {
		return
	}
	if note.At.IsZero() {
		note.At = r.opts.Now()
	}
	r.submit(Job{
		Name: "notify-" + string(note.Kind),
		Run: func(ctx context.Context) error {
			return r.notifier.Notify(ctx, note)
		},
	})
}

func (r *Rates) submit(job Job) {
	if r.jobs == nil {
		r.logger.Debug().Str("job", job.Name).Msg("no dispatcher configured, skipping job")
		return
	}
	r.jobs.Submit(job)
}
