package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies a daily event.
type Kind string

const (
	// KindSync fires once a day at the configured wall-clock time.
	KindSync Kind = "sync"
	// KindRollover fires at local midnight when the business date changes.
	KindRollover Kind = "rollover"
)

// Tick is a scheduled event.
type Tick struct {
	Kind Kind
	At   time.Time
}

// TickFunc is invoked for every event.
type TickFunc func(ctx context.Context, tick Tick) error

// Options tune scheduler behaviour.
type Options struct {
	SyncHour     int
	SyncMinute   int
	Location     *time.Location
	StartupDelay time.Duration
	Now          func() time.Time
}

// Scheduler drives the daily sync and the midnight rollover in a fixed
// timezone.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.SyncHour < 0 || opts.SyncHour > 23 || opts.SyncMinute < 0 || opts.SyncMinute > 59 {
		panic("scheduler sync time out of range")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick for each event until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	for {
		next := s.Next(s.opts.Now())
		delay := next.At.Sub(s.opts.Now())
		if delay < 0 {
			delay = 0
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Str("kind", string(next.Kind)).Time("at", next.At).Msg("waiting for next event")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.logger.Info().Str("kind", string(next.Kind)).Time("at", next.At).Msg("executing scheduled tick")
		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Str("kind", string(next.Kind)).Msg("tick execution failed")
		}
	}
}

// Next returns the first event strictly after now. A sync scheduled at
// midnight replaces that night's rollover.
func (s *Scheduler) Next(now time.Time) Tick {
	local := now.In(s.opts.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.opts.Location)

	sync := time.Date(local.Year(), local.Month(), local.Day(), s.opts.SyncHour, s.opts.SyncMinute, 0, 0, s.opts.Location)
	if !sync.After(local) {
		sync = sync.AddDate(0, 0, 1)
	}

	if !sync.After(midnight) {
		return Tick{Kind: KindSync, At: sync}
	}
	return Tick{Kind: KindRollover, At: midnight}
}
