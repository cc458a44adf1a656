package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"goldchecker/internal/scheduler"
)

// Service runs the background side of the rates layer: the daily sync and the
// midnight cache rollover.
type Service struct {
	rates     *Rates
	scheduler *scheduler.Scheduler
	logger    zerolog.Logger
}

// New constructs the background service.
func New(rates *Rates, sched *scheduler.Scheduler, logger zerolog.Logger) *Service {
	return &Service{
		rates:     rates,
		scheduler: sched,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run blocks on the scheduler loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick handles one scheduled event. Caches are rolled over before every
// sync so a midnight sync never reads the previous day's entries.
func (s *Service) ProcessTick(ctx context.Context, tick scheduler.Tick) error {
	s.rates.RollOver()
	if tick.Kind != scheduler.KindSync {
		return nil
	}

	ran, err := s.rates.ScheduledSync(ctx)
	if err != nil {
		return fmt.Errorf("scheduled sync: %w", err)
	}
	if !ran {
		s.logger.Info().Time("at", tick.At).Msg("scheduled sync handled by another instance")
	}
	return nil
}
