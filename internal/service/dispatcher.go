package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Job is a unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// DispatcherOptions tune the background worker.
type DispatcherOptions struct {
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
	JobTimeout   time.Duration
}

// Dispatcher runs fire-and-forget jobs on a single worker with bounded
// retries. Callers never block on it and never see job failures.
type Dispatcher struct {
	opts   DispatcherOptions
	logger zerolog.Logger
	queue  chan Job

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher constructs a dispatcher. Start must be called before jobs run.
func NewDispatcher(opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	return &Dispatcher{
		opts:   opts,
		logger: logger.With().Str("component", "dispatcher").Logger(),
		queue:  make(chan Job, opts.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. Its lifetime is bound to ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	ctx, d.cancel = context.WithCancel(ctx)
	go d.loop(ctx)
}

// Submit enqueues a job without blocking. It reports false when the job was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("job", job.Name).Err(ErrDispatcherClosed).Msg("dropping job")
		return false
	}
	select {
	case d.queue <- job:
		return true
	default:
		d.logger.Warn().Str("job", job.Name).Int("queue_size", d.opts.QueueSize).Msg("queue full, dropping job")
		return false
	}
}

// Pending reports the number of queued jobs.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting jobs and waits for queued ones until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	close(d.queue)
	d.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for job := range d.queue {
		d.run(ctx, job)
	}
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	backoff := d.opts.RetryBackoff
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			d.logger.Warn().Str("job", job.Name).Msg("dispatcher stopped, abandoning job")
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, d.opts.JobTimeout)
		err := job.Run(jobCtx)
		cancel()
		if err == nil {
			d.logger.Debug().Str("job", job.Name).Int("attempt", attempt).Msg("job completed")
			return
		}

		evt := d.logger.Warn()
		if attempt == d.opts.MaxAttempts {
			evt = d.logger.Error()
		}
		evt.Err(err).Str("job", job.Name).Int("attempt", attempt).Int("max_attempts", d.opts.MaxAttempts).Msg("job failed")
		if attempt == d.opts.MaxAttempts {
			return
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
	}
}
