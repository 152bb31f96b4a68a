// Package worker contains the periodic driver that turns the scheduler's
// single-pass Tick into a long-running process.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hireplane/internal/scheduler"
)

// Ticker is the slice of the scheduler runtime the driver needs.
type Ticker interface {
	Tick(ctx context.Context) (scheduler.TickStats, error)
	RecoverExpiredLeases(ctx context.Context) (int, error)
}

// Config holds the driver's timing knobs.
type Config struct {
	// TickInterval is the baseline delay between dispatch passes. Default 5s.
	TickInterval time.Duration

	// MaxBackoff caps the idle backoff when consecutive ticks find nothing
	// due. Default 30s.
	MaxBackoff time.Duration

	// RecoveryInterval is how often expired leases are swept. Default 1m.
	RecoveryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxBackoff < c.TickInterval {
		c.MaxBackoff = c.TickInterval
	}
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = time.Minute
	}
	return c
}

// Runner drives a scheduler runtime on a timer. It can be used either as a
// blocking loop via Run, or as a background service via Start and Stop.
type Runner struct {
	scheduler Ticker
	config    Config
	log       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Runner. Zero config fields fall back to defaults.
func New(s Ticker, config Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		scheduler: s,
		config:    config.withDefaults(),
		log:       log,
		done:      make(chan struct{}),
	}
}

// Run blocks, ticking the scheduler until the context is cancelled. Idle
// passes back off exponentially up to MaxBackoff; a pass that claims work
// resets the delay, so a busy queue is drained at the base interval. Tick
// errors are logged and the loop keeps going; a transient store outage must
// not kill the worker.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	defer close(done)

	r.log.Info("worker starting",
		slog.Duration("tick_interval", r.config.TickInterval),
		slog.Duration("recovery_interval", r.config.RecoveryInterval))

	recovery := time.NewTicker(r.config.RecoveryInterval)
	defer recovery.Stop()

	delay := r.config.TickInterval
	timer := time.NewTimer(0) // first tick immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("worker stopping")
			return ctx.Err()

		case <-recovery.C:
			n, err := r.scheduler.RecoverExpiredLeases(ctx)
			if err != nil {
				r.log.Error("lease recovery failed", slog.String("err", err.Error()))
			} else if n > 0 {
				r.log.Warn("recovered expired leases", slog.Int("count", n))
			}

		case <-timer.C:
			stats, err := r.scheduler.Tick(ctx)
			switch {
			case err != nil:
				r.log.Error("tick failed", slog.String("err", err.Error()))
				delay = r.config.TickInterval
			case stats.Claimed > 0:
				delay = r.config.TickInterval
			default:
				delay *= 2
				if delay > r.config.MaxBackoff {
					delay = r.config.MaxBackoff
				}
			}
			timer.Reset(delay)
		}
	}
}

// Start launches the run loop in the background. No-op when already running.
func (r *Runner) Start() {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.Run(ctx)
}

// Stop cancels a background loop started with Start and waits for it to
// finish. No-op when not running.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsRunning reports whether a background loop started with Start is active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Once runs a single dispatch pass. Unlike the periodic loop, which logs and
// swallows tick failures, Once hands the error back to the caller.
func (r *Runner) Once(ctx context.Context) (scheduler.TickStats, error) {
	return r.scheduler.Tick(ctx)
}

// Done returns a channel that is closed once Run has fully returned.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
