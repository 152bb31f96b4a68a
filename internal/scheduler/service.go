// Package scheduler contains the runtime that drives hires and jobs: lifecycle
// operations, the tick dispatch loop, and lease recovery. All shared mutable
// state lives in the store; the runtime holds no locks of its own and relies
// on the store's atomic claim for per-job mutual exclusion.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"hireplane/internal/agent"
	"hireplane/internal/store"
)

// Clock supplies the current time. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Options configures the runtime. Zero fields fall back to defaults.
type Options struct {
	// WorkerID identifies this runtime in leases. Defaults to a random UUID.
	WorkerID string

	// LeaseDuration bounds how long a claimed job stays exclusive before
	// another worker may reclaim it. Default 60s.
	LeaseDuration time.Duration

	// CardTTL bounds how long a cached capability card is trusted. Default 10m.
	CardTTL time.Duration

	// Concurrency bounds simultaneous outbound invocations per tick. Default 5.
	Concurrency int

	// MaxDueBatch caps how many due jobs one tick pulls. Default 50.
	MaxDueBatch int

	// DefaultMaxRetries applies to jobs created without an explicit ceiling.
	// Default 3.
	DefaultMaxRetries int

	// PaymentNetwork is passed through to the payment provider, if any.
	PaymentNetwork string
}

func (o Options) withDefaults() Options {
	if o.WorkerID == "" {
		o.WorkerID = uuid.NewString()
	}
	if o.LeaseDuration <= 0 {
		o.LeaseDuration = 60 * time.Second
	}
	if o.CardTTL <= 0 {
		o.CardTTL = 10 * time.Minute
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.MaxDueBatch <= 0 {
		o.MaxDueBatch = 50
	}
	if o.DefaultMaxRetries <= 0 {
		o.DefaultMaxRetries = 3
	}
	return o
}

// Service is the scheduler runtime.
type Service struct {
	store    store.Store
	cards    agent.CardClient
	invoker  agent.Invoker
	payments agent.PaymentProvider // nil when no payment layer is configured
	clock    Clock
	log      *slog.Logger
	opts     Options

	tracer     trace.Tracer
	dispatches metric.Int64Counter
	recovered  metric.Int64Counter
}

// New creates a scheduler runtime. payments may be nil.
func New(s store.Store, cards agent.CardClient, invoker agent.Invoker, payments agent.PaymentProvider, clock Clock, log *slog.Logger, opts Options) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = slog.Default()
	}

	meter := otel.Meter("hireplane/scheduler")
	dispatches, _ := meter.Int64Counter("hireplane_dispatches_total",
		metric.WithDescription("Job dispatch outcomes per tick"))
	recovered, _ := meter.Int64Counter("hireplane_leases_recovered_total",
		metric.WithDescription("Jobs recovered from expired leases"))

	return &Service{
		store:      s,
		cards:      cards,
		invoker:    invoker,
		payments:   payments,
		clock:      clock,
		log:        log,
		opts:       opts.withDefaults(),
		tracer:     otel.Tracer("hireplane/scheduler"),
		dispatches: dispatches,
		recovered:  recovered,
	}
}

// WorkerID returns the lease identity of this runtime.
func (s *Service) WorkerID() string { return s.opts.WorkerID }

// resolveRetries picks the per-job retry ceiling. An explicit zero is valid
// and means "fail on the first error".
func (s *Service) resolveRetries(maxRetries *int) int {
	if maxRetries != nil && *maxRetries >= 0 {
		return *maxRetries
	}
	return s.opts.DefaultMaxRetries
}
