package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"hireplane/internal/agent"
	"hireplane/internal/schedule"
	"hireplane/internal/store"
)

// TickStats summarizes one pass of the dispatch loop.
type TickStats struct {
	Due       int `json:"due"`
	Claimed   int `json:"claimed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// Tick runs one pass of the dispatch loop: fetch due jobs, claim each one,
// invoke its entrypoint, and apply the resulting transition. Per-job failures
// are recorded on the job, never returned; Tick only returns an error when
// the batch itself cannot be fetched, so the worker loop can log it and keep
// ticking.
func (s *Service) Tick(ctx context.Context) (TickStats, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	now := s.clock.Now()
	due, err := s.store.DueJobs(ctx, now, s.opts.MaxDueBatch)
	if err != nil {
		span.RecordError(err)
		return TickStats{}, fmt.Errorf("due jobs query failed: %w", err)
	}

	stats := TickStats{Due: len(due)}
	if len(due) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	// Chunks run sequentially, jobs within a chunk concurrently. This bounds
	// simultaneous outbound invocations without starving later jobs.
	for start := 0; start < len(due); start += s.opts.Concurrency {
		end := start + s.opts.Concurrency
		if end > len(due) {
			end = len(due)
		}

		var wg sync.WaitGroup
		for _, job := range due[start:end] {
			wg.Add(1)
			go func(job *store.Job) {
				defer wg.Done()
				outcome := s.dispatch(ctx, job, now)
				mu.Lock()
				switch outcome {
				case outcomeSkipped:
				case outcomeSucceeded:
					stats.Claimed++
					stats.Succeeded++
				case outcomeFailed:
					stats.Claimed++
					stats.Failed++
				case outcomeDeferred:
					stats.Claimed++
					stats.Deferred++
				}
				mu.Unlock()
			}(job)
		}
		wg.Wait()
	}

	if stats.Claimed > 0 {
		s.log.Info("tick complete",
			slog.Int("due", stats.Due),
			slog.Int("claimed", stats.Claimed),
			slog.Int("succeeded", stats.Succeeded),
			slog.Int("failed", stats.Failed),
			slog.Int("deferred", stats.Deferred))
	}
	return stats, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
	outcomeDeferred
)

// dispatch processes one due job end to end.
func (s *Service) dispatch(ctx context.Context, due *store.Job, now time.Time) outcome {
	log := s.log.With(slog.String("job_id", due.ID.String()))

	claimed, err := s.store.ClaimJob(ctx, due.ID, s.opts.WorkerID, s.opts.LeaseDuration, now)
	if err != nil {
		log.Error("claim failed", slog.String("err", err.Error()))
		return outcomeSkipped
	}
	if !claimed {
		// Another worker won the race, or the job is no longer eligible.
		return outcomeSkipped
	}

	ctx, span := s.tracer.Start(ctx, "scheduler.dispatch",
		trace.WithAttributes(
			attribute.String("job.id", due.ID.String()),
			attribute.String("hire.id", due.HireID.String()),
			attribute.String("job.entrypoint", due.EntrypointKey),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	// Reload: the claim mutated the stored job and the due snapshot is stale.
	job, err := s.store.GetJob(ctx, due.ID)
	if err != nil {
		log.Error("failed to reload claimed job", slog.String("err", err.Error()))
		return outcomeSkipped
	}

	hire, err := s.store.GetHire(ctx, job.HireID)
	if errors.Is(err, store.ErrNotFound) {
		// Data-integrity fault; retrying cannot fix it.
		s.failJob(ctx, job, "hire missing", now, log)
		return outcomeFailed
	}
	if err != nil {
		log.Error("failed to load hire", slog.String("err", err.Error()))
		s.recordDispatch(ctx, "store_error")
		return outcomeSkipped
	}

	switch hire.Status {
	case store.HireStatusCanceled:
		// Cancellation is intentional and terminal, not retried.
		s.failJob(ctx, job, "hire canceled", now, log)
		return outcomeFailed

	case store.HireStatusPaused:
		// Pausing is not a failure: defer without consuming an attempt.
		job.Status = store.JobStatusPending
		job.Lease = nil
		next := now.Add(s.opts.LeaseDuration)
		job.NextRunAt = &next
		job.UpdatedAt = now
		if err := s.store.PutJob(ctx, job); err != nil {
			log.Error("failed to defer job", slog.String("err", err.Error()))
		}
		s.recordDispatch(ctx, "deferred")
		return outcomeDeferred
	}

	card, err := s.freshCard(ctx, hire)
	if err != nil {
		// The card endpoint being unreachable looks the same as the agent
		// being down: transient, retried with backoff.
		s.retryOrFail(ctx, job, err.Error(), now, log)
		return outcomeFailed
	}
	if !card.HasEntrypoint(job.EntrypointKey) {
		// Configuration fault: the agent no longer advertises this
		// capability. Retrying cannot fix it.
		s.failJob(ctx, job, fmt.Sprintf("entrypoint %q not found on agent card", job.EntrypointKey), now, log)
		return outcomeFailed
	}

	result, err := s.invoke(ctx, hire, card, job)
	if err != nil {
		s.retryOrFail(ctx, job, err.Error(), now, log)
		return outcomeFailed
	}

	// Remote-side business errors arrive as result values; they do not feed
	// the retry machinery.
	s.completeRun(ctx, job, now, log)
	span.SetAttributes(attribute.String("invoke.status", result.Status))
	return outcomeSucceeded
}

// invoke calls the entrypoint, attaching a payment transport when the hire
// has a wallet and a provider is configured.
func (s *Service) invoke(ctx context.Context, hire *store.Hire, card *agent.Card, job *store.Job) (*agent.InvokeResult, error) {
	var transport http.RoundTripper
	if s.payments != nil && hire.WalletID != "" {
		var err error
		transport, err = s.payments.TransportWithPayment(ctx, hire.WalletID, s.opts.PaymentNetwork)
		if err != nil {
			return nil, fmt.Errorf("payment transport unavailable: %w", err)
		}
	}
	return s.invoker.Invoke(ctx, card, job.EntrypointKey, job.Input, transport)
}

// completeRun applies the success transition: attempts reset, lease cleared,
// next run computed from the schedule or the job completed.
func (s *Service) completeRun(ctx context.Context, job *store.Job, now time.Time, log *slog.Logger) {
	job.Attempts = 0
	job.LastError = ""
	job.Lease = nil
	job.UpdatedAt = now

	next, err := schedule.NextRunAfterSuccess(job.Schedule, now)
	if err != nil {
		// Schedules are validated at creation; treat a failure here as
		// terminal corruption rather than looping forever.
		job.Status = store.JobStatusFailed
		job.LastError = err.Error()
	} else if next == nil {
		job.Status = store.JobStatusCompleted
		job.NextRunAt = nil
	} else {
		job.Status = store.JobStatusPending
		job.NextRunAt = next
	}

	if err := s.store.PutJob(ctx, job); err != nil {
		log.Error("failed to persist success transition", slog.String("err", err.Error()))
		return
	}
	s.recordDispatch(ctx, "succeeded")
	log.Info("job run succeeded", slog.String("status", string(job.Status)))
}

// retryOrFail applies the transient-failure transition: backoff and retry, or
// terminal failure once attempts exceed the ceiling.
func (s *Service) retryOrFail(ctx context.Context, job *store.Job, errMsg string, now time.Time, log *slog.Logger) {
	job.Attempts++
	job.LastError = errMsg
	job.Lease = nil
	job.UpdatedAt = now

	if job.Attempts > job.MaxRetries {
		job.Status = store.JobStatusFailed
		if err := s.store.PutJob(ctx, job); err != nil {
			log.Error("failed to persist job failure", slog.String("err", err.Error()))
			return
		}
		s.recordDispatch(ctx, "exhausted")
		log.Warn("job failed permanently",
			slog.Int("attempts", job.Attempts),
			slog.String("err", errMsg))
		return
	}

	backoff := schedule.Backoff(job.Attempts)
	next := now.Add(backoff)
	job.Status = store.JobStatusPending
	job.NextRunAt = &next

	if err := s.store.PutJob(ctx, job); err != nil {
		log.Error("failed to persist retry transition", slog.String("err", err.Error()))
		return
	}
	s.recordDispatch(ctx, "retried")
	log.Warn("job run failed, will retry",
		slog.Int("attempts", job.Attempts),
		slog.Duration("backoff", backoff),
		slog.String("err", errMsg))
}

// failJob applies an administrative (non-retryable) failure.
func (s *Service) failJob(ctx context.Context, job *store.Job, reason string, now time.Time, log *slog.Logger) {
	job.Status = store.JobStatusFailed
	job.LastError = reason
	job.Lease = nil
	job.UpdatedAt = now
	if err := s.store.PutJob(ctx, job); err != nil {
		log.Error("failed to persist administrative failure", slog.String("err", err.Error()))
		return
	}
	s.recordDispatch(ctx, "administrative")
	log.Warn("job failed administratively", slog.String("reason", reason))
}

func (s *Service) recordDispatch(ctx context.Context, result string) {
	s.dispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
