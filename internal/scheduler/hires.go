package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/agent"
	"hireplane/internal/schedule"
	"hireplane/internal/store"
)

// CreateHireParams are the inputs to CreateHire. Schedule and EntrypointKey
// describe the hire's first job; a hire with zero jobs is not a valid steady
// state.
type CreateHireParams struct {
	AgentCardURL   string
	EntrypointKey  string
	Schedule       schedule.Schedule
	Input          json.RawMessage
	WalletID       string
	MaxRetries     *int
	IdempotencyKey string
	Metadata       map[string]string
}

// AddJobParams are the inputs to AddJob.
type AddJobParams struct {
	EntrypointKey  string
	Schedule       schedule.Schedule
	Input          json.RawMessage
	MaxRetries     *int
	IdempotencyKey string
}

// CreateHire validates the schedule, fetches the agent's capability card,
// verifies the entrypoint, and persists a new active hire with its first
// pending job. If the job fails to persist the hire is rolled back
// best-effort.
func (s *Service) CreateHire(ctx context.Context, p CreateHireParams) (*store.Hire, *store.Job, error) {
	// Fail fast before any I/O side effect beyond the card fetch.
	if err := schedule.Validate(p.Schedule); err != nil {
		return nil, nil, err
	}

	card, err := s.cards.FetchCard(ctx, p.AgentCardURL)
	if err != nil {
		return nil, nil, &CardFetchError{CardURL: p.AgentCardURL, Err: err}
	}
	if !card.HasEntrypoint(p.EntrypointKey) {
		return nil, nil, &EntrypointNotFoundError{EntrypointKey: p.EntrypointKey, CardURL: p.AgentCardURL}
	}

	now := s.clock.Now()
	hire := &store.Hire{
		ID: uuid.New(),
		Agent: store.AgentRef{
			CardURL:    p.AgentCardURL,
			CachedCard: card,
			CachedAt:   now,
		},
		WalletID:  p.WalletID,
		Status:    store.HireStatusActive,
		Metadata:  p.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.PutHire(ctx, hire); err != nil {
		return nil, nil, fmt.Errorf("failed to persist hire: %w", err)
	}

	job, err := s.newJob(hire.ID, p.EntrypointKey, p.Schedule, p.Input, p.MaxRetries, p.IdempotencyKey, now)
	if err == nil {
		err = s.store.PutJob(ctx, job)
	}
	if err != nil {
		// A hire without jobs must not survive; roll back when the store
		// supports deletion.
		if deleter, ok := s.store.(store.HireDeleter); ok {
			if delErr := deleter.DeleteHire(ctx, hire.ID); delErr != nil {
				s.log.Warn("hire rollback failed",
					slog.String("hire_id", hire.ID.String()),
					slog.String("err", delErr.Error()))
			}
		}
		return nil, nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.log.Info("hire created",
		slog.String("hire_id", hire.ID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("entrypoint", p.EntrypointKey),
		slog.String("schedule", string(p.Schedule.Kind)))

	return hire, job, nil
}

// AddJob attaches another job to an existing hire. Paused hires still accept
// jobs; canceled hires do not.
func (s *Service) AddJob(ctx context.Context, hireID uuid.UUID, p AddJobParams) (*store.Job, error) {
	if err := schedule.Validate(p.Schedule); err != nil {
		return nil, err
	}

	hire, err := s.store.GetHire(ctx, hireID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &HireNotFoundError{HireID: hireID}
	}
	if err != nil {
		return nil, err
	}
	if hire.Status == store.HireStatusCanceled {
		return nil, &HireCanceledError{HireID: hireID}
	}

	card, err := s.freshCard(ctx, hire)
	if err != nil {
		return nil, err
	}
	if !card.HasEntrypoint(p.EntrypointKey) {
		return nil, &EntrypointNotFoundError{EntrypointKey: p.EntrypointKey, CardURL: hire.Agent.CardURL}
	}

	now := s.clock.Now()
	job, err := s.newJob(hireID, p.EntrypointKey, p.Schedule, p.Input, p.MaxRetries, p.IdempotencyKey, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.log.Info("job added",
		slog.String("hire_id", hireID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("entrypoint", p.EntrypointKey))

	return job, nil
}

func (s *Service) newJob(hireID uuid.UUID, key string, sched schedule.Schedule, input json.RawMessage, maxRetries *int, idempotencyKey string, now time.Time) (*store.Job, error) {
	nextRun, err := schedule.InitialNextRun(sched, now)
	if err != nil {
		return nil, err
	}
	return &store.Job{
		ID:             uuid.New(),
		HireID:         hireID,
		EntrypointKey:  key,
		Input:          input,
		Schedule:       sched,
		NextRunAt:      &nextRun,
		MaxRetries:     s.resolveRetries(maxRetries),
		Status:         store.JobStatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// freshCard returns the hire's cached card, refetching and re-caching it when
// the TTL has elapsed.
func (s *Service) freshCard(ctx context.Context, hire *store.Hire) (*agent.Card, error) {
	now := s.clock.Now()
	if hire.Agent.CachedCard != nil && now.Sub(hire.Agent.CachedAt) < s.opts.CardTTL {
		return hire.Agent.CachedCard, nil
	}

	card, err := s.cards.FetchCard(ctx, hire.Agent.CardURL)
	if err != nil {
		return nil, &CardFetchError{CardURL: hire.Agent.CardURL, Err: err}
	}

	hire.Agent.CachedCard = card
	hire.Agent.CachedAt = now
	hire.UpdatedAt = now
	if err := s.store.PutHire(ctx, hire); err != nil {
		// The fetched card is still usable this tick; persisting the cache is
		// an optimization.
		s.log.Warn("failed to persist refreshed card",
			slog.String("hire_id", hire.ID.String()),
			slog.String("err", err.Error()))
	}
	return card, nil
}

// OpResult reports the outcome of a lifecycle operation. Violated
// preconditions are values, not errors, so callers can surface state
// conflicts without exception-style control flow.
type OpResult struct {
	OK     bool
	Reason string
}

func opOK() OpResult           { return OpResult{OK: true} }
func opFail(r string) OpResult { return OpResult{Reason: r} }

// PauseHire transitions an active hire to paused.
func (s *Service) PauseHire(ctx context.Context, id uuid.UUID) (OpResult, error) {
	hire, err := s.store.GetHire(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return opFail("hire not found"), nil
	}
	if err != nil {
		return OpResult{}, err
	}

	switch hire.Status {
	case store.HireStatusPaused:
		return opFail("hire already paused"), nil
	case store.HireStatusCanceled:
		return opFail("hire is canceled"), nil
	}

	hire.Status = store.HireStatusPaused
	hire.UpdatedAt = s.clock.Now()
	if err := s.store.PutHire(ctx, hire); err != nil {
		return OpResult{}, err
	}
	s.log.Info("hire paused", slog.String("hire_id", id.String()))
	return opOK(), nil
}

// ResumeHire transitions a paused hire back to active.
func (s *Service) ResumeHire(ctx context.Context, id uuid.UUID) (OpResult, error) {
	hire, err := s.store.GetHire(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return opFail("hire not found"), nil
	}
	if err != nil {
		return OpResult{}, err
	}

	switch hire.Status {
	case store.HireStatusActive:
		return opFail("hire is not paused"), nil
	case store.HireStatusCanceled:
		return opFail("hire is canceled"), nil
	}

	hire.Status = store.HireStatusActive
	hire.UpdatedAt = s.clock.Now()
	if err := s.store.PutHire(ctx, hire); err != nil {
		return OpResult{}, err
	}
	s.log.Info("hire resumed", slog.String("hire_id", id.String()))
	return opOK(), nil
}

// CancelHire transitions a hire to canceled. Terminal: jobs under the hire
// are administratively failed by the next tick that observes them, and no
// in-flight invocation is aborted.
func (s *Service) CancelHire(ctx context.Context, id uuid.UUID) (OpResult, error) {
	hire, err := s.store.GetHire(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return opFail("hire not found"), nil
	}
	if err != nil {
		return OpResult{}, err
	}

	if hire.Status == store.HireStatusCanceled {
		return opFail("hire already canceled"), nil
	}

	hire.Status = store.HireStatusCanceled
	hire.UpdatedAt = s.clock.Now()
	if err := s.store.PutHire(ctx, hire); err != nil {
		return OpResult{}, err
	}
	s.log.Info("hire canceled", slog.String("hire_id", id.String()))
	return opOK(), nil
}

// PauseJob transitions a job to paused and clears its lease.
func (s *Service) PauseJob(ctx context.Context, id uuid.UUID) (OpResult, error) {
	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return opFail("job not found"), nil
	}
	if err != nil {
		return OpResult{}, err
	}

	switch job.Status {
	case store.JobStatusCompleted, store.JobStatusFailed:
		return opFail(fmt.Sprintf("job is %s", job.Status)), nil
	case store.JobStatusPaused:
		return opFail("job already paused"), nil
	}

	job.Status = store.JobStatusPaused
	job.Lease = nil
	job.UpdatedAt = s.clock.Now()
	if err := s.store.PutJob(ctx, job); err != nil {
		return OpResult{}, err
	}
	s.log.Info("job paused", slog.String("job_id", id.String()))
	return opOK(), nil
}

// ResumeJob transitions a paused job back to pending. A zero nextRunAt means
// "now".
func (s *Service) ResumeJob(ctx context.Context, id uuid.UUID, nextRunAt time.Time) (OpResult, error) {
	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return opFail("job not found"), nil
	}
	if err != nil {
		return OpResult{}, err
	}

	switch job.Status {
	case store.JobStatusCompleted, store.JobStatusFailed:
		return opFail(fmt.Sprintf("job is %s", job.Status)), nil
	case store.JobStatusPending, store.JobStatusLeased:
		return opFail("job is not paused"), nil
	}

	if nextRunAt.IsZero() {
		nextRunAt = s.clock.Now()
	}
	job.Status = store.JobStatusPending
	job.NextRunAt = &nextRunAt
	job.UpdatedAt = s.clock.Now()
	if err := s.store.PutJob(ctx, job); err != nil {
		return OpResult{}, err
	}
	s.log.Info("job resumed",
		slog.String("job_id", id.String()),
		slog.Time("next_run_at", nextRunAt))
	return opOK(), nil
}
