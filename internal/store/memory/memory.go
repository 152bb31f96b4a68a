// Package memory provides the reference in-memory store implementation.
// It is non-durable and process-lifetime only: suitable for tests and
// ephemeral deployments. Each instance owns independent state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/agent"
	"hireplane/internal/store"
)

type jobRecord struct {
	job *store.Job
	seq uint64 // insertion order, used to break NextRunAt ties
}

// Store is a mutex-guarded map store. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	hires map[uuid.UUID]*store.Hire
	jobs  map[uuid.UUID]*jobRecord
	seq   uint64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		hires: make(map[uuid.UUID]*store.Hire),
		jobs:  make(map[uuid.UUID]*jobRecord),
	}
}

// PutHire inserts or replaces a hire.
func (s *Store) PutHire(ctx context.Context, hire *store.Hire) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hires[hire.ID] = copyHire(hire)
	return nil
}

// GetHire returns a hire by ID, or store.ErrNotFound.
func (s *Store) GetHire(ctx context.Context, id uuid.UUID) (*store.Hire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hire, ok := s.hires[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyHire(hire), nil
}

// DeleteHire removes a hire. Deleting an absent hire is a no-op; the caller
// uses this only for best-effort rollback.
func (s *Store) DeleteHire(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hires, id)
	return nil
}

// PutJob inserts or replaces a job.
func (s *Store) PutJob(ctx context.Context, job *store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.jobs[job.ID]; ok {
		rec.job = copyJob(job)
		return nil
	}
	s.seq++
	s.jobs[job.ID] = &jobRecord{job: copyJob(job), seq: s.seq}
	return nil
}

// GetJob returns a job by ID, or store.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyJob(rec.job), nil
}

// ListJobs returns all jobs in insertion order.
func (s *Store) ListJobs(ctx context.Context) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*jobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	jobs := make([]*store.Job, len(recs))
	for i, rec := range recs {
		jobs[i] = copyJob(rec.job)
	}
	return jobs, nil
}

// DueJobs returns up to limit due pending jobs, earliest NextRunAt first,
// insertion order breaking ties.
func (s *Store) DueJobs(ctx context.Context, now time.Time, limit int) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*jobRecord
	for _, rec := range s.jobs {
		j := rec.job
		if j.Status != store.JobStatusPending {
			continue
		}
		if j.NextRunAt == nil || j.NextRunAt.After(now) {
			continue
		}
		if !j.Lease.Expired(now) {
			continue
		}
		due = append(due, rec)
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].job.NextRunAt, due[j].job.NextRunAt
		if a.Equal(*b) {
			return due[i].seq < due[j].seq
		}
		return a.Before(*b)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	jobs := make([]*store.Job, len(due))
	for i, rec := range due {
		jobs[i] = copyJob(rec.job)
	}
	return jobs, nil
}

// ClaimJob leases a claimable job for workerID. The whole check-and-set runs
// under the store mutex, which is what makes the claim atomic.
func (s *Store) ClaimJob(ctx context.Context, jobID uuid.UUID, workerID string, leaseDur time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	j := rec.job

	claimable := j.Status == store.JobStatusPending ||
		(j.Status == store.JobStatusLeased && j.Lease.Expired(now))
	if !claimable {
		return false, nil
	}

	j.Status = store.JobStatusLeased
	j.Lease = &store.Lease{WorkerID: workerID, ExpiresAt: now.Add(leaseDur)}
	j.UpdatedAt = now
	return true, nil
}

// ExpiredLeases returns jobs stuck in the leased state past their lease
// expiry, in insertion order.
func (s *Store) ExpiredLeases(ctx context.Context, now time.Time) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stuck []*jobRecord
	for _, rec := range s.jobs {
		j := rec.job
		if j.Status == store.JobStatusLeased && j.Lease.Expired(now) {
			stuck = append(stuck, rec)
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i].seq < stuck[j].seq })

	jobs := make([]*store.Job, len(stuck))
	for i, rec := range stuck {
		jobs[i] = copyJob(rec.job)
	}
	return jobs, nil
}

func copyHire(h *store.Hire) *store.Hire {
	out := *h
	if h.Metadata != nil {
		out.Metadata = make(map[string]string, len(h.Metadata))
		for k, v := range h.Metadata {
			out.Metadata[k] = v
		}
	}
	if h.Agent.CachedCard != nil {
		card := *h.Agent.CachedCard
		if card.Entrypoints != nil {
			card.Entrypoints = make(map[string]agent.Entrypoint, len(h.Agent.CachedCard.Entrypoints))
			for k, v := range h.Agent.CachedCard.Entrypoints {
				card.Entrypoints[k] = v
			}
		}
		out.Agent.CachedCard = &card
	}
	return &out
}

func copyJob(j *store.Job) *store.Job {
	out := *j
	if j.Input != nil {
		out.Input = append([]byte(nil), j.Input...)
	}
	if j.NextRunAt != nil {
		t := *j.NextRunAt
		out.NextRunAt = &t
	}
	if j.Lease != nil {
		lease := *j.Lease
		out.Lease = &lease
	}
	return &out
}
