package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a hire or job does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract the scheduler runtime depends on.
//
// Implementations must return independent copies: mutating a returned hire or
// job never affects stored state, and vice versa.
//
// PutHire/PutJob are last-write-wins for concurrent writers of the same
// record. Per-job mutual exclusion does not rely on them; it rests entirely
// on ClaimJob's atomicity.
type Store interface {
	// PutHire inserts or replaces a hire.
	PutHire(ctx context.Context, hire *Hire) error

	// GetHire returns a hire by ID, or ErrNotFound.
	GetHire(ctx context.Context, id uuid.UUID) (*Hire, error)

	// PutJob inserts or replaces a job.
	PutJob(ctx context.Context, job *Job) error

	// GetJob returns a job by ID, or ErrNotFound.
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)

	// ListJobs returns all jobs. Diagnostic and testing use.
	ListJobs(ctx context.Context) ([]*Job, error)

	// DueJobs returns up to limit pending jobs whose NextRunAt has passed and
	// whose lease (if any) has expired as of now, ordered earliest-due first.
	// The ordering is a fairness guarantee.
	DueJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// ClaimJob atomically leases a pending job (or a leased job whose lease
	// has expired as of now) for the given worker and returns true. It
	// returns false without mutating anything when the job does not exist,
	// is not claimable, or already holds a live lease. This is the sole
	// mutual-exclusion point in the system.
	ClaimJob(ctx context.Context, jobID uuid.UUID, workerID string, leaseDur time.Duration, now time.Time) (bool, error)
}

// LeaseRecoverer is an optional store capability used for crash recovery.
// The runtime degrades gracefully when a store does not implement it.
type LeaseRecoverer interface {
	// ExpiredLeases returns jobs stuck in the leased state whose lease has
	// expired as of now.
	ExpiredLeases(ctx context.Context, now time.Time) ([]*Job, error)
}

// HireDeleter is an optional store capability, used only to roll back a hire
// whose first job failed to persist.
type HireDeleter interface {
	DeleteHire(ctx context.Context, id uuid.UUID) error
}
