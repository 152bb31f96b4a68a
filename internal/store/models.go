// Package store contains the persistence layer for hireplane.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/agent"
	"hireplane/internal/schedule"
)

// HireStatus represents the lifecycle state of a hire.
type HireStatus string

const (
	HireStatusActive   HireStatus = "active"
	HireStatusPaused   HireStatus = "paused"
	HireStatusCanceled HireStatus = "canceled"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusLeased    JobStatus = "leased"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AgentRef binds a hire to its remote agent: the card URL plus the cached
// capability card and when it was fetched. A cached card older than the
// configured TTL must be refreshed before use.
type AgentRef struct {
	CardURL    string
	CachedCard *agent.Card
	CachedAt   time.Time
}

// Hire represents an ongoing relationship with one remote agent. A hire owns
// one or more jobs; a hire with zero jobs is not a valid steady state.
type Hire struct {
	ID       uuid.UUID
	Agent    AgentRef
	WalletID string // opaque reference to a payment-capable identity, may be empty
	Status   HireStatus
	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lease is a time-bounded exclusive claim on a job by one worker.
type Lease struct {
	WorkerID  string
	ExpiresAt time.Time
}

// Expired reports whether the lease has lapsed as of now.
func (l *Lease) Expired(now time.Time) bool {
	return l == nil || !l.ExpiresAt.After(now)
}

// Job represents one schedule of invocations against one hire.
type Job struct {
	ID            uuid.UUID
	HireID        uuid.UUID
	EntrypointKey string
	Input         json.RawMessage
	Schedule      schedule.Schedule

	// NextRunAt is nil only once a one-shot job has completed.
	NextRunAt *time.Time

	// Attempts counts failures since the last success; reset to 0 on success.
	Attempts   int
	MaxRetries int
	LastError  string

	Status JobStatus

	// Lease is present only while Status is leased.
	Lease *Lease

	// IdempotencyKey is caller-supplied and opaque to the scheduler.
	IdempotencyKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}
