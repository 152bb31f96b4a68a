// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import (
	"encoding/json"
	"time"
)

// ScheduleSpec is the wire form of a job schedule. Kind selects the variant;
// only the fields belonging to it are read.
type ScheduleSpec struct {
	Kind       string     `json:"kind"`
	At         *time.Time `json:"at,omitempty"`
	EveryMS    int64      `json:"every_ms,omitempty"`
	Expression string     `json:"expression,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
}

// CreateHireRequest is the request body for hiring an agent.
type CreateHireRequest struct {
	AgentCardURL   string            `json:"agent_card_url"`
	EntrypointKey  string            `json:"entrypoint_key"`
	Schedule       ScheduleSpec      `json:"schedule"`
	Input          json.RawMessage   `json:"input,omitempty"`
	WalletID       string            `json:"wallet_id,omitempty"`
	MaxRetries     *int              `json:"max_retries,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// CreateHireResponse is the response body after hiring an agent.
type CreateHireResponse struct {
	HireID string `json:"hire_id"`
	JobID  string `json:"job_id"`
}

// AddJobRequest is the request body for attaching a job to a hire.
type AddJobRequest struct {
	EntrypointKey  string          `json:"entrypoint_key"`
	Schedule       ScheduleSpec    `json:"schedule"`
	Input          json.RawMessage `json:"input,omitempty"`
	MaxRetries     *int            `json:"max_retries,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// AddJobResponse is the response body after attaching a job.
type AddJobResponse struct {
	JobID string `json:"job_id"`
}

// HireResponse represents a hire in API responses.
type HireResponse struct {
	ID           string            `json:"id"`
	AgentCardURL string            `json:"agent_card_url"`
	AgentName    string            `json:"agent_name,omitempty"`
	WalletID     string            `json:"wallet_id,omitempty"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID            string       `json:"id"`
	HireID        string       `json:"hire_id"`
	EntrypointKey string       `json:"entrypoint_key"`
	Schedule      ScheduleSpec `json:"schedule"`
	Status        string       `json:"status"`
	NextRunAt     *time.Time   `json:"next_run_at,omitempty"`
	Attempts      int          `json:"attempts"`
	MaxRetries    int          `json:"max_retries"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ResumeJobRequest is the request body for resuming a paused job. A nil
// NextRunAt resumes the job immediately.
type ResumeJobRequest struct {
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// OpResponse is the response body for lifecycle operations (pause, resume,
// cancel). OK false means a precondition was not met; Reason says which.
type OpResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// TickResponse is the response body for a manually triggered dispatch pass.
type TickResponse struct {
	Due       int `json:"due"`
	Claimed   int `json:"claimed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// RecoverResponse is the response body for a manually triggered lease sweep.
type RecoverResponse struct {
	Recovered int `json:"recovered"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
