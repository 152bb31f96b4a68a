// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/schedule"
	"hireplane/internal/scheduler"
	"hireplane/internal/store"
	"hireplane/pkg/api"
)

// Runtime is the slice of the scheduler the controller exposes over HTTP.
type Runtime interface {
	CreateHire(ctx context.Context, p scheduler.CreateHireParams) (*store.Hire, *store.Job, error)
	AddJob(ctx context.Context, hireID uuid.UUID, p scheduler.AddJobParams) (*store.Job, error)
	PauseHire(ctx context.Context, id uuid.UUID) (scheduler.OpResult, error)
	ResumeHire(ctx context.Context, id uuid.UUID) (scheduler.OpResult, error)
	CancelHire(ctx context.Context, id uuid.UUID) (scheduler.OpResult, error)
	PauseJob(ctx context.Context, id uuid.UUID) (scheduler.OpResult, error)
	ResumeJob(ctx context.Context, id uuid.UUID, nextRunAt time.Time) (scheduler.OpResult, error)
	Tick(ctx context.Context) (scheduler.TickStats, error)
	RecoverExpiredLeases(ctx context.Context) (int, error)
}

// Pinger reports store connectivity for the readiness probe. Stores without
// a meaningful health check (the in-memory one) pass nil.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	runtime Runtime
	store   store.Store
	pinger  Pinger
}

// New creates a new Handlers instance. pinger may be nil.
func New(runtime Runtime, s store.Store, pinger Pinger) *Handlers {
	return &Handlers{runtime: runtime, store: s, pinger: pinger}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// respondOp maps a lifecycle OpResult onto HTTP: 200 for applied transitions,
// 404 when the target does not exist, 409 for any other unmet precondition.
func (h *Handlers) respondOp(w http.ResponseWriter, res scheduler.OpResult) {
	status := http.StatusOK
	if !res.OK {
		switch res.Reason {
		case "hire not found", "job not found":
			status = http.StatusNotFound
		default:
			status = http.StatusConflict
		}
	}
	h.respondJson(w, status, api.OpResponse{OK: res.OK, Reason: res.Reason})
}

func toSchedule(spec api.ScheduleSpec) schedule.Schedule {
	s := schedule.Schedule{
		Kind:       schedule.Kind(spec.Kind),
		Expression: spec.Expression,
		Timezone:   spec.Timezone,
		Every:      time.Duration(spec.EveryMS) * time.Millisecond,
	}
	if spec.At != nil {
		s.At = *spec.At
	}
	return s
}

func fromSchedule(s schedule.Schedule) api.ScheduleSpec {
	spec := api.ScheduleSpec{Kind: string(s.Kind)}
	switch s.Kind {
	case schedule.KindOnce:
		at := s.At
		spec.At = &at
	case schedule.KindInterval:
		spec.EveryMS = s.Every.Milliseconds()
	case schedule.KindCron:
		spec.Expression = s.Expression
		spec.Timezone = s.Timezone
	}
	return spec
}

func hireResponse(hire *store.Hire) api.HireResponse {
	resp := api.HireResponse{
		ID:           hire.ID.String(),
		AgentCardURL: hire.Agent.CardURL,
		WalletID:     hire.WalletID,
		Status:       string(hire.Status),
		Metadata:     hire.Metadata,
		CreatedAt:    hire.CreatedAt,
		UpdatedAt:    hire.UpdatedAt,
	}
	if hire.Agent.CachedCard != nil {
		resp.AgentName = hire.Agent.CachedCard.Name
	}
	return resp
}

func jobResponse(job *store.Job) api.JobResponse {
	return api.JobResponse{
		ID:            job.ID.String(),
		HireID:        job.HireID.String(),
		EntrypointKey: job.EntrypointKey,
		Schedule:      fromSchedule(job.Schedule),
		Status:        string(job.Status),
		NextRunAt:     job.NextRunAt,
		Attempts:      job.Attempts,
		MaxRetries:    job.MaxRetries,
		LastError:     job.LastError,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}
