package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/scheduler"
	"hireplane/internal/store"
	"hireplane/pkg/api"
)

// AddJob handles POST /hires/{id}/jobs.
// It attaches another scheduled job to an existing hire.
func (h *Handlers) AddJob(w http.ResponseWriter, r *http.Request) {
	hireID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid hire id", http.StatusBadRequest)
		return
	}

	var req api.AddJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EntrypointKey == "" {
		h.httpError(w, "entrypoint_key is required", http.StatusBadRequest)
		return
	}

	job, err := h.runtime.AddJob(r.Context(), hireID, scheduler.AddJobParams{
		EntrypointKey:  req.EntrypointKey,
		Schedule:       toSchedule(req.Schedule),
		Input:          req.Input,
		MaxRetries:     req.MaxRetries,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.hireError(w, err)
		return
	}

	h.respondJson(w, http.StatusCreated, api.AddJobResponse{JobID: job.ID.String()})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, jobResponse(job))
}

// ListJobs handles GET /jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context())
	if err != nil {
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}

	resp := make([]api.JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, jobResponse(job))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// PauseJob handles POST /jobs/{id}/pause.
func (h *Handlers) PauseJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	res, err := h.runtime.PauseJob(r.Context(), id)
	if err != nil {
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}
	h.respondOp(w, res)
}

// ResumeJob handles POST /jobs/{id}/resume.
// An empty body or omitted next_run_at resumes the job immediately.
func (h *Handlers) ResumeJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	var req api.ResumeJobRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.httpError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	var nextRunAt time.Time
	if req.NextRunAt != nil {
		nextRunAt = *req.NextRunAt
	}

	res, err := h.runtime.ResumeJob(r.Context(), id, nextRunAt)
	if err != nil {
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}
	h.respondOp(w, res)
}

// InternalTick handles POST /internal/tick.
// It runs one dispatch pass synchronously, mainly for tests and operations.
func (h *Handlers) InternalTick(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runtime.Tick(r.Context())
	if err != nil {
		h.httpError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.TickResponse{
		Due:       stats.Due,
		Claimed:   stats.Claimed,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Deferred:  stats.Deferred,
	})
}

// InternalRecover handles POST /internal/recover.
// It sweeps expired leases back to pending.
func (h *Handlers) InternalRecover(w http.ResponseWriter, r *http.Request) {
	n, err := h.runtime.RecoverExpiredLeases(r.Context())
	if err != nil {
		h.httpError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.RecoverResponse{Recovered: n})
}
