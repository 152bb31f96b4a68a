package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"hireplane/internal/schedule"
	"hireplane/internal/scheduler"
	"hireplane/internal/store"
	"hireplane/pkg/api"
)

// CreateHire handles POST /hires.
// It binds an agent by its capability card and schedules the first job.
func (h *Handlers) CreateHire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateHireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.AgentCardURL == "" || req.EntrypointKey == "" {
		h.httpError(w, "agent_card_url and entrypoint_key are required", http.StatusBadRequest)
		return
	}

	hire, job, err := h.runtime.CreateHire(ctx, scheduler.CreateHireParams{
		AgentCardURL:   req.AgentCardURL,
		EntrypointKey:  req.EntrypointKey,
		Schedule:       toSchedule(req.Schedule),
		Input:          req.Input,
		WalletID:       req.WalletID,
		MaxRetries:     req.MaxRetries,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.hireError(w, err)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateHireResponse{
		HireID: hire.ID.String(),
		JobID:  job.ID.String(),
	})
}

// GetHire handles GET /hires/{id}.
func (h *Handlers) GetHire(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid hire id", http.StatusBadRequest)
		return
	}

	hire, err := h.store.GetHire(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Hire not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, hireResponse(hire))
}

// PauseHire handles POST /hires/{id}/pause.
func (h *Handlers) PauseHire(w http.ResponseWriter, r *http.Request) {
	h.hireOp(w, r, h.runtime.PauseHire)
}

// ResumeHire handles POST /hires/{id}/resume.
func (h *Handlers) ResumeHire(w http.ResponseWriter, r *http.Request) {
	h.hireOp(w, r, h.runtime.ResumeHire)
}

// CancelHire handles POST /hires/{id}/cancel.
func (h *Handlers) CancelHire(w http.ResponseWriter, r *http.Request) {
	h.hireOp(w, r, h.runtime.CancelHire)
}

func (h *Handlers) hireOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (scheduler.OpResult, error)) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid hire id", http.StatusBadRequest)
		return
	}

	res, err := op(r.Context(), id)
	if err != nil {
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}
	h.respondOp(w, res)
}

// hireError maps CreateHire/AddJob failures onto HTTP statuses.
func (h *Handlers) hireError(w http.ResponseWriter, err error) {
	var invalid *schedule.InvalidError
	var noEntrypoint *scheduler.EntrypointNotFoundError
	var noHire *scheduler.HireNotFoundError
	var canceled *scheduler.HireCanceledError
	var badCard *scheduler.CardFetchError

	switch {
	case errors.As(err, &invalid):
		h.httpError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &noEntrypoint):
		h.httpError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &noHire):
		h.httpError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &canceled):
		h.httpError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &badCard):
		h.httpError(w, err.Error(), http.StatusBadGateway)
	default:
		h.httpError(w, "Internal error", http.StatusInternalServerError)
	}
}
