package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mnemoslab/mnemo/internal/api/middleware"
	"github.com/mnemoslab/mnemo/internal/service"
)

type MemoryHandler struct {
	svc *service.MemoryService
}

func NewMemoryHandler(svc *service.MemoryService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

func (h *MemoryHandler) Remember(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())

	var in service.RememberInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Remember(r.Context(), workspaceID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContentEmpty),
			errors.Is(err, service.ErrWorkspaceIDMissing),
			errors.Is(err, service.ErrInvalidMemoryType):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to store memory")
		}
		return
	}

	status := http.StatusCreated
	if result.Action == service.ActionSkip || result.Action == service.ActionUpdate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *MemoryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())
	id := chi.URLParam(r, "id")

	memory, err := h.svc.Get(r.Context(), workspaceID, id)
	if err != nil {
		if errors.Is(err, service.ErrMemoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get memory")
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

type forgetResponse struct {
	Forgotten bool `json:"forgotten"`
}

func (h *MemoryHandler) Forget(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())
	id := chi.URLParam(r, "id")
	hard, _ := strconv.ParseBool(r.URL.Query().Get("hard"))

	if err := h.svc.Forget(r.Context(), workspaceID, id, hard); err != nil {
		if errors.Is(err, service.ErrMemoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to forget memory")
		return
	}
	writeJSON(w, http.StatusOK, forgetResponse{Forgotten: true})
}

type decayRequest struct {
	DecayRate float64 `json:"decay_rate"`
}

func (h *MemoryHandler) Decay(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req decayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DecayRate < 0 {
		writeError(w, http.StatusBadRequest, "decay_rate must be non-negative")
		return
	}

	memory, err := h.svc.DecayMemory(r.Context(), workspaceID, id, req.DecayRate)
	if err != nil {
		if errors.Is(err, service.ErrMemoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to decay memory")
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

type batchRequest struct {
	Operations []service.BatchOperation `json:"operations"`
}

func (h *MemoryHandler) Batch(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Operations) == 0 {
		writeError(w, http.StatusBadRequest, "operations are required")
		return
	}

	result, err := h.svc.Batch(r.Context(), workspaceID, req.Operations)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to apply batch")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
