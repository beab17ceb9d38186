package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mnemoslab/mnemo/internal/api/middleware"
	"github.com/mnemoslab/mnemo/internal/service"
)

func (h *MemoryHandler) Recall(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())

	var in service.RecallInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Recall(r.Context(), workspaceID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecallQueryEmpty),
			errors.Is(err, service.ErrInvalidRecallMode),
			errors.Is(err, service.ErrInvalidTolerance):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to recall memories")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MemoryHandler) Reflect(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())

	var in service.ReflectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Reflect(r.Context(), workspaceID, in)
	if err != nil {
		if errors.Is(err, service.ErrRecallQueryEmpty) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reflect")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
