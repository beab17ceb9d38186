package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mnemoslab/mnemo/internal/service"
)

type WorkspaceHandler struct {
	svc *service.WorkspaceService
}

func NewWorkspaceHandler(svc *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc}
}

type createWorkspaceRequest struct {
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings,omitempty"`
}

func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ws, err := h.svc.CreateWorkspace(r.Context(), req.Name, req.Settings)
	if err != nil {
		if errors.Is(err, service.ErrWorkspaceExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create workspace")
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (h *WorkspaceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.GetWorkspace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrWorkspaceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get workspace")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

type createContextRequest struct {
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings,omitempty"`
}

func (h *WorkspaceHandler) CreateContext(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "id")

	var req createContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := h.svc.CreateContext(r.Context(), workspaceID, req.Name, req.Settings)
	if err != nil {
		if errors.Is(err, service.ErrWorkspaceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create context")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *WorkspaceHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "id")
	contextID := r.URL.Query().Get("context_id")

	settings, err := h.svc.GetEffectiveSettings(r.Context(), workspaceID, contextID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWorkspaceNotFound),
			errors.Is(err, service.ErrContextNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to get settings")
		}
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
