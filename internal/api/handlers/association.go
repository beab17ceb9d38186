package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mnemoslab/mnemo/internal/api/middleware"
	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/service"
)

type AssociationHandler struct {
	svc *service.AssociationService
}

func NewAssociationHandler(svc *service.AssociationService) *AssociationHandler {
	return &AssociationHandler{svc: svc}
}

type associateRequest struct {
	SourceID     string         `json:"source_id"`
	TargetID     string         `json:"target_id"`
	Relationship string         `json:"relationship"`
	Strength     float64        `json:"strength,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (h *AssociationHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())

	var req associateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	assoc, err := h.svc.Associate(r.Context(), service.AssociateInput{
		WorkspaceID:  workspaceID,
		SourceID:     req.SourceID,
		TargetID:     req.TargetID,
		Relationship: req.Relationship,
		Strength:     req.Strength,
		Metadata:     req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfAssociation),
			errors.Is(err, service.ErrUnknownRelationship):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMemoryNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAssociationExists):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create association")
		}
		return
	}
	writeJSON(w, http.StatusCreated, assoc)
}

func (h *AssociationHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())
	startID := chi.URLParam(r, "id")
	q := r.URL.Query()

	in := service.TraverseInput{
		WorkspaceID: workspaceID,
		StartID:     startID,
		MaxDepth:    service.DefaultTraverseDepth,
		MinStrength: service.DefaultMinEdgeStrength,
		Direction:   domain.Direction(q.Get("direction")),
	}
	if depthStr := q.Get("max_depth"); depthStr != "" {
		depth, err := strconv.Atoi(depthStr)
		if err != nil || depth < 0 {
			writeError(w, http.StatusBadRequest, "invalid max_depth parameter")
			return
		}
		in.MaxDepth = depth
	}
	if minStr := q.Get("min_strength"); minStr != "" {
		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil || min < 0 || min > 1 {
			writeError(w, http.StatusBadRequest, "invalid min_strength parameter")
			return
		}
		in.MinStrength = min
	}
	if types, ok := q["relationship_type"]; ok {
		in.RelationshipTypes = types
	}

	result, err := h.svc.Traverse(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDirection):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMemoryNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to traverse graph")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AssociationHandler) CausalChain(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())
	id := chi.URLParam(r, "id")

	maxDepth := 0
	if depthStr := r.URL.Query().Get("max_depth"); depthStr != "" {
		depth, err := strconv.Atoi(depthStr)
		if err != nil || depth < 0 {
			writeError(w, http.StatusBadRequest, "invalid max_depth parameter")
			return
		}
		maxDepth = depth
	}

	result, err := h.svc.GetCausalChain(r.Context(), workspaceID, id, maxDepth)
	if err != nil {
		if errors.Is(err, service.ErrMemoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to walk causal chain")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type solutionsResponse struct {
	Solutions []string `json:"solutions"`
}

func (h *AssociationHandler) Solutions(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())
	id := chi.URLParam(r, "id")

	solutions, err := h.svc.GetSolutionsForProblem(r.Context(), workspaceID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to find solutions")
		return
	}
	if solutions == nil {
		solutions = []string{}
	}
	writeJSON(w, http.StatusOK, solutionsResponse{Solutions: solutions})
}

func (h *AssociationHandler) Contradictions(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.WorkspaceFromContext(r.Context())
	id := chi.URLParam(r, "id")

	result, err := h.svc.FindContradictions(r.Context(), workspaceID, id)
	if err != nil {
		if errors.Is(err, service.ErrMemoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to find contradictions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
