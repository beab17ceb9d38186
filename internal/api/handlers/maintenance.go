package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/service"
)

type MaintenanceHandler struct {
	decay     *service.DecayService
	scheduler domain.TaskScheduler
}

func NewMaintenanceHandler(decay *service.DecayService, scheduler domain.TaskScheduler) *MaintenanceHandler {
	return &MaintenanceHandler{decay: decay, scheduler: scheduler}
}

// TriggerDecayPass runs the maintenance pass synchronously, outside its
// recurring schedule.
func (h *MaintenanceHandler) TriggerDecayPass(w http.ResponseWriter, r *http.Request) {
	result, err := h.decay.RunPass(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "decay pass failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type taskStatusResponse struct {
	ID    string           `json:"id"`
	State domain.TaskState `json:"state"`
}

func (h *MaintenanceHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state := h.scheduler.GetTaskStatus(id)
	if state == domain.TaskNotFound {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, taskStatusResponse{ID: id, State: state})
}
