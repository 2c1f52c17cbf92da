package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/fleet/internal/api/request"
	"github.com/edvin/fleet/internal/api/response"
	"github.com/edvin/fleet/internal/core"
	"github.com/edvin/fleet/internal/model"
	"github.com/edvin/fleet/internal/platform"
)

type CleanupTask struct {
	svc *core.CleanupTaskService
}

func NewCleanupTask(svc *core.CleanupTaskService) *CleanupTask {
	return &CleanupTask{svc: svc}
}

func (h *CleanupTask) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, tasks)
}

func (h *CleanupTask) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateCleanupTask
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	task := &model.CleanupTask{
		ID:             platform.NewName("task_"),
		Name:           req.Name,
		Description:    req.Description,
		ScheduleTime:   req.ScheduleTime,
		IsEnabled:      true,
		Operations:     req.Operations,
		TargetGroupIDs: req.TargetGroupIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.IsEnabled != nil {
		task.IsEnabled = *req.IsEnabled
	}

	if err := h.svc.Create(r.Context(), task); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, task)
}

func (h *CleanupTask) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, task)
}

func (h *CleanupTask) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateCleanupTask
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Name != nil {
		task.Name = *req.Name
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.ScheduleTime != "" {
		task.ScheduleTime = req.ScheduleTime
	}
	if req.Operations != nil {
		task.Operations = req.Operations
	}
	if req.TargetGroupIDs != nil {
		task.TargetGroupIDs = req.TargetGroupIDs
	}

	if err := h.svc.Update(r.Context(), task); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, task)
}

func (h *CleanupTask) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Toggle flips is_enabled. Enabling recomputes next_run from now; disabling
// clears it so the scheduler never picks the task up.
func (h *CleanupTask) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.svc.Toggle(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, task)
}

// Execute runs the task immediately, outside its schedule.
func (h *CleanupTask) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, affected, err := h.svc.ExecuteByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"task":               task,
		"resources_affected": affected,
	})
}
