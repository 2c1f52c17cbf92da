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

type TargetGroup struct {
	svc *core.TargetGroupService
}

func NewTargetGroup(svc *core.TargetGroupService) *TargetGroup {
	return &TargetGroup{svc: svc}
}

func (h *TargetGroup) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	groups, hasMore, err := h.svc.List(r.Context(), p.Limit, p.Cursor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	nextCursor := ""
	if hasMore && len(groups) > 0 {
		nextCursor = groups[len(groups)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, groups, nextCursor, hasMore)
}

func (h *TargetGroup) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTargetGroup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	group := &model.TargetGroup{
		ID:             platform.NewName("grp_"),
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		IsActive:       true,
		SuccessTimeMin: req.SuccessTimeMin,
		SuccessTimeMax: req.SuccessTimeMax,
		ResetTime:      req.ResetTime,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.IsActive != nil {
		group.IsActive = *req.IsActive
	}

	if err := h.svc.Create(r.Context(), group); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, group)
}

func (h *TargetGroup) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, group)
}

func (h *TargetGroup) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateTargetGroup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Code != "" {
		group.Code = req.Code
	}
	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.SuccessTimeMin != nil {
		group.SuccessTimeMin = *req.SuccessTimeMin
	}
	if req.SuccessTimeMax != nil {
		group.SuccessTimeMax = *req.SuccessTimeMax
	}
	if req.ResetTime != nil {
		group.ResetTime = *req.ResetTime
	}

	if err := h.svc.Update(r.Context(), group); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, group)
}

func (h *TargetGroup) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *TargetGroup) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.svc.ToggleActive(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, group)
}

// StartDevice issues the external device start and moves every eligible
// resource in the group to running.
func (h *TargetGroup) StartDevice(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	started, err := h.svc.StartDevice(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"started": len(started),
		"items":   started,
	})
}

// StopDevice issues the external device stop and halts every running
// resource in the group.
func (h *TargetGroup) StopDevice(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stopped, err := h.svc.StopDevice(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"stopped": len(stopped),
		"items":   stopped,
	})
}

func (h *TargetGroup) Status(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.svc.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, status)
}

func (h *TargetGroup) Labels(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	labels, err := h.svc.Labels(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, labels)
}
