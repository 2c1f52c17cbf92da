package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/fleet/internal/api/request"
	"github.com/edvin/fleet/internal/api/response"
	"github.com/edvin/fleet/internal/core"
	"github.com/edvin/fleet/internal/model"
	"github.com/edvin/fleet/internal/platform"
)

type Resource struct {
	svc    *core.ResourceService
	groups *core.TargetGroupService
}

func NewResource(svc *core.ResourceService, groups *core.TargetGroupService) *Resource {
	return &Resource{svc: svc, groups: groups}
}

func (h *Resource) ListByGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := request.RequireID(chi.URLParam(r, "groupID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := request.ParsePagination(r)

	resources, hasMore, err := h.svc.ListByGroup(r.Context(), groupID, p.Limit, p.Cursor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	nextCursor := ""
	if hasMore && len(resources) > 0 {
		nextCursor = resources[len(resources)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, resources, nextCursor, hasMore)
}

func (h *Resource) Create(w http.ResponseWriter, r *http.Request) {
	groupID, err := request.RequireID(chi.URLParam(r, "groupID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateResource
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The owning group must exist; the FK would reject the insert anyway
	// but a 404 is the right answer.
	if _, err := h.groups.GetByID(r.Context(), groupID); err != nil {
		writeServiceError(w, err)
		return
	}

	now := time.Now()
	res := &model.Resource{
		ID:              platform.NewName("res_"),
		GroupID:         groupID,
		URL:             req.URL,
		Name:            req.Name,
		Label:           req.Label,
		DurationSeconds: req.DurationSeconds,
		MaxNum:          req.MaxNum,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.IsActive != nil {
		res.IsActive = *req.IsActive
	}

	if err := h.svc.Create(r.Context(), res); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, res)
}

func (h *Resource) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Resource) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateResource
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.URL != "" {
		res.URL = req.URL
	}
	if req.Name != nil {
		res.Name = *req.Name
	}
	if req.Label != nil {
		res.Label = *req.Label
	}
	if req.DurationSeconds != nil {
		res.DurationSeconds = *req.DurationSeconds
	}
	if req.MaxNum != nil {
		res.MaxNum = *req.MaxNum
	}

	if err := h.svc.Update(r.Context(), res); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Resource) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *Resource) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err = h.svc.SetActive(r.Context(), id, !res.IsActive)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}

// Start moves the resource to running. Refusals (inactive, at the cap) come
// back as 200 with ok=false; they are expected outcomes, not errors.
func (h *Resource) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Start)
}

// Stop clears the running state. Stopping an already-stopped resource
// reports ok=true without change.
func (h *Resource) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Stop)
}

// Execute records one execution against the budget. Reaching the cap forces
// a stop in the same operation.
func (h *Resource) Execute(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Execute)
}

func (h *Resource) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*model.Resource, model.Transition, error)) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, tr, err := op(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteTransition(w, res, tr)
}

func (h *Resource) Reset(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Reset(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Resource) SetLabel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.SetLabel
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.SetLabel(r.Context(), id, req.Label)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Resource) ClearLabel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.SetLabel(r.Context(), id, "")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Resource) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.SetStatus
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}
