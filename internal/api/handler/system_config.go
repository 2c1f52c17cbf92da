package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/fleet/internal/api/request"
	"github.com/edvin/fleet/internal/api/response"
	"github.com/edvin/fleet/internal/core"
	"github.com/edvin/fleet/internal/device"
	"github.com/edvin/fleet/internal/dynconfig"
	"github.com/edvin/fleet/internal/model"
	"github.com/edvin/fleet/internal/platform"
)

type SystemConfig struct {
	svc     *core.ConfigEntryService
	store   *dynconfig.Store
	devices device.Controller
}

func NewSystemConfig(svc *core.ConfigEntryService, store *dynconfig.Store, devices device.Controller) *SystemConfig {
	return &SystemConfig{svc: svc, store: store, devices: devices}
}

// List returns every entry with sensitive values masked.
func (h *SystemConfig) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	masked := make([]model.ConfigEntry, len(entries))
	for i, e := range entries {
		masked[i] = e.Masked()
	}
	response.WriteJSON(w, http.StatusOK, masked)
}

func (h *SystemConfig) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateConfigEntry
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	entry := &model.ConfigEntry{
		ID:          platform.NewName("cfg_"),
		Key:         req.Key,
		Value:       req.Value,
		Description: req.Description,
		Category:    req.Category,
		IsSensitive: req.IsSensitive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if entry.Category == "" {
		entry.Category, entry.IsSensitive = dynconfig.CategorizeKey(entry.Key)
	}

	if err := h.svc.Create(r.Context(), entry); err != nil {
		writeServiceError(w, err)
		return
	}

	h.store.Set(entry.Key, entry.Value)
	response.WriteJSON(w, http.StatusCreated, entry.Masked())
}

func (h *SystemConfig) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, entry.Masked())
}

func (h *SystemConfig) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateConfigEntry
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Value != nil {
		entry.Value = *req.Value
	}
	if req.Description != nil {
		entry.Description = *req.Description
	}
	if req.Category != nil {
		entry.Category = *req.Category
	}
	if req.IsSensitive != nil {
		entry.IsSensitive = *req.IsSensitive
	}

	if err := h.svc.Update(r.Context(), entry); err != nil {
		writeServiceError(w, err)
		return
	}

	// Push the new value through the live store so cached readers and
	// watchers see it without waiting for a reload.
	if req.Value != nil {
		h.store.Set(entry.Key, entry.Value)
	}

	response.WriteJSON(w, http.StatusOK, entry.Masked())
}

func (h *SystemConfig) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	h.store.Reload(entry.Key)
	w.WriteHeader(http.StatusNoContent)
}

// Reload drops the live store's cache so subsequent reads refetch from
// durable storage.
func (h *SystemConfig) Reload(w http.ResponseWriter, _ *http.Request) {
	h.store.ReloadAll()
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// ExportEnv renders every entry as env-file text, sensitive values included;
// this is the operator's backup path.
func (h *SystemConfig) ExportEnv(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fleet-config.env"`)
	w.Write([]byte(dynconfig.FormatEnv(entries)))
}

// ImportEnv bulk-upserts entries from env-file text. New keys are created
// with an inferred category, changed keys are rewritten, and keys whose
// value already matches are left untouched so no watcher fires for them.
func (h *SystemConfig) ImportEnv(w http.ResponseWriter, r *http.Request) {
	var req request.ImportEnv
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pairs, err := dynconfig.ParseEnv(req.Content)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, updated, skipped := 0, 0, 0
	for key, value := range pairs {
		existing, err := h.svc.GetByKey(r.Context(), key)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			writeServiceError(w, err)
			return
		}
		if existing != nil {
			if existing.Value == value {
				skipped++
				continue
			}
			existing.Value = value
			existing.UpdatedAt = time.Now()
			if err := h.svc.Update(r.Context(), existing); err != nil {
				writeServiceError(w, err)
				return
			}
			updated++
		} else {
			category, sensitive := dynconfig.CategorizeKey(key)
			now := time.Now()
			entry := &model.ConfigEntry{
				ID:          platform.NewName("cfg_"),
				Key:         key,
				Value:       value,
				Category:    category,
				IsSensitive: sensitive,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := h.svc.Create(r.Context(), entry); err != nil {
				writeServiceError(w, err)
				return
			}
			created++
		}
		h.store.Set(key, value)
	}

	response.WriteJSON(w, http.StatusOK, map[string]int{
		"created": created,
		"updated": updated,
		"skipped": skipped,
	})
}

// TestConnectivity checks that the device provider is reachable with the
// configured credentials by listing the device inventory.
func (h *SystemConfig) TestConnectivity(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"devices": len(devices),
	})
}
