package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/fleet/internal/api/handler"
	mw "github.com/edvin/fleet/internal/api/middleware"
	"github.com/edvin/fleet/internal/core"
	"github.com/edvin/fleet/internal/device"
	"github.com/edvin/fleet/internal/dynconfig"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	store    *dynconfig.Store
	devices  device.Controller
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, services *core.Services, store *dynconfig.Store, devices device.Controller) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		store:    store,
		devices:  devices,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Target groups
		group := handler.NewTargetGroup(s.services.TargetGroup)
		r.Get("/target-groups", group.List)
		r.Post("/target-groups", group.Create)
		r.Get("/target-groups/{id}", group.Get)
		r.Put("/target-groups/{id}", group.Update)
		r.Delete("/target-groups/{id}", group.Delete)
		r.Post("/target-groups/{id}/toggle", group.ToggleActive)
		r.Post("/target-groups/{id}/start", group.StartDevice)
		r.Post("/target-groups/{id}/stop", group.StopDevice)
		r.Get("/target-groups/{id}/status", group.Status)
		r.Get("/target-groups/{id}/labels", group.Labels)

		// Resources
		resource := handler.NewResource(s.services.Resource, s.services.TargetGroup)
		r.Get("/target-groups/{groupID}/resources", resource.ListByGroup)
		r.Post("/target-groups/{groupID}/resources", resource.Create)
		r.Get("/resources/{id}", resource.Get)
		r.Put("/resources/{id}", resource.Update)
		r.Delete("/resources/{id}", resource.Delete)
		r.Post("/resources/{id}/toggle", resource.ToggleActive)
		r.Post("/resources/{id}/start", resource.Start)
		r.Post("/resources/{id}/stop", resource.Stop)
		r.Post("/resources/{id}/execute", resource.Execute)
		r.Post("/resources/{id}/reset", resource.Reset)
		r.Put("/resources/{id}/label", resource.SetLabel)
		r.Delete("/resources/{id}/label", resource.ClearLabel)
		r.Put("/resources/{id}/status", resource.SetStatus)

		// Cleanup tasks
		task := handler.NewCleanupTask(s.services.CleanupTask)
		r.Get("/cleanup-tasks", task.List)
		r.Post("/cleanup-tasks", task.Create)
		r.Get("/cleanup-tasks/{id}", task.Get)
		r.Put("/cleanup-tasks/{id}", task.Update)
		r.Delete("/cleanup-tasks/{id}", task.Delete)
		r.Post("/cleanup-tasks/{id}/toggle", task.Toggle)
		r.Post("/cleanup-tasks/{id}/execute", task.Execute)

		// System configuration
		sysconfig := handler.NewSystemConfig(s.services.ConfigEntry, s.store, s.devices)
		r.Get("/system-config", sysconfig.List)
		r.Post("/system-config", sysconfig.Create)
		r.Get("/system-config/{id}", sysconfig.Get)
		r.Put("/system-config/{id}", sysconfig.Update)
		r.Delete("/system-config/{id}", sysconfig.Delete)
		r.Post("/system-config/reload", sysconfig.Reload)
		r.Get("/system-config/export", sysconfig.ExportEnv)
		r.Post("/system-config/import", sysconfig.ImportEnv)
		r.Post("/system-config/test-connectivity", sysconfig.TestConnectivity)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
