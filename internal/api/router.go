package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database check in /api/v1/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Device channels. Devices never send CORS preflights.
	r.Route("/mdm", func(r chi.Router) {
		r.Put("/checkin", s.handleCheckin)
		r.Put("/server", s.handlePoll)
	})

	r.Get("/enroll/profile", s.handleEnrollProfile)

	if s.metrics != nil {
		r.Get("/metrics/prometheus", s.handlePrometheus)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.corsMiddleware)

		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/enrollment-info", s.handleEnrollmentInfo)
		r.Get("/audit", s.handleListAudit)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/stats", s.handleDeviceStats)

			r.Route("/{udid}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/commands", s.handleListDeviceCommands)
				r.Post("/commands", s.handleQueueCommand)

				r.Post("/notify", s.handleNotify)
				r.Post("/lost-mode", s.handleEnableLostMode)
				r.Post("/disable-lost-mode", s.handleDisableLostMode)
				r.Post("/unenroll", s.handleUnenroll)
				r.Post("/query", s.handleQuery)
				r.Post("/lock", s.handleLock)
				r.Post("/erase", s.handleErase)
			})
		})

		r.Get("/commands/{uuid}", s.handleGetCommand)
	})

	return r
}

// handleHealth returns the server health status. The database is pinged
// when one is configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check: database unavailable", "error", err)
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}
