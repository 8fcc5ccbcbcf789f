package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID)
	r.Use(s.accessLog)

	r.Handle("/metrics", promhttp.HandlerFor(s.tracker.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/ws", s.handleWebSocket)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusNotFound, CodeNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusMethodNotAllowed, CodeReadOnly, "the status API is read-only")
	})

	return r
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
	Runtime    *RuntimeMetrics   `json:"runtime,omitempty"`
}

// handleHealth runs every registered check. Any failure reports 503.
// ?verbose=1 adds runtime statistics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: s.version}
	code := http.StatusOK

	if r.URL.Query().Get("verbose") == "1" {
		rm := s.runtimeMetrics(s.tracker.Snapshot().StartedAt)
		resp.Runtime = &rm
	}

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name](ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	respond(w, code, resp)
}

// handleStatus returns the current status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, s.tracker.Snapshot())
}
