package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)

	// Unversioned paths kept for existing callers.
	r.Get("/verify/{deviceId}", s.handleVerify)
	r.Delete("/cache", s.handleClearCache)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/verify/{deviceId}", func(r chi.Router) {
			r.Get("/", s.handleVerify)
			r.Get("/history", s.handleHistory)
		})

		r.Delete("/cache", s.handleClearCache)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	CacheSize int               `json:"cacheSize"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// serviceName identifies this service in health responses.
const serviceName = "mqtt-verify"

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Service:   serviceName,
		Version:   s.version,
		CacheSize: s.verifier.CacheSize(),
	}

	if s.db != nil {
		resp.Checks = map[string]string{"database": "ok"}
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			resp.Checks["database"] = "error"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
