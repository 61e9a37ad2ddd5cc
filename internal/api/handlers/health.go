package handlers

import (
	"context"
	"net/http"

	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/convert"
	"github.com/meshforge/cad-engine/internal/observability"
)

// Pinger is the readiness surface of the job store connection.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves the banner and health endpoints.
type HealthHandler struct {
	logger  *observability.Logger
	service *convert.Service
	db      Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(logger *observability.Logger, service *convert.Service, db Pinger) *HealthHandler {
	return &HealthHandler{logger: logger, service: service, db: db}
}

// Banner handles GET /.
func (h *HealthHandler) Banner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":      "cad-engine",
		"version":      config.Version,
		"status":       "running",
		"engine":       h.service.Engine(),
		"capabilities": []string{"step-to-stl", "iges-to-stl"},
		"docs": map[string]string{
			"health":  "/health",
			"ready":   "/ready",
			"convert": "/convert/step-to-stl",
			"jobs":    "/jobs",
			"metrics": "/metrics",
		},
	})
}

// Health handles GET /health. Degraded means the kernel session is down and
// conversions will fail until it recovers.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if err := h.service.Healthy(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("kernel health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status":  status,
		"service": "cad-engine",
		"version": config.Version,
		"engine":  h.service.Engine(),
	})
}

// Ready handles GET /ready. Ready requires both the kernel session and the
// job store to answer.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Healthy(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"detail": "kernel session unavailable",
		})
		return
	}

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"detail": "job store unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
