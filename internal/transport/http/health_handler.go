package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping() error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checker HealthChecker
	started time.Time
	version string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(checker HealthChecker, version string) *HealthHandler {
	return &HealthHandler{checker: checker, started: time.Now(), version: version}
}

// HealthResponse is the probe payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if h.checker != nil {
		if err := h.checker.Ping(); err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			render.Status(r, http.StatusServiceUnavailable)
		}
	}
	render.JSON(w, r, resp)
}
