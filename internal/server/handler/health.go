package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency that can report its connectivity.
type Pinger func(ctx context.Context) error

// HealthHandler serves the health-check endpoint. Registered dependency
// checks run on every request with a short timeout; a failing check degrades
// the status but does not fail the endpoint.
type HealthHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]Pinger),
		logger: logger,
	}
}

// AddCheck registers a named dependency check. Not safe to call after the
// server has started.
func (h *HealthHandler) AddCheck(name string, ping Pinger) {
	h.checks[name] = ping
}

// HealthCheck responds with the server status and per-dependency health.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	resp := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(deps) > 0 {
		resp["dependencies"] = deps
	}

	writeJSON(w, http.StatusOK, resp)
}
