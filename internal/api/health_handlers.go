package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/driftline/driftline/internal/health"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 2 * time.Second

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	checkers map[string]health.Checker
	logger   *slog.Logger
}

// NewHealthHandler creates a health handler over named dependency checkers.
// The map may be empty for deployments with no external dependencies.
func NewHealthHandler(checkers map[string]health.Checker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		checkers: checkers,
		logger:   logger,
	}
}

// HandleLiveness handles GET /health/live. It always returns 200 while the
// process is serving requests.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /health/ready. Each dependency is probed with
// a bounded timeout; any failure yields 503 with per-dependency detail.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := http.StatusOK
	results := make(map[string]string, len(h.checkers))
	for name, checker := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := checker.HealthCheck(checkCtx)
		cancel()

		if err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	WriteJSON(w, ctx, status, map[string]any{
		"status": statusWord(status),
		"checks": results,
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
