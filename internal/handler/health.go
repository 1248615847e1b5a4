package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/cortexai/opsagent/internal/models"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// HealthChecker is implemented by services that can report connectivity
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) TestConnection(ctx context.Context) error { return f(ctx) }

// HealthHandler handles GET /health with dependency checks. A dependency
// registered with a nil checker is reported as disabled.
type HealthHandler struct {
	agents []string
	checks map[string]HealthChecker
}

func NewHealthHandler(agents []string, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{agents: agents, checks: checks}
}

// Health handles GET /health and GET /. A failing dependency marks the
// service degraded and answers 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	// Use a short timeout for health checks so they don't block
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := h.checks[name]
		if c == nil {
			checks[name] = "disabled"
			continue
		}
		if err := c.TestConnection(ctx); err != nil {
			checks[name] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: Version,
		Agents:  h.agents,
		Checks:  checks,
	})
}
