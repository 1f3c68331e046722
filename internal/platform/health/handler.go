package health

import (
	"context"
	"net/http"
	"time"

	"truconn/internal/transport/http/json"
)

// Checker reports readiness of a single dependency.
type Checker interface {
	Health(ctx context.Context) error
}

// Handler serves liveness and readiness probes.
type Handler struct {
	checks map[string]Checker
}

// New builds a health handler over the named dependency checkers.
// Nil checkers are skipped so optional dependencies can be wired directly.
func New(checks map[string]Checker) *Handler {
	filtered := make(map[string]Checker, len(checks))
	for name, c := range checks {
		if c != nil {
			filtered[name] = c
		}
	}
	return &Handler{checks: filtered}
}

// ServeHTTP reports the status of every registered dependency.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			deps[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": "ok", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	json.WriteJSON(w, status, body)
}
