package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const readinessTimeout = 5 * time.Second

// HealthChecker probes one dependency for readiness.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a ping function into a HealthChecker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// handleLiveness answers as long as the process serves requests.
func handleLiveness(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness probes every dependency and reports per-check status.
// Any failure turns the whole response into a 503 so load balancers stop
// routing here.
func handleReadiness(checkers []HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(checkers))
		for _, c := range checkers {
			if err := c.Check(ctx); err != nil {
				slog.WarnContext(ctx, "readiness check failed",
					"check", c.Name(), "error", err)
				checks[c.Name()] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[c.Name()] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "degraded"
		}
		respond(w, r, status, map[string]interface{}{
			"status": state,
			"checks": checks,
		})
	}
}
