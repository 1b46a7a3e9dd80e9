package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

// Pinger is the minimal interface of a dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is one named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// BuildReadinessChecks returns the probes for the configured dependencies.
// Nil pingers are not configured and are skipped.
func BuildReadinessChecks(db, redis Pinger, doc domain.Document) []Check {
	checks := []Check{{
		Name: "document",
		Fn: func(context.Context) error {
			if doc.Empty() {
				return errors.New("document not loaded")
			}
			return nil
		},
	}}
	if db != nil {
		checks = append(checks, Check{Name: "db", Fn: db.Ping})
	}
	if redis != nil {
		checks = append(checks, Check{Name: "redis", Fn: redis.Ping})
	}
	return checks
}

// ReadyzHandler runs every check with a short timeout and reports 503 when
// any fails.
func ReadyzHandler(checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.Name] = "unavailable"
				continue
			}
			results[c.Name] = "ok"
		}
		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeJSON(w, status, map[string]any{"status": state, "checks": results})
	}
}

// BuildMetricsRouter serves /metrics and /readyz on the internal listener.
func BuildMetricsRouter(checks []Check) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/readyz", ReadyzHandler(checks))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
