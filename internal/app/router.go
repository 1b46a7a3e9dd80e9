// Package app wires HTTP routers from configuration and handlers.
package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/fairyhunter13/career-agent-api/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-agent-api/internal/adapter/observability"
	"github.com/fairyhunter13/career-agent-api/internal/config"
)

// BuildRouter constructs the public handler: GET / and POST / only.
func BuildRouter(cfg config.Config, srv *httpserver.Server, ir *httpserver.IdentityResolver) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.Identify(ir))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	if cfg.FloodLimitPerMin > 0 {
		r.Use(httprate.Limit(cfg.FloodLimitPerMin, time.Minute,
			httprate.WithKeyFuncs(func(req *http.Request) (string, error) {
				return httpserver.ClientIDFromContext(req.Context()), nil
			}),
			httprate.WithLimitHandler(httpserver.RateLimitedHandler()),
		))
	}

	r.Get("/", srv.HealthHandler())
	r.Post("/", srv.AskHandler())
	r.NotFound(httpserver.NotFoundHandler())
	r.MethodNotAllowed(httpserver.MethodNotAllowedHandler())

	return httpserver.SecurityHeaders(r)
}
