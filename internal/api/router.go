package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshforge/cad-engine/internal/api/handlers"
	"github.com/meshforge/cad-engine/internal/api/middleware"
	"github.com/meshforge/cad-engine/internal/api/rpc"
)

// Handler builds the service's full route table.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(a.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(a.Config.Server.CORSOrigins))
	r.Use(chimiddleware.Timeout(a.Config.Server.WriteTimeout))

	healthHandler := handlers.NewHealthHandler(a.Logger, a.Service, a.DB)
	convertHandler := handlers.NewConvertHandler(a.Logger, a.Service, a.Config.MaxFileSizeBytes())
	jobsHandler := handlers.NewJobsHandler(a.Logger, a.Jobs)

	r.Get("/", healthHandler.Banner)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Conversion endpoints carry the per-client budget; probes and metrics
	// stay unthrottled so orchestrators never trip it.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(a.Config.Server.RateLimitPerMinute))

		r.Post("/convert/step-to-stl", convertHandler.ConvertFile)
		r.Post("/convert/step-to-stl-base64", convertHandler.ConvertBase64)

		procedure, rpcHandler := rpc.NewConversionHandler(a.Logger, a.Service)
		r.Handle("/rpc"+procedure, rpcHandler)
	})

	r.Get("/jobs", jobsHandler.List)
	r.Get("/jobs/{id}", jobsHandler.Get)

	return r
}
