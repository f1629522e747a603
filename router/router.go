// Package router wires the full middleware chain and route table for
// the Ingestor's HTTP surface (spec §6), grounded on the teacher's
// router/router.go chain ordering and chi usage.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/config"
	"github.com/Julianlamaravilla/yuno-nebula/detector"
	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/handler"
	gwmw "github.com/Julianlamaravilla/yuno-nebula/middleware"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
	"github.com/Julianlamaravilla/yuno-nebula/observability"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// Deps bundles every component the router mounts handlers over.
type Deps struct {
	Ingestor  *events.Ingestor
	Rules     *rules.Registry
	Incidents *detector.IncidentStore
	Metrics   metricstore.Store
	Telemetry *observability.Metrics
}

// New returns a configured chi Router with the full middleware chain
// and all API routes mounted (spec §6).
func New(cfg *config.Config, appLogger zerolog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware chain (order matters) ---
	// 1. CORS — must be first so preflight responses succeed.
	r.Use(gwmw.CORSMiddleware([]string{"*"}))

	// 2. Security headers.
	r.Use(gwmw.SecurityHeadersMiddleware)

	// 3. Request ID injection.
	r.Use(gwmw.RequestIDMiddleware)

	// 4. Panic recovery.
	r.Use(chimw.Recoverer)

	// 5. Request logger.
	r.Use(mwRequestLogger(appLogger))

	// 6. Body size limit (spec §6: ingest payloads are bounded).
	r.Use(mwMaxBodySize(cfg.MaxBodyBytes))

	// 7. Outer timeout backstop.
	timeoutMW := gwmw.NewTimeoutMiddleware(appLogger, 30*time.Second)
	r.Use(timeoutMW.Handler)

	// --- Health endpoints ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Telemetry != nil {
		r.Get("/metrics", deps.Telemetry.Handler().ServeHTTP)
	}

	r.Get("/openapi.json", handler.OpenAPIHandler())
	r.Get("/docs", handler.SwaggerUIHandler())

	// --- Operator rate limiting for the rules/alerts management API ---
	rateLimiter := gwmw.NewRateLimiter(appLogger, true, 300)

	if deps.Ingestor != nil {
		ingestHandler := handler.NewIngestHandler(deps.Ingestor, deps.Telemetry, appLogger)
		r.Post("/ingest", ingestHandler.Ingest)
	}

	if deps.Rules != nil {
		rulesHandler := handler.NewRulesHandler(deps.Rules, appLogger)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiter.Handler)
			r.Get("/rules", rulesHandler.List)
			r.Post("/rules", rulesHandler.Create)
			r.Delete("/rules/{id}", rulesHandler.Delete)
		})
	}

	if deps.Incidents != nil {
		alertsHandler := handler.NewAlertsHandler(deps.Incidents, appLogger)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiter.Handler)
			r.Get("/alerts", alertsHandler.List)
		})
	}

	if deps.Metrics != nil {
		metricsHandler := handler.NewMetricsHandler(deps.Metrics, appLogger)
		r.Get("/metrics/recent", metricsHandler.Recent)
	}

	return r
}

// mwMaxBodySize returns middleware that limits the request body size.
func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 && r.ContentLength > maxBytes {
				http.Error(w, `{"error":"request_too_large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", r.Header.Get("X-Request-ID")).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")
		})
	}
}
