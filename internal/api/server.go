// Package api exposes pagemd's HTTP interface: a synchronous single-URL
// conversion endpoint and the asynchronous job submission/status/result/
// cancel surface, grounded on the teacher's internal/api/server.go chi
// router and middleware stack.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/cache"
	"github.com/JakeFAU/pagemd/internal/config"
	"github.com/JakeFAU/pagemd/internal/job"
	"github.com/JakeFAU/pagemd/internal/pageopts"
)

// Converter is the synchronous single-URL pipeline surface (spec.md §4.7).
type Converter interface {
	Convert(ctx context.Context, url string, opts pageopts.ConversionOptions) (cache.Artifact, error)
}

// MetricsRecorder records one completed HTTP request.
type MetricsRecorder interface {
	ObserveHTTPRequest(method, route string, code int, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveHTTPRequest(string, string, int, time.Duration) {}

// Server wires HTTP handlers to the Pipeline and the Job Orchestrator.
type Server struct {
	router    chi.Router
	converter Converter
	jobs      *job.Orchestrator
	metrics   MetricsRecorder
	metricsH  http.Handler
	cfg       config.Config
	log       *zap.Logger
}

// NewServer constructs a Server with the full middleware stack and routes.
// metricsHandler is typically metrics.Handler(); it may be nil in
// tests that don't exercise /metrics.
func NewServer(converter Converter, jobs *job.Orchestrator, metrics MetricsRecorder, metricsHandler http.Handler, cfg config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if metricsHandler == nil {
		metricsHandler = http.NotFoundHandler()
	}
	s := &Server{converter: converter, jobs: jobs, metrics: metrics, metricsH: metricsHandler, cfg: cfg, log: log}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(recoverMiddleware(log))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", s.metricsH)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/convert", s.convert)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getJobStatus)
				r.Get("/result", s.getJobResult)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Mount attaches an additional handler under pattern, e.g. the legacy
// scrape-API compatibility adapter (internal/scrapeapi), without this
// package knowing anything about it.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
