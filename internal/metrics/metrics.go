// Package metrics exposes Prometheus collectors for the conversion
// pipeline, the job orchestrator, the cache, and outbound webhooks
// (SPEC_FULL.md Ambient Stack). Grounded on the teacher's
// internal/progress/sinks/prometheus.go registered-struct pattern.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every collector this service exposes and implements the
// MetricsRecorder interfaces of internal/pipeline, internal/job and
// internal/cache.
type Registry struct {
	conversionsTotal   *prometheus.CounterVec
	fallbackStageTotal *prometheus.CounterVec
	navigationDuration prometheus.Histogram

	urlOutcomesTotal  *prometheus.CounterVec
	processingSeconds prometheus.Histogram
	activeJobs        prometheus.Gauge
	batchesTotal      *prometheus.CounterVec

	cacheOperationsTotal *prometheus.CounterVec

	webhookRequestsTotal *prometheus.CounterVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
}

// New builds and registers every collector against reg. A nil reg
// registers against prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Registry, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Registry{
		conversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagemd_pipeline_conversions_total",
			Help: "Single-URL conversions partitioned by outcome.",
		}, []string{"outcome"}),
		fallbackStageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagemd_pipeline_fallback_stage_total",
			Help: "Dynamic-content fallback ladder stages reached.",
		}, []string{"stage"}),
		navigationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagemd_pipeline_navigation_duration_seconds",
			Help:    "Browser navigation latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}),
		urlOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagemd_job_url_outcomes_total",
			Help: "Per-URL job outcomes partitioned by success/failure.",
		}, []string{"outcome"}),
		processingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagemd_job_url_processing_seconds",
			Help:    "Per-URL end-to-end processing time within a job.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagemd_job_active",
			Help: "Number of jobs currently running.",
		}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagemd_job_batches_total",
			Help: "Batches processed across all jobs, partitioned by result.",
		}, []string{"result"}),
		cacheOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagemd_cache_operations_total",
			Help: "Cache operations partitioned by tier, operation and result.",
		}, []string{"tier", "op", "result"}),
		webhookRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagemd_webhook_requests_total",
			Help: "Webhook delivery attempts partitioned by kind and result.",
		}, []string{"kind", "result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagemd_http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagemd_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		r.conversionsTotal, r.fallbackStageTotal, r.navigationDuration,
		r.urlOutcomesTotal, r.processingSeconds, r.activeJobs, r.batchesTotal,
		r.cacheOperationsTotal, r.webhookRequestsTotal,
		r.httpRequestsTotal, r.httpRequestDurationSeconds,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Handler exposes the collectors registered on prometheus.DefaultRegisterer
// over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveNavigation implements pipeline.MetricsRecorder.
func (r *Registry) ObserveNavigation(d time.Duration) {
	r.navigationDuration.Observe(d.Seconds())
}

// IncConversion implements pipeline.MetricsRecorder.
func (r *Registry) IncConversion(outcome string) {
	r.conversionsTotal.WithLabelValues(outcome).Inc()
}

// IncFallbackStage implements pipeline.MetricsRecorder.
func (r *Registry) IncFallbackStage(stage int) {
	r.fallbackStageTotal.WithLabelValues(fmt.Sprintf("%d", stage)).Inc()
}

// IncURLOutcome implements job.MetricsRecorder.
func (r *Registry) IncURLOutcome(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.urlOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveProcessingTime implements job.MetricsRecorder.
func (r *Registry) ObserveProcessingTime(d time.Duration) {
	r.processingSeconds.Observe(d.Seconds())
}

// SetActiveJobs implements job.MetricsRecorder.
func (r *Registry) SetActiveJobs(n int) {
	r.activeJobs.Set(float64(n))
}

// IncBatch implements job.MetricsRecorder.
func (r *Registry) IncBatch(result string) {
	r.batchesTotal.WithLabelValues(result).Inc()
}

// ObserveCacheOperation records a cache get/set outcome partitioned by tier
// and operation. Implements cache.MetricsRecorder.
func (r *Registry) ObserveCacheOperation(tier, op, result string) {
	r.cacheOperationsTotal.WithLabelValues(tier, op, result).Inc()
}

// ObserveWebhookRequest records a webhook delivery attempt outcome
// partitioned by payload kind. Implements webhook.MetricsRecorder.
func (r *Registry) ObserveWebhookRequest(kind, result string) {
	r.webhookRequestsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveHTTPRequest records one API request, consumed by the chi
// middleware in internal/api.
func (r *Registry) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	r.httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
