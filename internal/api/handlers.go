package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/pagemd/internal/job"
	"github.com/JakeFAU/pagemd/internal/pageopts"
	"github.com/JakeFAU/pagemd/internal/pipeline"
)

// convertRequest is the synchronous single-URL request body (spec.md §4.7).
type convertRequest struct {
	URL                string   `json:"url"`
	TargetSelectors    []string `json:"targetSelectors"`
	RemoveSelectors    []string `json:"removeSelectors"`
	AggressiveCleaning *bool    `json:"aggressiveCleaning"`
	RemoveImages       *bool    `json:"removeImages"`
	MinContentLength   *int     `json:"minContentLength"`
	ScrollWaitMs       *int     `json:"scrollWaitMs"`
	NoCache            bool     `json:"noCache"`
}

func (req convertRequest) toOptions(defaults pipelineDefaults) pageopts.ConversionOptions {
	opts := pageopts.ConversionOptions{
		TargetSelectors:    req.TargetSelectors,
		RemoveSelectors:    req.RemoveSelectors,
		AggressiveCleaning: defaults.AggressiveCleaning,
		RemoveImages:       defaults.RemoveImages,
		MinContentLength:   defaults.MinContentLength,
		ScrollWaitMs:       defaults.ScrollWaitMs,
		NoCache:            req.NoCache,
	}
	if req.AggressiveCleaning != nil {
		opts.AggressiveCleaning = *req.AggressiveCleaning
	}
	if req.RemoveImages != nil {
		opts.RemoveImages = *req.RemoveImages
	}
	if req.MinContentLength != nil {
		opts.MinContentLength = *req.MinContentLength
	}
	if req.ScrollWaitMs != nil {
		opts.ScrollWaitMs = *req.ScrollWaitMs
	}
	return opts
}

// pipelineDefaults is the narrow slice of PipelineConfig a convert request
// falls back to when a field is omitted.
type pipelineDefaults struct {
	AggressiveCleaning bool
	RemoveImages       bool
	MinContentLength   int
	ScrollWaitMs       int
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	opts := req.toOptions(pipelineDefaults{
		AggressiveCleaning: s.cfg.Pipeline.AggressiveCleaning,
		RemoveImages:       s.cfg.Pipeline.RemoveImages,
		MinContentLength:   s.cfg.Pipeline.MinContentLength,
		ScrollWaitMs:       s.cfg.Pipeline.ScrollWaitMs,
	})

	artifact, err := s.converter.Convert(r.Context(), req.URL, opts)
	if err != nil {
		status := http.StatusBadGateway
		var invalid *pipeline.InvalidInputError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// submitJobRequest is the asynchronous job submission body (spec.md §4.8, §6).
type submitJobRequest struct {
	SitemapURL      string            `json:"sitemapUrl"`
	URLs            []string          `json:"urls"`
	Options         convertRequest    `json:"options"`
	MaxConcurrent   int               `json:"maxConcurrent"`
	BatchSize       int               `json:"batchSize"`
	ProcessingDelay int               `json:"processingDelayMs"`
	RetryCount      int               `json:"retryCount"`
	RetryDelay      int               `json:"retryDelayMs"`
	Webhook         webhookSpecJSON   `json:"webhook"`
}

type webhookSpecJSON struct {
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers"`
	ExtraFields     map[string]any    `json:"extraFields"`
	ProgressUpdates bool              `json:"progressUpdates"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SitemapURL == "" && len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "sitemapUrl or urls required")
		return
	}

	cfg := job.Config{
		SitemapURL: req.SitemapURL,
		URLs:       req.URLs,
		Options: req.Options.toOptions(pipelineDefaults{
			AggressiveCleaning: s.cfg.Pipeline.AggressiveCleaning,
			RemoveImages:       s.cfg.Pipeline.RemoveImages,
			MinContentLength:   s.cfg.Pipeline.MinContentLength,
			ScrollWaitMs:       s.cfg.Pipeline.ScrollWaitMs,
		}),
		MaxConcurrent:   valueOr(req.MaxConcurrent, s.cfg.Job.DefaultMaxConcurrent),
		BatchSize:       valueOr(req.BatchSize, s.cfg.Job.DefaultBatchSize),
		ProcessingDelay: durationOr(req.ProcessingDelay, s.cfg.Job.DefaultProcessingDelayMs),
		RetryCount:      valueOr(req.RetryCount, s.cfg.Job.DefaultRetryCount),
		RetryDelay:      durationOr(req.RetryDelay, s.cfg.Job.DefaultRetryDelayMs),
		Webhook: job.WebhookSpec{
			URL:             req.Webhook.URL,
			Headers:         req.Webhook.Headers,
			ExtraFields:     req.Webhook.ExtraFields,
			ProgressUpdates: req.Webhook.ProgressUpdates,
		},
	}

	jobID := s.jobs.CreateJob(cfg)
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	snap, ok := s.jobs.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        snap.ID,
		"status":    snap.Status,
		"counts":    snap.Counts,
		"startTime": snap.StartTime,
		"endTime":   snap.EndTime,
		"error":     snap.Error,
	})
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	snap, ok := s.jobs.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      snap.ID,
		"status":  snap.Status,
		"counts":  snap.Counts,
		"results": snap.Results,
	})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.jobs.Cancel(jobID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": jobID, "status": "cancelling"})
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOr(ms, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}
