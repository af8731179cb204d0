// Package scrapeapi is a compatibility adapter for a third-party scrape
// API, translating that API's request/response shape onto
// internal/pipeline.Convert (spec.md §1 names such an integration as an
// out-of-scope external collaborator). It knows about the pipeline; the
// pipeline and internal/api know nothing about it, mirroring the
// dependency direction of the teacher's internal/app.App DI container,
// which built and owned services without those services depending back
// on it.
package scrapeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/cache"
	"github.com/JakeFAU/pagemd/internal/pageopts"
	"github.com/JakeFAU/pagemd/internal/pipeline"
)

// Converter is the single-URL pipeline surface this adapter fronts.
type Converter interface {
	Convert(ctx context.Context, url string, opts pageopts.ConversionOptions) (cache.Artifact, error)
}

// Handler implements the legacy scrape-API request/response contract:
// a "render_js"-flavored request body and a {success, data, error}
// response envelope, both shapes chosen to mirror the common third-party
// scrape API conventions this adapter exists to stand in for.
type Handler struct {
	converter Converter
	defaults  PipelineDefaults
	log       *zap.Logger
}

// PipelineDefaults is the narrow slice of PipelineConfig this adapter falls
// back to when the legacy request body leaves a field unset, mirroring
// internal/api.pipelineDefaults.
type PipelineDefaults struct {
	AggressiveCleaning bool
}

// NewHandler builds a Handler. log may be nil.
func NewHandler(converter Converter, defaults PipelineDefaults, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{converter: converter, defaults: defaults, log: log}
}

// legacyRequest is the third-party API's request shape: a flat body with
// a JS-rendering flag and a single CSS selector rather than this
// service's TargetSelectors/RemoveSelectors pair. RemoveAds is a pointer
// so an omitted field falls back to the configured pipeline default
// instead of Go's false zero value.
type legacyRequest struct {
	URL       string `json:"url"`
	RenderJS  bool   `json:"render_js"`
	Selector  string `json:"selector"`
	WaitMs    int    `json:"wait"`
	RemoveAds *bool  `json:"remove_ads"`
	NoCache   bool   `json:"no_cache"`
}

// legacyResponse is the third-party API's response envelope.
type legacyResponse struct {
	Success bool        `json:"success"`
	Data    *legacyData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type legacyData struct {
	Markdown string `json:"markdown"`
	Metadata string `json:"metadata"`
	URL      string `json:"url"`
}

// ServeHTTP implements http.Handler so this adapter can be mounted
// directly onto the native HTTP surface (internal/api.Server.Mount).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeLegacyError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req legacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLegacyError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeLegacyError(w, http.StatusBadRequest, "url required")
		return
	}

	opts := req.toOptions(h.defaults)
	artifact, err := h.converter.Convert(r.Context(), req.URL, opts)
	if err != nil {
		status := http.StatusBadGateway
		var invalid *pipeline.InvalidInputError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		h.log.Warn("legacy scrape request failed", zap.String("url", req.URL), zap.Error(err))
		writeLegacyError(w, status, err.Error())
		return
	}

	writeLegacy(w, http.StatusOK, legacyResponse{
		Success: true,
		Data: &legacyData{
			Markdown: artifact.Markdown,
			Metadata: artifact.Metadata,
			URL:      artifact.URL,
		},
	})
}

// toOptions maps the legacy flat shape onto pageopts.ConversionOptions.
// render_js has no equivalent knob on this service (every conversion
// already navigates through a headless browser), so it is accepted and
// ignored for compatibility rather than rejected.
func (req legacyRequest) toOptions(defaults PipelineDefaults) pageopts.ConversionOptions {
	opts := pageopts.ConversionOptions{
		NoCache:            req.NoCache,
		ScrollWaitMs:       req.WaitMs,
		AggressiveCleaning: defaults.AggressiveCleaning,
	}
	if req.Selector != "" {
		opts.TargetSelectors = []string{req.Selector}
	}
	if req.RemoveAds != nil {
		opts.AggressiveCleaning = *req.RemoveAds
	}
	return opts
}

func writeLegacy(w http.ResponseWriter, status int, payload legacyResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeLegacyError(w http.ResponseWriter, status int, msg string) {
	writeLegacy(w, status, legacyResponse{Success: false, Error: msg})
}
