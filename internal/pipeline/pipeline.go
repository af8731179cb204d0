// Package pipeline implements the single-URL conversion pipeline
// (spec.md §4.7): headless navigation, the dynamic-content fallback
// ladder, DOM cleaning, Markdown conversion and caching.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/browser"
	"github.com/JakeFAU/pagemd/internal/cache"
	"github.com/JakeFAU/pagemd/internal/cleaner"
	"github.com/JakeFAU/pagemd/internal/config"
	"github.com/JakeFAU/pagemd/internal/markdown"
	"github.com/JakeFAU/pagemd/internal/metadata"
	"github.com/JakeFAU/pagemd/internal/pageopts"
	"github.com/JakeFAU/pagemd/internal/rules"
)

// Pipeline wires the Browser Pool, Cache, Rules Store, Cleaner and
// Markdown Converter into the single-URL conversion described in
// spec.md §4.7.
type Pipeline struct {
	browser browser.Browser
	cache   *cache.Selector
	rules   *rules.Store
	cfg     config.PipelineConfig
	log     *zap.Logger
	metrics MetricsRecorder
}

// New builds a Pipeline. metrics may be nil, in which case observations
// are dropped.
func New(b browser.Browser, c *cache.Selector, store *rules.Store, cfg config.PipelineConfig, log *zap.Logger, metrics MetricsRecorder) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Pipeline{browser: b, cache: c, rules: store, cfg: cfg, log: log, metrics: metrics}
}

// Convert runs the full pipeline for a single URL and returns its Artifact.
func (p *Pipeline) Convert(ctx context.Context, rawURL string, opts pageopts.ConversionOptions) (cache.Artifact, error) {
	normalized, err := normalizeURL(rawURL)
	if err != nil {
		return cache.Artifact{}, err
	}
	if opts.MinContentLength == 0 {
		opts.MinContentLength = p.cfg.MinContentLength
	}
	if opts.ScrollWaitMs == 0 {
		opts.ScrollWaitMs = p.cfg.ScrollWaitMs
	}

	fingerprint := cache.Fingerprint(normalized, opts)
	if !opts.NoCache {
		if artifact, ok := p.cache.Get(ctx, fingerprint); ok {
			p.metrics.IncConversion("cache_hit")
			return artifact, nil
		}
	}

	artifact, err := p.convertWithRetries(ctx, normalized, opts)
	if err != nil {
		if !opts.NoCache {
			if cached, ok := p.cache.Get(ctx, fingerprint); ok {
				p.log.Warn("pipeline: conversion failed, serving emergency cache fallback", zap.String("url", normalized), zap.Error(err))
				return cached, nil
			}
		}
		p.metrics.IncConversion("failure")
		return cache.Artifact{}, err
	}

	if !opts.NoCache {
		p.cache.Set(ctx, fingerprint, artifact)
	}
	p.metrics.IncConversion("success")
	return artifact, nil
}

// convertWithRetries applies the maxRetries transient-error policy on top
// of runFallbackLadder (spec.md §4.7). Retries follow one another with no
// delay, and each one runs the whole ladder again from Stage 0; the stage
// a failed attempt had reached is not carried over to the next attempt.
func (p *Pipeline) convertWithRetries(ctx context.Context, normalized string, opts pageopts.ConversionOptions) (cache.Artifact, error) {
	var lastErr error
	attempts := p.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		artifact, err := p.runFallbackLadder(ctx, normalized, opts)
		if err == nil {
			return artifact, nil
		}
		lastErr = err
		if !isTransient(err) {
			return cache.Artifact{}, err
		}
		p.log.Warn("pipeline: transient error, retrying",
			zap.String("url", normalized), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return cache.Artifact{}, lastErr
}

// runFallbackLadder implements the three-stage dynamic-content adaptation
// (spec.md §4.7 step 5).
func (p *Pipeline) runFallbackLadder(ctx context.Context, normalized string, opts pageopts.ConversionOptions) (cache.Artifact, error) {
	page, err := p.browser.AcquirePage(ctx)
	if err != nil {
		return cache.Artifact{}, fmt.Errorf("acquire page: %w", err)
	}
	defer p.browser.ReleasePage(page)

	if err := p.navigate(ctx, page, normalized); err != nil {
		return cache.Artifact{}, err
	}

	rawHTML, err := p.outerHTML(ctx, page)
	if err != nil {
		return cache.Artifact{}, err
	}
	richness := cleaner.Probe(rawHTML, normalized, p.log)

	// Stage 0: same page, conditional scroll.
	if richness.TextLength < opts.MinContentLength {
		p.scrollAndWait(ctx, page, opts)
		rawHTML, err = p.outerHTML(ctx, page)
		if err != nil {
			return cache.Artifact{}, err
		}
	}
	if artifact, ok := p.tryBuildArtifact(ctx, page, normalized, rawHTML, opts, 0); ok {
		return artifact, nil
	}

	// Stage 1: fresh page, unconditional scroll, aggressive cleaning on.
	p.browser.ReleasePage(page)
	stage1Opts := opts
	stage1Opts.AggressiveCleaning = true
	page, rawHTML, err = p.reacquireAndScroll(ctx, normalized, stage1Opts)
	if err != nil {
		return cache.Artifact{}, err
	}
	defer p.browser.ReleasePage(page)
	if artifact, ok := p.tryBuildArtifact(ctx, page, normalized, rawHTML, stage1Opts, 1); ok {
		return artifact, nil
	}

	// Stage 2: same shape, aggressive cleaning off.
	p.browser.ReleasePage(page)
	stage2Opts := opts
	stage2Opts.AggressiveCleaning = false
	page, rawHTML, err = p.reacquireAndScroll(ctx, normalized, stage2Opts)
	if err != nil {
		return cache.Artifact{}, err
	}
	defer p.browser.ReleasePage(page)

	p.metrics.IncFallbackStage(2)
	artifact, _, err := p.buildArtifact(ctx, page, normalized, rawHTML, stage2Opts)
	return artifact, err
}

func (p *Pipeline) reacquireAndScroll(ctx context.Context, normalized string, opts pageopts.ConversionOptions) (browser.Page, string, error) {
	page, err := p.browser.AcquirePage(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("acquire page: %w", err)
	}
	if err := p.navigate(ctx, page, normalized); err != nil {
		p.browser.ReleasePage(page)
		return nil, "", err
	}
	p.scrollAndWait(ctx, page, opts)
	rawHTML, err := p.outerHTML(ctx, page)
	if err != nil {
		p.browser.ReleasePage(page)
		return nil, "", err
	}
	return page, rawHTML, nil
}

// tryBuildArtifact builds an artifact and reports whether the converter's
// raw output met the minContentLength threshold (spec.md §4.7 step 5); a
// below-threshold artifact is still valid output, just not an accepted
// early exit.
func (p *Pipeline) tryBuildArtifact(ctx context.Context, page browser.Page, normalized, rawHTML string, opts pageopts.ConversionOptions, stage int) (cache.Artifact, bool) {
	p.metrics.IncFallbackStage(stage)
	artifact, bodyLen, err := p.buildArtifact(ctx, page, normalized, rawHTML, opts)
	if err != nil {
		return cache.Artifact{}, false
	}
	return artifact, bodyLen >= opts.MinContentLength
}

func (p *Pipeline) buildArtifact(ctx context.Context, page browser.Page, normalized, rawHTML string, opts pageopts.ConversionOptions) (cache.Artifact, int, error) {
	rec, err := metadata.Extract(ctx, p.browser, page)
	if err != nil {
		p.log.Warn("pipeline: metadata extraction failed", zap.String("url", normalized), zap.Error(err))
	}
	formatted := metadata.Format(rec)

	cleaned, err := cleaner.Clean(rawHTML, opts, p.rules, p.log)
	if err != nil {
		p.log.Warn("pipeline: cleaner failed, using raw HTML", zap.String("url", normalized), zap.Error(err))
		cleaned = rawHTML
	}

	body := markdown.Convert(cleaned, opts, p.log)

	composed := fmt.Sprintf("URL: %s\n\n%s\n\n---\n\n%s", normalized, formatted, body)
	artifact := cache.Artifact{
		URL:       normalized,
		Metadata:  formatted,
		Markdown:  composed,
		Timestamp: time.Now(),
	}
	return artifact, len(body), nil
}

func (p *Pipeline) navigate(ctx context.Context, page browser.Page, normalized string) error {
	timeout := p.cfg.PageTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	start := time.Now()
	err := p.browser.Navigate(ctx, page, normalized, timeout)
	p.metrics.ObserveNavigation(time.Since(start))
	return err
}

func (p *Pipeline) outerHTML(ctx context.Context, page browser.Page) (string, error) {
	val, err := p.browser.Evaluate(ctx, page, "document.documentElement.outerHTML")
	if err != nil {
		return "", fmt.Errorf("read outer html: %w", err)
	}
	html, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("read outer html: unexpected evaluate result type %T", val)
	}
	return html, nil
}

func (p *Pipeline) scrollAndWait(ctx context.Context, page browser.Page, opts pageopts.ConversionOptions) {
	_, err := p.browser.Evaluate(ctx, page, "window.scrollTo(0, document.body.scrollHeight)")
	if err != nil {
		p.log.Warn("pipeline: scroll evaluate failed", zap.Error(err))
	}
	wait := time.Duration(opts.ScrollWaitMs) * time.Millisecond
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// normalizeURL implements spec.md §4.7 step 1.
func normalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &InvalidInputError{URL: raw, Reason: "empty URL"}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &InvalidInputError{URL: raw, Reason: err.Error()}
	}
	if parsed.Host == "" {
		return "", &InvalidInputError{URL: raw, Reason: "missing host"}
	}
	return parsed.String(), nil
}
