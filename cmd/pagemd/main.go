// Package main wires the conversion pipeline, job orchestrator and HTTP
// server into a single binary, grounded on the teacher's cmd/webcrawler/main.go.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/api"
	"github.com/JakeFAU/pagemd/internal/browser"
	"github.com/JakeFAU/pagemd/internal/cache"
	"github.com/JakeFAU/pagemd/internal/config"
	"github.com/JakeFAU/pagemd/internal/job"
	"github.com/JakeFAU/pagemd/internal/logging"
	"github.com/JakeFAU/pagemd/internal/metrics"
	"github.com/JakeFAU/pagemd/internal/pipeline"
	"github.com/JakeFAU/pagemd/internal/rules"
	"github.com/JakeFAU/pagemd/internal/scrapeapi"
	"github.com/JakeFAU/pagemd/internal/sitemap"
	"github.com/JakeFAU/pagemd/internal/store"
	"github.com/JakeFAU/pagemd/internal/store/postgres"
	"github.com/JakeFAU/pagemd/internal/webhook"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	dev := flag.Bool("dev", false, "Enable development-mode logging")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Rules.Path != "" {
		rules.SetPath(cfg.Rules.Path)
	}
	rulesStore, err := rules.Load()
	if err != nil {
		logger.Fatal("load rules failed", zap.Error(err))
	}

	browserPool, err := browser.NewPool(browser.PoolConfig{UserAgent: "pagemd/1.0"})
	if err != nil {
		logger.Fatal("browser pool init failed", zap.Error(err))
	}
	defer browserPool.Close()

	metricsRegistry, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("metrics registry init failed", zap.Error(err))
	}

	cacheSelector := cache.New(ctx, cfg.Cache, logger.Named("cache"), metricsRegistry)

	pipe := pipeline.New(browserPool, cacheSelector, rulesStore, cfg.Pipeline, logger.Named("pipeline"), metricsRegistry)

	reportStore, err := buildReportStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("report store init failed", zap.Error(err))
	}

	webhookSender, err := buildWebhookSender(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		logger.Fatal("webhook sender init failed", zap.Error(err))
	}

	sitemapEnum := sitemap.New(sitemap.Config{UserAgent: "pagemd/1.0"}, logger.Named("sitemap"))

	orchestrator := job.New(pipe, sitemapEnum, reportStore, webhookSender, metricsRegistry, logger.Named("job"))

	apiServer := api.NewServer(pipe, orchestrator, metricsRegistry, metrics.Handler(), cfg, logger.Named("api"))
	apiServer.Mount("/v1/scrape", scrapeapi.NewHandler(pipe, scrapeapi.PipelineDefaults{
		AggressiveCleaning: cfg.Pipeline.AggressiveCleaning,
	}, logger.Named("scrapeapi")))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildReportStore assembles the mandatory local tier plus any configured
// secondary tiers (spec.md §6 "Persisted state").
func buildReportStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*store.ReportStore, error) {
	var secondary []store.SecondaryTier

	if cfg.Store.GCSEnabled {
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		gcsTier, err := store.NewGCSTier(client, cfg.Store.GCSBucket, cfg.Store.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("init gcs report tier: %w", err)
		}
		secondary = append(secondary, gcsTier)
	}

	if cfg.Store.PostgresEnabled() {
		pgStore, err := postgres.NewReportStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres report tier: %w", err)
		}
		secondary = append(secondary, pgStore)
	}

	reportDir := cfg.Job.ReportDir
	if reportDir == "" {
		reportDir = "reports"
	}
	return store.New(reportDir, secondary, logger.Named("store"))
}

// buildWebhookSender wires the optional Pub/Sub fanout described in
// SPEC_FULL.md's Domain Stack expansion of spec.md §6 webhook delivery.
func buildWebhookSender(ctx context.Context, cfg config.Config, logger *zap.Logger, metricsRegistry *metrics.Registry) (*webhook.Sender, error) {
	var fanout webhook.Fanout
	if cfg.Webhook.PubSubEnabled {
		pubsubFanout, err := webhook.NewPubSubFanout(ctx, cfg.Webhook.PubSubProject, cfg.Webhook.PubSubTopic, logger.Named("webhook-pubsub"))
		if err != nil {
			return nil, fmt.Errorf("init pubsub fanout: %w", err)
		}
		fanout = pubsubFanout
	}
	return webhook.New(webhook.Config{
		Timeout:     cfg.Webhook.Timeout(),
		MaxAttempts: cfg.Webhook.MaxAttempts,
	}, fanout, logger.Named("webhook"), metricsRegistry), nil
}
