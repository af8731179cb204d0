package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/cache"
	clocksystem "github.com/JakeFAU/pagemd/internal/clock/system"
	idsystem "github.com/JakeFAU/pagemd/internal/id/uuid"
	"github.com/JakeFAU/pagemd/internal/pageopts"
)

// IDGenerator mints job IDs. Satisfied by internal/id/uuid.Generator.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock is the orchestrator's source of wall-clock time, so job
// timestamps can be faked in tests. Satisfied by internal/clock/system.Clock.
type Clock interface {
	Now() time.Time
}

// Converter is the Single-URL Pipeline surface the orchestrator drives.
type Converter interface {
	Convert(ctx context.Context, url string, opts pageopts.ConversionOptions) (cache.Artifact, error)
}

// Enumerator resolves a sitemap (or sitemap index) URL into a flat,
// deduplicated list of syntactically valid URLs (spec.md §4.8 step 1).
// URL-list sources do not go through it; the orchestrator deduplicates
// Config.URLs itself.
type Enumerator interface {
	Enumerate(ctx context.Context, sitemapURL string) ([]string, error)
}

// ReportStore persists a Job's Report to reports/{jobId}.json and, when
// configured, secondary tiers (spec.md §6 "Persisted state").
type ReportStore interface {
	SaveReport(ctx context.Context, jobID string, report Report) error
}

// WebhookSender delivers progress and final payloads best-effort
// (spec.md §6, Non-goals: "guaranteed webhook delivery").
type WebhookSender interface {
	SendProgress(ctx context.Context, spec WebhookSpec, payload ProgressPayload) error
	SendFinal(ctx context.Context, spec WebhookSpec, payload FinalPayload) error
}

// MetricsRecorder is the process-wide counters from spec.md §4.8.
type MetricsRecorder interface {
	IncURLOutcome(success bool)
	ObserveProcessingTime(d time.Duration)
	SetActiveJobs(n int)
	IncBatch(result string)
}

type noopMetrics struct{}

func (noopMetrics) IncURLOutcome(bool)                  {}
func (noopMetrics) ObserveProcessingTime(time.Duration) {}
func (noopMetrics) SetActiveJobs(int)                   {}
func (noopMetrics) IncBatch(string)                     {}

// Orchestrator creates and drives Jobs in the background. Each Job is
// exclusively owned by the goroutine running its driver loop; external
// readers only ever see a Snapshot (spec.md §3 Ownership).
type Orchestrator struct {
	converter Converter
	enumerate Enumerator
	store     ReportStore
	webhooks  WebhookSender
	metrics   MetricsRecorder
	ids       IDGenerator
	clock     Clock
	log       *zap.Logger

	mu     sync.RWMutex
	jobs   map[string]Job
	cancel map[string]context.CancelFunc
}

// New builds an Orchestrator. metrics may be nil.
func New(converter Converter, enumerate Enumerator, store ReportStore, webhooks WebhookSender, metrics MetricsRecorder, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Orchestrator{
		converter: converter,
		enumerate: enumerate,
		store:     store,
		webhooks:  webhooks,
		metrics:   metrics,
		ids:       idsystem.NewUUIDGenerator(),
		clock:     clocksystem.New(),
		log:       log,
		jobs:      make(map[string]Job),
		cancel:    make(map[string]context.CancelFunc),
	}
}

// now returns the current time via the injected Clock, falling back to
// time.Now for values constructed directly (as orchestrator_test.go's
// reconcileMissing test does) rather than through New.
func (o *Orchestrator) now() time.Time {
	if o.clock == nil {
		return time.Now()
	}
	return o.clock.Now()
}

func (o *Orchestrator) newID() string {
	if o.ids == nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	id, err := o.ids.NewID()
	if err != nil {
		return fmt.Sprintf("job-%d", o.now().UnixNano())
	}
	return id
}

// CreateJob registers a new Job and starts its driver in the background,
// returning the JobId immediately (spec.md §4.8).
func (o *Orchestrator) CreateJob(cfg Config) string {
	id := o.newID()
	j := Job{
		ID:        id,
		Status:    StatusPending,
		Config:    cfg,
		URLState:  make(map[string]ProcessingResult),
		StartTime: o.now(),
	}

	driverCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.jobs[id] = j
	o.cancel[id] = cancel
	o.metrics.SetActiveJobs(len(o.cancel))
	o.mu.Unlock()
	// o.jobs[id] holds j's own URLState map here, not a clone: the map is
	// freshly allocated and empty, and drive() enumerates its source before
	// touching URLState, so no writer races this initial read-visible copy.

	go o.drive(driverCtx, j)
	return id
}

// Cancel requests cooperative cancellation of a running job (spec.md §5).
// It never mutates job state directly: it only signals the driver's
// context, and the driver observes cancellation and publishes the
// cancelled status itself, preserving single-writer ownership.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusCancelled {
		return nil
	}
	if cancel, ok := o.cancel[jobID]; ok {
		cancel()
	}
	return nil
}

// Get returns a copy-on-read Snapshot of a job's current state.
func (o *Orchestrator) Get(jobID string) (Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return Snapshot{}, false
	}
	return j.snapshot(), true
}

// publish writes a frozen copy of j into the shared map under lock. It is
// the only point where the driver's local state becomes visible to
// Cancel/Get. URLState is cloned so the driver's subsequent unsynchronized
// writes to its own local map (runBatch) never race with a concurrent
// Get's read of the previously published copy.
func (o *Orchestrator) publish(j Job) {
	stored := j
	stored.URLState = cloneURLState(j.URLState)
	o.mu.Lock()
	o.jobs[j.ID] = stored
	o.mu.Unlock()
}

// drive is the Job's single-writer driver loop (spec.md §4.8). j is a
// value the driver goroutine owns exclusively; it is published into
// Orchestrator's map at every externally observable point.
func (o *Orchestrator) drive(ctx context.Context, j Job) {
	defer func() {
		o.mu.Lock()
		delete(o.cancel, j.ID)
		o.metrics.SetActiveJobs(len(o.cancel))
		o.mu.Unlock()
	}()

	urls, err := o.enumerateSource(ctx, j)
	if err != nil {
		o.finishAsFailed(ctx, j, err)
		return
	}

	j.Counts.Total = len(urls)
	j.Batches = partition(urls, batchSizeOrDefault(j.Config.BatchSize))
	j.Status = StatusProcessing
	o.publish(j)

	for batchIdx, batch := range j.Batches {
		if ctx.Err() != nil {
			j.Status = StatusCancelled
			o.persistAndStop(ctx, j)
			return
		}
		j.Counts.CurrentBatch = batchIdx + 1
		j = o.runBatch(ctx, j, batch)
		j = j.reconcileCounts()
		o.metrics.IncBatch(batchResult(j, batch))
		o.publish(j)

		if err := o.store.SaveReport(ctx, j.ID, BuildReport(j)); err != nil {
			o.log.Warn("job: persist batch state failed", zap.String("jobId", j.ID), zap.Error(err))
		}
		if j.Config.Webhook.ProgressUpdates && j.Config.Webhook.URL != "" {
			if err := o.webhooks.SendProgress(ctx, j.Config.Webhook, ProgressPayloadFor(j)); err != nil {
				o.log.Warn("job: progress webhook failed", zap.String("jobId", j.ID), zap.Error(err))
			}
		}

		if batchIdx < len(j.Batches)-1 && j.Config.ProcessingDelay > 0 {
			sleepOrCancel(ctx, j.Config.ProcessingDelay)
		}
	}

	if ctx.Err() != nil {
		j.Status = StatusCancelled
		o.persistAndStop(ctx, j)
		return
	}

	j = o.reconcileMissing(j)
	j.Status = StatusCompleted
	j.EndTime = o.now()
	j = j.reconcileCounts()
	o.publish(j)

	if err := o.store.SaveReport(ctx, j.ID, BuildReport(j)); err != nil {
		o.log.Warn("job: final persist failed", zap.String("jobId", j.ID), zap.Error(err))
	}
	if j.Config.Webhook.URL != "" {
		if err := o.webhooks.SendFinal(ctx, j.Config.Webhook, FinalPayloadFor(j)); err != nil {
			o.log.Warn("job: final webhook failed", zap.String("jobId", j.ID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) enumerateSource(ctx context.Context, j Job) ([]string, error) {
	if j.Config.SitemapURL != "" {
		return o.enumerate.Enumerate(ctx, j.Config.SitemapURL)
	}
	return dedupe(j.Config.URLs), nil
}

// runBatch runs a bounded worker group over batch, applying the pipeline
// (with the orchestrator's own outer retry policy) to each URL not
// already present in urlState (spec.md §4.8 step 3b, at-most-once), and
// returns j with those results folded in.
func (o *Orchestrator) runBatch(ctx context.Context, j Job, batch []string) Job {
	pending := make([]string, 0, len(batch))
	for _, u := range batch {
		if _, done := j.URLState[u]; !done {
			pending = append(pending, u)
		}
	}

	outcomes := RunBounded(pending, j.Config.MaxConcurrent, func(u string) (ProcessingResult, error) {
		return o.processWithOuterRetry(ctx, j, u), nil
	})

	for _, outcome := range outcomes {
		j.URLState[outcome.Item] = outcome.Value
		o.metrics.IncURLOutcome(outcome.Value.Success)
	}
	return j
}

// batchResult labels a completed batch "ok" if every URL in it succeeded,
// "partial" if some but not all did, and "error" if all failed.
func batchResult(j Job, batch []string) string {
	successes, total := 0, 0
	for _, u := range batch {
		result, ok := j.URLState[u]
		if !ok {
			continue
		}
		total++
		if result.Success {
			successes++
		}
	}
	switch {
	case total == 0 || successes == total:
		return "ok"
	case successes == 0:
		return "error"
	default:
		return "partial"
	}
}

// processWithOuterRetry applies the orchestrator's retryCount full
// re-invocations of the pipeline on top of the pipeline's own internal
// transient-error retries (spec.md §4.8 "Per-URL retry"). A retried URL
// replaces, not appends to, its urlState entry, which callers do by simply
// overwriting the map at the returned key.
func (o *Orchestrator) processWithOuterRetry(ctx context.Context, j Job, url string) ProcessingResult {
	attempts := j.Config.RetryCount + 1
	var last ProcessingResult
	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		artifact, err := o.converter.Convert(ctx, url, j.Config.Options)
		o.metrics.ObserveProcessingTime(time.Since(start))
		if err == nil {
			return ProcessingResult{URL: url, Success: true, Markdown: artifact.Markdown, Metadata: artifact.Metadata, Timestamp: o.now()}
		}
		last = ProcessingResult{URL: url, Success: false, Error: err.Error(), Timestamp: o.now()}
		if attempt < attempts-1 && j.Config.RetryDelay > 0 {
			sleepOrCancel(ctx, j.Config.RetryDelay)
		}
	}
	return last
}

// reconcileMissing implements spec.md §4.8 step 4: any input URL never
// recorded gets a synthetic failure.
func (o *Orchestrator) reconcileMissing(j Job) Job {
	for _, batch := range j.Batches {
		for _, u := range batch {
			if _, ok := j.URLState[u]; !ok {
				j.URLState[u] = ProcessingResult{
					URL:       u,
					Success:   false,
					Error:     "URL was skipped during processing",
					Timestamp: o.now(),
				}
			}
		}
	}
	return j
}

func (o *Orchestrator) persistAndStop(ctx context.Context, j Job) {
	j = j.reconcileCounts()
	j.EndTime = o.now()
	o.publish(j)
	if err := o.store.SaveReport(ctx, j.ID, BuildReport(j)); err != nil {
		o.log.Warn("job: persist on cancel failed", zap.String("jobId", j.ID), zap.Error(err))
	}
}

func (o *Orchestrator) finishAsFailed(ctx context.Context, j Job, err error) {
	j.Status = StatusFailed
	j.Error = err.Error()
	j.EndTime = o.now()
	o.publish(j)
	if serr := o.store.SaveReport(ctx, j.ID, BuildReport(j)); serr != nil {
		o.log.Warn("job: persist on enumeration failure failed", zap.String("jobId", j.ID), zap.Error(serr))
	}
}

func partition(urls []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 10
	}
	var batches [][]string
	for i := 0; i < len(urls); i += batchSize {
		end := i + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		batches = append(batches, urls[i:end])
	}
	return batches
}

func batchSizeOrDefault(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func sleepOrCancel(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
