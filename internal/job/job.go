// Package job implements the asynchronous Job Orchestrator (spec.md §4.8):
// sitemap/URL-list enumeration, bounded-concurrency batching, retries,
// cancellation, persisted state and webhooks.
package job

import (
	"time"

	"github.com/JakeFAU/pagemd/internal/pageopts"
)

// Status is a Job's lifecycle state (spec.md §3).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// WebhookSpec is borrowed verbatim from the job's config (spec.md §3).
type WebhookSpec struct {
	URL             string
	Headers         map[string]string
	ExtraFields     map[string]any
	ProgressUpdates bool
}

// Config is the frozen configuration a Job runs with.
type Config struct {
	SitemapURL       string
	URLs             []string
	Options          pageopts.ConversionOptions
	MaxConcurrent    int
	BatchSize        int
	ProcessingDelay  time.Duration
	RetryCount       int
	RetryDelay       time.Duration
	Webhook          WebhookSpec
}

// ProcessingResult is one URL's outcome (spec.md §3). Immutable after
// insertion into a Job's urlState.
type ProcessingResult struct {
	URL       string
	Success   bool
	Markdown  string
	Metadata  string
	Error     string
	Timestamp time.Time
}

// Counts mirrors the reconciled processed/success/failed invariant
// (spec.md §3, §9 Open Question 2): always recomputed from urlState,
// never incremented ad hoc.
type Counts struct {
	Total        int
	Processed    int
	Success      int
	Failed       int
	CurrentBatch int
}

// Job is the orchestrator's unit of work. A Job value is exclusively owned
// by its driver goroutine while that goroutine holds it; the driver
// publishes copies into Orchestrator's map at every externally observable
// point, and Cancel/Get only ever touch those published copies (spec.md §3
// Ownership).
type Job struct {
	ID        string
	Status    Status
	Config    Config
	Batches   [][]string
	URLState  map[string]ProcessingResult
	Counts    Counts
	StartTime time.Time
	EndTime   time.Time
	ReportPath string
	Error     string
}

// Snapshot is a read-only, copy-on-read view of a Job returned to API
// callers (spec.md §3: "Cache reads never mutate other state" mirrored
// here for job reads).
type Snapshot struct {
	ID        string
	Status    Status
	Counts    Counts
	StartTime time.Time
	EndTime   time.Time
	Error     string
	Results   []ProcessingResult
}

// cloneURLState returns a shallow copy of urlState. Job.URLState is a map,
// a reference type, so simply copying a Job value does not stop the driver
// goroutine's later writes from being visible through an already-published
// copy; publish clones it so a published Job is frozen at publish time.
func cloneURLState(urlState map[string]ProcessingResult) map[string]ProcessingResult {
	clone := make(map[string]ProcessingResult, len(urlState))
	for k, v := range urlState {
		clone[k] = v
	}
	return clone
}

// snapshot copies j into a Snapshot. Job values are only ever handled by
// their driver goroutine or under Orchestrator's lock, so this copy is the
// only externally visible view (spec.md §3 Ownership).
func (j Job) snapshot() Snapshot {
	results := make([]ProcessingResult, 0, len(j.URLState))
	for _, r := range j.URLState {
		results = append(results, r)
	}
	return Snapshot{
		ID:        j.ID,
		Status:    j.Status,
		Counts:    j.Counts,
		StartTime: j.StartTime,
		EndTime:   j.EndTime,
		Error:     j.Error,
		Results:   results,
	}
}

// reconcileCounts recomputes processed/success/failed from urlState and
// returns the updated Job. This is the only place counts are ever assigned
// (spec.md §9 Open Question 2).
func (j Job) reconcileCounts() Job {
	success, failed := 0, 0
	for _, r := range j.URLState {
		if r.Success {
			success++
		} else {
			failed++
		}
	}
	j.Counts.Success = success
	j.Counts.Failed = failed
	j.Counts.Processed = success + failed
	return j
}
