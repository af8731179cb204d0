package job

import "time"

// Report is the on-disk shape written to reports/{jobId}.json
// (spec.md §6 "Persisted state").
type Report struct {
	ID        string          `json:"id"`
	Status    Status          `json:"status"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime,omitempty"`
	Duration  string          `json:"duration,omitempty"`
	Config    ConfigSummary   `json:"config"`
	Summary   Summary         `json:"summary"`
	Results   ResultsBySplit  `json:"results"`
	Error     string          `json:"error,omitempty"`
}

// ConfigSummary is the config-subset persisted alongside the report; it
// deliberately omits webhook secrets/headers.
type ConfigSummary struct {
	SitemapURL    string `json:"sitemapUrl,omitempty"`
	URLCount      int    `json:"urlCount"`
	MaxConcurrent int    `json:"maxConcurrent"`
	BatchSize     int    `json:"batchSize"`
}

type Summary struct {
	Total          int    `json:"total"`
	Processed      int    `json:"processed"`
	Successful     int    `json:"successful"`
	Failed         int    `json:"failed"`
	ProcessingTime string `json:"processingTime"`
}

// ResultItem is one URL's outcome within a persisted report or webhook
// payload. Markdown and Error are pointers so a failed result serializes
// markdown:null (rather than omitting the field) and a successful result
// serializes error:null (rather than an empty string), matching spec.md
// §6's documented payload shape.
type ResultItem struct {
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Markdown  *string   `json:"markdown"`
	Error     *string   `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata,omitempty"`
}

type ResultsBySplit struct {
	Successful []ResultItem `json:"successful"`
	Failed     []ResultItem `json:"failed"`
}

// BuildReport snapshots j into its persisted Report shape.
func BuildReport(j Job) Report {
	var duration string
	if !j.EndTime.IsZero() {
		duration = j.EndTime.Sub(j.StartTime).String()
	}
	return Report{
		ID:        j.ID,
		Status:    j.Status,
		StartTime: j.StartTime,
		EndTime:   j.EndTime,
		Duration:  duration,
		Config: ConfigSummary{
			SitemapURL:    j.Config.SitemapURL,
			URLCount:      len(j.Config.URLs),
			MaxConcurrent: j.Config.MaxConcurrent,
			BatchSize:     j.Config.BatchSize,
		},
		Summary: Summary{
			Total:          j.Counts.Total,
			Processed:      j.Counts.Processed,
			Successful:     j.Counts.Success,
			Failed:         j.Counts.Failed,
			ProcessingTime: duration,
		},
		Results: splitResults(j),
		Error:   j.Error,
	}
}

func splitResults(j Job) ResultsBySplit {
	var split ResultsBySplit
	for _, r := range j.URLState {
		if r.Success {
			split.Successful = append(split.Successful, ResultItem{
				URL: r.URL, Status: "success", Markdown: strPtr(r.Markdown), Timestamp: r.Timestamp, Metadata: r.Metadata,
			})
		} else {
			split.Failed = append(split.Failed, ResultItem{
				URL: r.URL, Status: "failed", Error: strPtr(r.Error), Timestamp: r.Timestamp,
			})
		}
	}
	return split
}

func strPtr(s string) *string { return &s }

// ProgressPayload is the in-flight webhook body (spec.md §6).
type ProgressPayload struct {
	JobID    string         `json:"jobId"`
	Status   string         `json:"status"`
	Progress ProgressDetail `json:"progress"`
	Timestamp time.Time     `json:"timestamp"`
	Extra    map[string]any `json:"-"`
}

type ProgressDetail struct {
	Processed  int        `json:"processed"`
	Total      int        `json:"total"`
	Percentage float64    `json:"percentage"`
	Success    int        `json:"success"`
	Failed     int        `json:"failed"`
	Batch      BatchDetail `json:"batch"`
}

type BatchDetail struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// FinalPayload is the completion webhook body (spec.md §6).
type FinalPayload struct {
	JobID     string         `json:"jobId"`
	Status    string         `json:"status"`
	Summary   Summary        `json:"summary"`
	Results   ResultsBySplit `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"-"`
}

func ProgressPayloadFor(j Job) ProgressPayload {
	pct := 0.0
	if j.Counts.Total > 0 {
		pct = float64(j.Counts.Processed) / float64(j.Counts.Total) * 100
	}
	return ProgressPayload{
		JobID:  j.ID,
		Status: "in_progress",
		Progress: ProgressDetail{
			Processed:  j.Counts.Processed,
			Total:      j.Counts.Total,
			Percentage: pct,
			Success:    j.Counts.Success,
			Failed:     j.Counts.Failed,
			Batch:      BatchDetail{Current: j.Counts.CurrentBatch, Total: len(j.Batches)},
		},
		Timestamp: time.Now(),
		Extra:     j.Config.Webhook.ExtraFields,
	}
}

func FinalPayloadFor(j Job) FinalPayload {
	report := BuildReport(j)
	return FinalPayload{
		JobID:     j.ID,
		Status:    string(j.Status),
		Summary:   report.Summary,
		Results:   report.Results,
		Timestamp: time.Now(),
		Extra:     j.Config.Webhook.ExtraFields,
	}
}
