package pipeline

import "time"

// MetricsRecorder is the narrow surface the pipeline needs from
// internal/metrics; kept as a local interface so this package does not
// import the concrete Prometheus collectors.
type MetricsRecorder interface {
	ObserveNavigation(d time.Duration)
	IncConversion(outcome string)
	IncFallbackStage(stage int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveNavigation(time.Duration) {}
func (noopRecorder) IncConversion(string)            {}
func (noopRecorder) IncFallbackStage(int)            {}
