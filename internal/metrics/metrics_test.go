package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r == nil {
		t.Fatal("New() returned nil registry")
	}
}

func TestIncConversion_IncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r.IncConversion("success")
	if val := testutil.ToFloat64(r.conversionsTotal.WithLabelValues("success")); val != 1 {
		t.Errorf("expected conversionsTotal[success] = 1, got %f", val)
	}
}

func TestIncURLOutcome_UsesSuccessFailureLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r.IncURLOutcome(true)
	r.IncURLOutcome(false)
	if val := testutil.ToFloat64(r.urlOutcomesTotal.WithLabelValues("success")); val != 1 {
		t.Errorf("expected 1 success, got %f", val)
	}
	if val := testutil.ToFloat64(r.urlOutcomesTotal.WithLabelValues("failure")); val != 1 {
		t.Errorf("expected 1 failure, got %f", val)
	}
}

func TestSetActiveJobs_SetsGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r.SetActiveJobs(3)
	if val := testutil.ToFloat64(r.activeJobs); val != 3 {
		t.Errorf("expected activeJobs = 3, got %f", val)
	}
}

func TestObserveHTTPRequest_RecordsCountAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r.ObserveHTTPRequest("GET", "/jobs", 200, 15*time.Millisecond)
	if val := testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("GET", "200")); val != 1 {
		t.Errorf("expected httpRequestsTotal[GET,200] = 1, got %f", val)
	}
	if val := testutil.CollectAndCount(r.httpRequestDurationSeconds); val <= 0 {
		t.Errorf("expected httpRequestDurationSeconds to have observations, got %d", val)
	}
}
