package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/job"
)

type fakeFanout struct {
	calls int32
}

func (f *fakeFanout) Publish(ctx context.Context, payload any) error {
	atomic.AddInt32(&f.calls, 1)
	return nil
}

func TestSendProgress_PostsJSONWithMergedExtraFields(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fanout := &fakeFanout{}
	sender := New(Config{Timeout: time.Second, MaxAttempts: 1}, fanout, zap.NewNop(), nil)

	spec := job.WebhookSpec{
		URL:         srv.URL,
		Headers:     map[string]string{"X-Api-Key": "secret"},
		ExtraFields: map[string]any{"tenant": "acme"},
	}
	payload := job.ProgressPayload{JobID: "job-1", Status: "in_progress"}

	err := sender.SendProgress(context.Background(), spec, payload)
	require.NoError(t, err)
	assert.Equal(t, "job-1", received["jobId"])
	assert.Equal(t, "acme", received["tenant"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&fanout.calls))
}

func TestSend_RetriesOnServerError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := New(Config{Timeout: time.Second, MaxAttempts: 3}, nil, zap.NewNop(), nil)
	sender.baseDelay = time.Millisecond
	sender.maxDelay = 2 * time.Millisecond

	err := sender.SendFinal(context.Background(), job.WebhookSpec{URL: srv.URL}, job.FinalPayload{JobID: "job-2"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSend_SkipsWhenURLEmpty(t *testing.T) {
	sender := New(Config{}, nil, zap.NewNop(), nil)
	err := sender.SendProgress(context.Background(), job.WebhookSpec{}, job.ProgressPayload{})
	require.NoError(t, err)
}

func TestSend_ReturnsErrorAfterExhaustingAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := New(Config{Timeout: time.Second, MaxAttempts: 2}, nil, zap.NewNop(), nil)
	sender.baseDelay = time.Millisecond
	sender.maxDelay = 2 * time.Millisecond

	err := sender.SendFinal(context.Background(), job.WebhookSpec{URL: srv.URL}, job.FinalPayload{JobID: "job-3"})
	require.Error(t, err)
}
