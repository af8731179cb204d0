package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/cache"
	"github.com/JakeFAU/pagemd/internal/config"
	"github.com/JakeFAU/pagemd/internal/job"
	"github.com/JakeFAU/pagemd/internal/pageopts"
)

type fakeConverter struct {
	fail bool
}

func (f *fakeConverter) Convert(_ context.Context, url string, _ pageopts.ConversionOptions) (cache.Artifact, error) {
	if f.fail {
		return cache.Artifact{}, fmt.Errorf("navigate: net::ERR_FAILED")
	}
	return cache.Artifact{URL: url, Markdown: "# hi"}, nil
}

type fakeEnumerator struct{ urls []string }

func (f *fakeEnumerator) Enumerate(context.Context, string) ([]string, error) { return f.urls, nil }

type fakeStore struct{}

func (fakeStore) SaveReport(context.Context, string, job.Report) error { return nil }

type fakeWebhook struct{}

func (fakeWebhook) SendProgress(context.Context, job.WebhookSpec, job.ProgressPayload) error {
	return nil
}
func (fakeWebhook) SendFinal(context.Context, job.WebhookSpec, job.FinalPayload) error { return nil }

func newTestServer(t *testing.T, converter *fakeConverter) *Server {
	t.Helper()
	orch := job.New(converter, &fakeEnumerator{urls: []string{"https://example.com/a"}}, fakeStore{}, fakeWebhook{}, nil, zap.NewNop())
	cfg := config.Config{
		Job: config.JobConfig{
			DefaultMaxConcurrent:     2,
			DefaultBatchSize:         5,
			DefaultProcessingDelayMs: 10,
			DefaultRetryCount:        1,
			DefaultRetryDelayMs:      10,
		},
	}
	return NewServer(converter, orch, nil, nil, cfg, zap.NewNop())
}

func TestHealthz_ReturnsOK(t *testing.T) {
	s := newTestServer(t, &fakeConverter{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConvert_ReturnsArtifactOnSuccess(t *testing.T) {
	s := newTestServer(t, &fakeConverter{})
	body, _ := json.Marshal(convertRequest{URL: "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/v1/convert", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var artifact cache.Artifact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &artifact))
	assert.Equal(t, "# hi", artifact.Markdown)
}

func TestConvert_RejectsMissingURL(t *testing.T) {
	s := newTestServer(t, &fakeConverter{})
	body, _ := json.Marshal(convertRequest{})
	req := httptest.NewRequest(http.MethodPost, "/v1/convert", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvert_ReturnsBadGatewayOnPipelineFailure(t *testing.T) {
	s := newTestServer(t, &fakeConverter{fail: true})
	body, _ := json.Marshal(convertRequest{URL: "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/v1/convert", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSubmitJob_ThenStatusAndResult(t *testing.T) {
	s := newTestServer(t, &fakeConverter{})
	body, _ := json.Marshal(submitJobRequest{URLs: []string{"https://example.com/a"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	jobID := accepted["jobId"]
	require.NotEmpty(t, jobID)

	deadline := time.Now().Add(2 * time.Second)
	var statusCode int
	for time.Now().Before(deadline) {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID+"/status", nil)
		s.Handler().ServeHTTP(w, req)
		statusCode = w.Code
		var payload map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &payload)
		if payload["status"] == "completed" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, http.StatusOK, statusCode)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID+"/result", nil)
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitJob_RejectsEmptyRequest(t *testing.T) {
	s := newTestServer(t, &fakeConverter{})
	body, _ := json.Marshal(submitJobRequest{})
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobStatus_UnknownJobReturns404(t *testing.T) {
	s := newTestServer(t, &fakeConverter{})
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/does-not-exist/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelJob_UnknownJobReturns404(t *testing.T) {
	s := newTestServer(t, &fakeConverter{})
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/does-not-exist/cancel", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIKeyMiddleware_RejectsMissingKey(t *testing.T) {
	orch := job.New(&fakeConverter{}, &fakeEnumerator{}, fakeStore{}, fakeWebhook{}, nil, zap.NewNop())
	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}}
	s := NewServer(&fakeConverter{}, orch, nil, nil, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
