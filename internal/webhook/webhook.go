// Package webhook delivers job progress and completion payloads to a
// user-configured HTTP endpoint (spec.md §6), best-effort with bounded
// retries. Delivery failures are logged and returned to the caller; the
// job driver only logs them and carries on.
package webhook

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/job"
)

// Sender POSTs webhook payloads with a jittered exponential backoff retry
// policy, grounded on the teacher's internal/crawler/retry_policy.go.
type Sender struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	log         *zap.Logger
	fanout      Fanout
	metrics     MetricsRecorder
}

// Fanout is an optional secondary delivery channel (e.g. Pub/Sub) that
// receives the same payloads as the HTTP sender.
type Fanout interface {
	Publish(ctx context.Context, payload any) error
}

// Config governs HTTP delivery.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
}

// New builds a Sender. fanout and metrics may be nil.
func New(cfg Config, fanout Fanout, log *zap.Logger, metrics MetricsRecorder) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sender{
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
		log:         log,
		fanout:      fanout,
		metrics:     metrics,
	}
}

// SendProgress implements job.WebhookSender.
func (s *Sender) SendProgress(ctx context.Context, spec job.WebhookSpec, payload job.ProgressPayload) error {
	return s.send(ctx, "progress", spec, mergeExtra(progressJSON(payload), spec.ExtraFields), payload)
}

// SendFinal implements job.WebhookSender.
func (s *Sender) SendFinal(ctx context.Context, spec job.WebhookSpec, payload job.FinalPayload) error {
	return s.send(ctx, "final", spec, mergeExtra(finalJSON(payload), spec.ExtraFields), payload)
}

func (s *Sender) send(ctx context.Context, kind string, spec job.WebhookSpec, body map[string]any, raw any) error {
	if spec.URL == "" {
		return nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			sleepOrCancel(ctx, s.backoff(attempt))
		}
		lastErr = s.attempt(ctx, spec, data)
		if lastErr == nil {
			break
		}
		s.log.Warn("webhook: delivery attempt failed", zap.String("url", spec.URL), zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}

	result := "ok"
	if lastErr != nil {
		result = "error"
	}
	s.metrics.ObserveWebhookRequest(kind, result)

	if s.fanout != nil {
		if err := s.fanout.Publish(ctx, raw); err != nil {
			s.log.Warn("webhook: fanout publish failed", zap.Error(err))
		}
	}

	return lastErr
}

func (s *Sender) attempt(ctx context.Context, spec job.WebhookSpec, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Sender) backoff(attempt int) time.Duration {
	delay := float64(s.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.maxDelay) {
		delay = float64(s.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepOrCancel(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// progressJSON/finalJSON round-trip through encoding/json so callers can
// merge in ExtraFields (job.ProgressPayload/FinalPayload deliberately keep
// Extra unexported from JSON via `json:"-"` since its shape is caller-defined).
func progressJSON(p job.ProgressPayload) map[string]any {
	return toMap(p)
}

func finalJSON(p job.FinalPayload) map[string]any {
	return toMap(p)
}

func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	_ = json.Unmarshal(data, &out)
	return out
}

func mergeExtra(body map[string]any, extra map[string]any) map[string]any {
	for k, v := range extra {
		body[k] = v
	}
	return body
}
