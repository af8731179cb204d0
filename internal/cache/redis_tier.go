package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTier is the shared networked KV tier. Errors are logged and treated
// as miss/no-op per spec.md §4.1: "Operations must never fail the caller."
type RedisTier struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisTierFromURL connects using a full connection URL (mode=external).
func NewRedisTierFromURL(url string, log *zap.Logger) (*RedisTier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisTier{client: redis.NewClient(opts), log: log}, nil
}

// RedisDialConfig captures the discrete connection parameters used by
// mode=internal.
type RedisDialConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisTierFromConfig connects using discrete host/port/password/db
// fields (mode=internal).
func NewRedisTierFromConfig(cfg RedisDialConfig, log *zap.Logger) *RedisTier {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisTier{client: client, log: log}
}

// Probe writes then reads back a canary value, per spec.md §4.1's tier
// selection rule ("set(probe,'ok',TTL=10s) then get(probe) equal to 'ok'").
func (t *RedisTier) Probe(ctx context.Context, probeKey string) error {
	if err := t.client.Set(ctx, probeKey, "ok", 10*time.Second).Err(); err != nil {
		return fmt.Errorf("probe set: %w", err)
	}
	val, err := t.client.Get(ctx, probeKey).Result()
	if err != nil {
		return fmt.Errorf("probe get: %w", err)
	}
	if val != "ok" {
		return fmt.Errorf("probe roundtrip mismatch: got %q", val)
	}
	return nil
}

// Get returns the cached Artifact for key, or false on miss or any error.
func (t *RedisTier) Get(ctx context.Context, key string) (Artifact, bool) {
	raw, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			t.log.Warn("cache: redis get failed, treating as miss", zap.Error(err))
		}
		return Artifact{}, false
	}
	artifact, err := unmarshalArtifact(raw)
	if err != nil {
		t.log.Warn("cache: redis entry unmarshal failed, treating as miss", zap.Error(err))
		return Artifact{}, false
	}
	return artifact, true
}

// Set writes artifact under key with ttl (seconds granularity). Failures
// are logged, never returned.
func (t *RedisTier) Set(ctx context.Context, key string, artifact Artifact, ttl time.Duration) {
	data, err := marshalArtifact(artifact)
	if err != nil {
		t.log.Warn("cache: redis marshal failed, dropping write", zap.Error(err))
		return
	}
	if err := t.client.Set(ctx, key, data, ttl).Err(); err != nil {
		t.log.Warn("cache: redis set failed", zap.Error(err))
	}
}

// Close releases the underlying connection pool.
func (t *RedisTier) Close() error {
	return t.client.Close()
}
