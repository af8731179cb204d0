package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	clocksystem "github.com/JakeFAU/pagemd/internal/clock/system"
	"github.com/JakeFAU/pagemd/internal/config"
)

// Selector is the top-level Cache facade the pipeline talks to. It resolves
// to exactly one Tier at startup and applies the master switch on every
// call (spec.md §4.1).
type Selector struct {
	tier     Tier
	disabled bool
	redisTTL time.Duration
	lruTTL   time.Duration
	usingLRU bool
	log      *zap.Logger
	metrics  MetricsRecorder
}

// New resolves the configured cache tier, probing the shared tier and
// falling back to an in-process LRU on any connect/probe failure. metrics
// may be nil.
func New(ctx context.Context, cfg config.CacheConfig, log *zap.Logger, metrics MetricsRecorder) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	sel := &Selector{
		disabled: cfg.DisableAllCaching,
		redisTTL: cfg.RedisTTL(),
		lruTTL:   cfg.LRUTTL(),
		log:      log,
		metrics:  metrics,
	}

	probeKey := shortHash(fmt.Sprintf("cache-probe-%d", clocksystem.New().Now().UnixNano()))

	switch cfg.ModeValue() {
	case config.CacheModeExternal:
		tier, err := NewRedisTierFromURL(cfg.ExternalURL, log)
		if err == nil && probeOK(ctx, tier, probeKey) {
			sel.tier = tier
			return sel
		}
		if tier != nil {
			_ = tier.Close()
		}
		log.Warn("cache: external tier unavailable, falling back to LRU", zap.Error(err))
	case config.CacheModeInternal:
		tier := NewRedisTierFromConfig(RedisDialConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if probeOK(ctx, tier, probeKey) {
			sel.tier = tier
			return sel
		}
		_ = tier.Close()
		log.Warn("cache: internal tier unavailable, falling back to LRU")
	}

	sel.tier = NewLRUTier(cfg.LRUCapacity, cfg.LRUTTL())
	sel.usingLRU = true
	return sel
}

// probeOK exercises the shared tier with a key unique to this process
// startup (via clock/system.Clock), so repeated restarts against a shared
// external tier never collide on a fixed literal.
func probeOK(ctx context.Context, tier *RedisTier, key string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return tier.Probe(probeCtx, "sf4ai:"+key) == nil
}

// tierName labels metrics with the resolved tier, not the configured mode,
// so a failed-over external tier reports as "lru" rather than "redis".
func (s *Selector) tierName() string {
	if s.usingLRU {
		return "lru"
	}
	return "redis"
}

// Get returns the cached Artifact for key. The master switch always misses.
func (s *Selector) Get(ctx context.Context, key string) (Artifact, bool) {
	if s.disabled {
		s.metrics.ObserveCacheOperation("disabled", "get", "miss")
		return Artifact{}, false
	}
	artifact, ok := s.tier.Get(ctx, key)
	result := "miss"
	if ok {
		result = "hit"
	}
	s.metrics.ObserveCacheOperation(s.tierName(), "get", result)
	return artifact, ok
}

// Set writes artifact under key using the tier-appropriate TTL. The unit
// mismatch is intentional (spec.md §4.1, §9 Open Question 3): the shared
// tier's TTL is seconds-granular, the LRU tier's is millisecond-granular,
// and no conversion between the two is invented.
func (s *Selector) Set(ctx context.Context, key string, artifact Artifact) {
	if s.disabled {
		s.metrics.ObserveCacheOperation("disabled", "set", "skipped")
		return
	}
	ttl := s.redisTTL
	if s.usingLRU {
		ttl = s.lruTTL
	}
	s.tier.Set(ctx, key, artifact, ttl)
	s.metrics.ObserveCacheOperation(s.tierName(), "set", "ok")
}

// Close releases the resolved tier's resources.
func (s *Selector) Close() error {
	return s.tier.Close()
}
