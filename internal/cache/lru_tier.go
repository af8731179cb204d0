package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUTier is the in-process fallback tier: a bounded, per-entry-TTL LRU
// used whenever the shared tier is unavailable or mode=none (spec.md §4.1).
type LRUTier struct {
	cache *expirable.LRU[string, Artifact]
}

// NewLRUTier builds an LRU of the given capacity with a fixed default TTL
// applied to every entry (golang-lru/v2's expirable.LRU has no per-Add TTL
// override, so ttl is fixed at construction and Set ignores its own ttl
// argument when it differs — see the note on Set below).
func NewLRUTier(capacity int, ttl time.Duration) *LRUTier {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRUTier{cache: expirable.NewLRU[string, Artifact](capacity, nil, ttl)}
}

// Get returns the cached Artifact for key, or false on miss.
func (t *LRUTier) Get(ctx context.Context, key string) (Artifact, bool) {
	return t.cache.Get(key)
}

// Set writes artifact under key. The ttl parameter is accepted to satisfy
// Tier but is not honored per-entry: expirable.LRU applies the TTL fixed at
// construction time to every key.
func (t *LRUTier) Set(ctx context.Context, key string, artifact Artifact, ttl time.Duration) {
	t.cache.Add(key, artifact)
}

// Close is a no-op; the LRU holds no external resources.
func (t *LRUTier) Close() error {
	return nil
}
