// Package cache implements the two-tier fingerprint-keyed Artifact cache
// (spec.md §4.1): a shared networked KV tier with an in-process LRU
// fallback, gated by a single master switch.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	hashsha256 "github.com/JakeFAU/pagemd/internal/hash/sha256"
	"github.com/JakeFAU/pagemd/internal/pageopts"
)

// Artifact is the cached conversion output (spec.md §3).
type Artifact struct {
	URL       string    `json:"url"`
	Metadata  string    `json:"metadata"`
	Markdown  string    `json:"markdown"`
	Timestamp time.Time `json:"timestamp"`
}

// Fingerprint derives the deterministic cache key for url under opts,
// per spec.md §4.1: "sf4ai:" + url + "-" + canonical(target) + "-" + canonical(remove).
func Fingerprint(url string, opts pageopts.ConversionOptions) string {
	return fmt.Sprintf("sf4ai:%s-%s-%s",
		url,
		pageopts.CanonicalSelectors(opts.TargetSelectors),
		pageopts.CanonicalSelectors(opts.RemoveSelectors),
	)
}

// shortHash is used only for the probe key so repeated startups don't
// collide on a fixed literal in a shared external tier.
func shortHash(seed string) string {
	digest, err := hashsha256.New().Hash([]byte(seed))
	if err != nil {
		return seed
	}
	if len(digest) > 16 {
		return digest[:16]
	}
	return digest
}

// Tier is the identical get/set interface implemented by both cache tiers.
type Tier interface {
	Get(ctx context.Context, key string) (Artifact, bool)
	Set(ctx context.Context, key string, artifact Artifact, ttl time.Duration)
	Close() error
}

func marshalArtifact(a Artifact) ([]byte, error) {
	return json.Marshal(a)
}

func unmarshalArtifact(data []byte) (Artifact, error) {
	var a Artifact
	err := json.Unmarshal(data, &a)
	return a, err
}
