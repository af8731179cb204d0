package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pagemd/internal/pageopts"
)

func TestFingerprint_IsDeterministicAndOrderSensitive(t *testing.T) {
	optsA := pageopts.ConversionOptions{TargetSelectors: []string{"main", "article"}}
	optsB := pageopts.ConversionOptions{TargetSelectors: []string{"article", "main"}}

	fpA1 := Fingerprint("https://example.com", optsA)
	fpA2 := Fingerprint("https://example.com", optsA)
	fpB := Fingerprint("https://example.com", optsB)

	assert.Equal(t, fpA1, fpA2)
	assert.NotEqual(t, fpA1, fpB)
	assert.Contains(t, fpA1, "sf4ai:")
}

func TestLRUTier_SetThenGet(t *testing.T) {
	tier := NewLRUTier(10, time.Minute)
	ctx := context.Background()
	artifact := Artifact{URL: "https://example.com", Markdown: "# Hi"}

	_, ok := tier.Get(ctx, "missing")
	assert.False(t, ok)

	tier.Set(ctx, "key", artifact, time.Minute)
	got, ok := tier.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, artifact.Markdown, got.Markdown)
}

func TestLRUTier_DefaultsCapacityWhenNonPositive(t *testing.T) {
	tier := NewLRUTier(0, time.Minute)
	tier.Set(context.Background(), "a", Artifact{}, time.Minute)
	_, ok := tier.Get(context.Background(), "a")
	assert.True(t, ok)
}

func TestSelector_MasterSwitchForcesMiss(t *testing.T) {
	sel := &Selector{tier: NewLRUTier(10, time.Minute), disabled: true, metrics: noopRecorder{}}
	sel.Set(context.Background(), "k", Artifact{Markdown: "x"})
	_, ok := sel.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestSelector_UsesLRUTierRoundtrip(t *testing.T) {
	sel := &Selector{tier: NewLRUTier(10, time.Minute), lruTTL: time.Minute, usingLRU: true, metrics: noopRecorder{}}
	sel.Set(context.Background(), "k", Artifact{Markdown: "hello"})
	got, ok := sel.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Markdown)
}
