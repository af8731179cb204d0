package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 30000, cfg.Pipeline.PageTimeoutMs)
	assert.Equal(t, 500, cfg.Pipeline.MinContentLength)
	assert.True(t, cfg.Pipeline.AggressiveCleaning)
	assert.False(t, cfg.Pipeline.RemoveImages)
	assert.Equal(t, CacheModeNone, cfg.Cache.ModeValue())
	assert.Equal(t, 5, cfg.Job.DefaultMaxConcurrent)
	assert.Equal(t, 10, cfg.Job.DefaultBatchSize)
	assert.Equal(t, "reports", cfg.Job.ReportDir)
}

func TestConfig_Validate_RejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Server.Port = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Cache.Mode = "external"
	bad.Cache.ExternalURL = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Auth.Enabled = true
	bad.Auth.APIKey = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Job.DefaultBatchSize = 0
	assert.Error(t, bad.Validate())
}

func TestPipelineConfig_DurationHelpers(t *testing.T) {
	p := PipelineConfig{PageTimeoutMs: 30000, ScrollWaitMs: 200}
	assert.Equal(t, "30s", p.PageTimeout().String())
	assert.Equal(t, "200ms", p.ScrollWait().String())
}

func TestCacheConfig_TTLHelpers(t *testing.T) {
	c := CacheConfig{RedisTTLSeconds: 3600, LRUTTLMs: 3600000}
	assert.Equal(t, "1h0m0s", c.RedisTTL().String())
	assert.Equal(t, "1h0m0s", c.LRUTTL().String())
}
