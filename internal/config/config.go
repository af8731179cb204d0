// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob listed in the service's
// external interfaces table, loaded from an optional config file and from
// environment variables (prefixed CRAWLER_), which take precedence over
// values from the file.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Job      JobConfig      `mapstructure:"job"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Store    StoreConfig    `mapstructure:"store"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig gates the optional API-key middleware inherited from the
// teacher's HTTP surface. It is ambient, not a spec.md feature.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PipelineConfig governs the single-URL conversion pipeline (spec.md §4.7, §6).
type PipelineConfig struct {
	MaxRetries         int  `mapstructure:"max_retries"`
	PageTimeoutMs      int  `mapstructure:"page_timeout_ms"`
	MinContentLength   int  `mapstructure:"min_content_length"`
	ScrollWaitMs       int  `mapstructure:"scroll_wait_ms"`
	AggressiveCleaning bool `mapstructure:"aggressive_cleaning"`
	RemoveImages       bool `mapstructure:"remove_images"`
}

// PageTimeout returns the navigation timeout as a duration.
func (p PipelineConfig) PageTimeout() time.Duration {
	return time.Duration(p.PageTimeoutMs) * time.Millisecond
}

// ScrollWait returns the post-scroll wait as a duration.
func (p PipelineConfig) ScrollWait() time.Duration {
	return time.Duration(p.ScrollWaitMs) * time.Millisecond
}

// CacheMode selects the shared cache tier backend.
type CacheMode string

// Supported cache modes (spec.md §4.1).
const (
	CacheModeNone     CacheMode = "none"
	CacheModeInternal CacheMode = "internal"
	CacheModeExternal CacheMode = "external"
)

// CacheConfig governs the two-tier cache (spec.md §4.1, §6).
type CacheConfig struct {
	Mode              string `mapstructure:"mode"`
	ExternalURL       string `mapstructure:"external_url"`
	RedisHost         string `mapstructure:"redis_host"`
	RedisPort         int    `mapstructure:"redis_port"`
	RedisPassword     string `mapstructure:"redis_password"`
	RedisDB           int    `mapstructure:"redis_db"`
	RedisTTLSeconds   int    `mapstructure:"redis_cache_ttl_seconds"`
	LRUTTLMs          int    `mapstructure:"lru_cache_ttl_ms"`
	LRUCapacity       int    `mapstructure:"lru_capacity"`
	DisableAllCaching bool   `mapstructure:"disable_all_caching"`
}

// ModeValue returns the typed cache mode, defaulting to none for unknown values.
func (c CacheConfig) ModeValue() CacheMode {
	switch CacheMode(strings.ToLower(c.Mode)) {
	case CacheModeInternal:
		return CacheModeInternal
	case CacheModeExternal:
		return CacheModeExternal
	default:
		return CacheModeNone
	}
}

// RedisTTL returns the shared-tier TTL as a duration (seconds).
func (c CacheConfig) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLSeconds) * time.Second
}

// LRUTTL returns the LRU-tier TTL as a duration (milliseconds).
func (c CacheConfig) LRUTTL() time.Duration {
	return time.Duration(c.LRUTTLMs) * time.Millisecond
}

// JobConfig governs job orchestration defaults (spec.md §4.8, §6).
type JobConfig struct {
	DefaultMaxConcurrent     int    `mapstructure:"default_max_concurrent"`
	DefaultBatchSize         int    `mapstructure:"default_batch_size"`
	DefaultProcessingDelayMs int    `mapstructure:"default_processing_delay_ms"`
	DefaultRetryCount        int    `mapstructure:"default_retry_count"`
	DefaultRetryDelayMs      int    `mapstructure:"default_retry_delay_ms"`
	ReportDir                string `mapstructure:"report_dir"`
}

// RulesConfig points at an optional on-disk override for the Rules Store.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// WebhookConfig governs outbound webhook delivery (spec.md §6) and its
// optional Pub/Sub fan-out.
type WebhookConfig struct {
	TimeoutMs      int    `mapstructure:"timeout_ms"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	PubSubEnabled  bool   `mapstructure:"pubsub_enabled"`
	PubSubProject  string `mapstructure:"pubsub_project"`
	PubSubTopic    string `mapstructure:"pubsub_topic"`
}

// Timeout returns the per-attempt HTTP timeout as a duration.
func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutMs) * time.Millisecond
}

// StoreConfig governs report persistence tiers beyond the mandatory local
// filesystem writer (spec.md §6 "Persisted state").
type StoreConfig struct {
	GCSEnabled    bool   `mapstructure:"gcs_enabled"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
}

// PostgresEnabled reports whether a Postgres report tier is configured.
func (s StoreConfig) PostgresEnabled() bool {
	return s.PostgresDSN != ""
}

// Load builds a Config from an optional file plus environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)

	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.page_timeout_ms", 30000)
	v.SetDefault("pipeline.min_content_length", 500)
	v.SetDefault("pipeline.scroll_wait_ms", 200)
	v.SetDefault("pipeline.aggressive_cleaning", true)
	v.SetDefault("pipeline.remove_images", false)

	v.SetDefault("cache.mode", "none")
	v.SetDefault("cache.redis_host", "localhost")
	v.SetDefault("cache.redis_port", 6379)
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_cache_ttl_seconds", 3600)
	v.SetDefault("cache.lru_cache_ttl_ms", 3600000)
	v.SetDefault("cache.lru_capacity", 1000)
	v.SetDefault("cache.disable_all_caching", false)

	v.SetDefault("job.default_max_concurrent", 5)
	v.SetDefault("job.default_batch_size", 10)
	v.SetDefault("job.default_processing_delay_ms", 100)
	v.SetDefault("job.default_retry_count", 2)
	v.SetDefault("job.default_retry_delay_ms", 3000)
	v.SetDefault("job.report_dir", "reports")

	v.SetDefault("auth.enabled", false)

	v.SetDefault("webhook.timeout_ms", 30000)
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.pubsub_enabled", false)

	v.SetDefault("store.gcs_enabled", false)

	// Keys without a natural default are registered empty so that
	// AutomaticEnv can still supply them during Unmarshal.
	v.SetDefault("cache.external_url", "")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("webhook.pubsub_project", "")
	v.SetDefault("webhook.pubsub_topic", "")
	v.SetDefault("store.gcs_bucket", "")
	v.SetDefault("store.gcs_prefix", "")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("rules.path", "")
}

// Validate enforces the obviously-required invariants on the loaded config.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must be >= 0")
	}
	if c.Pipeline.PageTimeoutMs <= 0 {
		return fmt.Errorf("pipeline.page_timeout_ms must be > 0")
	}
	if c.Pipeline.MinContentLength < 0 {
		return fmt.Errorf("pipeline.min_content_length must be >= 0")
	}
	if c.Pipeline.ScrollWaitMs < 0 {
		return fmt.Errorf("pipeline.scroll_wait_ms must be >= 0")
	}
	if c.Cache.ModeValue() == CacheModeExternal && c.Cache.ExternalURL == "" {
		return fmt.Errorf("cache.external_url must be set when cache.mode is external")
	}
	if c.Cache.LRUCapacity <= 0 {
		return fmt.Errorf("cache.lru_capacity must be > 0")
	}
	if c.Job.DefaultMaxConcurrent <= 0 {
		return fmt.Errorf("job.default_max_concurrent must be > 0")
	}
	if c.Job.DefaultBatchSize <= 0 {
		return fmt.Errorf("job.default_batch_size must be > 0")
	}
	if c.Job.ReportDir == "" {
		return fmt.Errorf("job.report_dir must be set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Webhook.TimeoutMs <= 0 {
		return fmt.Errorf("webhook.timeout_ms must be > 0")
	}
	if c.Webhook.PubSubEnabled && (c.Webhook.PubSubProject == "" || c.Webhook.PubSubTopic == "") {
		return fmt.Errorf("webhook.pubsub_project and webhook.pubsub_topic must be set when pubsub is enabled")
	}
	if c.Store.GCSEnabled && c.Store.GCSBucket == "" {
		return fmt.Errorf("store.gcs_bucket must be set when store.gcs_enabled is true")
	}
	return nil
}
