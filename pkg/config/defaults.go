package config

import "time"

// Default values for configuration fields.
const (
	// Selection defaults
	DefaultStrategy = "health-first"

	// Health defaults
	DefaultCheckInterval    = 30 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultPromoteAfter     = 2
	DefaultDemoteAfter      = 3
	DefaultTimeoutWeight    = 0.5
	DefaultUnhealthyBackoff = true

	// Retry defaults
	DefaultMaxRetries   = 1
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultRetryBackoff = "constant"

	// Resource limit defaults
	DefaultMaxConcurrentTasks = 4
	DefaultTaskTimeout        = 2 * time.Minute

	// Engine defaults
	DefaultRequestTimeout = 60 * time.Second

	// Cache defaults
	DefaultCacheEnabled    = true
	DefaultCacheBackend    = "memory"
	DefaultCacheTTL        = 10 * time.Minute
	DefaultCacheMaxEntries = 1024
	DefaultCacheSQLitePath = "data/prerender.db"

	// Metrics defaults
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "gutenberg"
	DefaultMetricsSubsystem = "engine"
)

// ApplyDefaults fills unset fields with default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Selection.Strategy == "" {
		cfg.Selection.Strategy = DefaultStrategy
	}

	if cfg.Health.CheckInterval <= 0 {
		cfg.Health.CheckInterval = DefaultCheckInterval
	}
	if cfg.Health.ProbeTimeout <= 0 {
		cfg.Health.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Health.PromoteAfter <= 0 {
		cfg.Health.PromoteAfter = DefaultPromoteAfter
	}
	if cfg.Health.DemoteAfter <= 0 {
		cfg.Health.DemoteAfter = DefaultDemoteAfter
	}
	if cfg.Health.TimeoutWeight <= 0 {
		cfg.Health.TimeoutWeight = DefaultTimeoutWeight
	}
	if cfg.Health.UnhealthyBackoff == nil {
		v := DefaultUnhealthyBackoff
		cfg.Health.UnhealthyBackoff = &v
	}

	if cfg.Retry.MaxRetries == nil {
		v := DefaultMaxRetries
		cfg.Retry.MaxRetries = &v
	}
	if cfg.Retry.RetryDelay <= 0 {
		cfg.Retry.RetryDelay = DefaultRetryDelay
	}
	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = DefaultRetryBackoff
	}

	if cfg.ResourceLimits.MaxConcurrentTasks <= 0 {
		cfg.ResourceLimits.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if cfg.ResourceLimits.TaskTimeout <= 0 {
		cfg.ResourceLimits.TaskTimeout = DefaultTaskTimeout
	}

	for i := range cfg.Engines {
		if cfg.Engines[i].RequestTimeout <= 0 {
			cfg.Engines[i].RequestTimeout = DefaultRequestTimeout
		}
	}

	if cfg.TwoStage.Cache.Enabled == nil {
		v := DefaultCacheEnabled
		cfg.TwoStage.Cache.Enabled = &v
	}
	if cfg.TwoStage.Cache.Backend == "" {
		cfg.TwoStage.Cache.Backend = DefaultCacheBackend
	}
	if cfg.TwoStage.Cache.TTL <= 0 {
		cfg.TwoStage.Cache.TTL = DefaultCacheTTL
	}
	if cfg.TwoStage.Cache.MaxEntries <= 0 {
		cfg.TwoStage.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.TwoStage.Cache.SQLitePath == "" {
		cfg.TwoStage.Cache.SQLitePath = DefaultCacheSQLitePath
	}

	if cfg.Metrics.Enabled == nil {
		v := DefaultMetricsEnabled
		cfg.Metrics.Enabled = &v
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
}
