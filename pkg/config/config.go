package config

import "time"

// Config is the root configuration for the Gutenberg rendering service.
type Config struct {
	// Engines is the ordered list of rendering backends. Array order is the
	// registration order, which selection strategies use as the explicit
	// tie-break for engines with equal status.
	Engines []EngineConfig `yaml:"engines"`

	// Selection configures candidate ordering.
	Selection SelectionConfig `yaml:"selection"`

	// Health configures the probe loop and the status state machine.
	Health HealthConfig `yaml:"health"`

	// Retry configures per-candidate retries during failover.
	Retry RetryConfig `yaml:"retry"`

	// ResourceLimits bounds concurrent generation tasks.
	ResourceLimits ResourceLimitsConfig `yaml:"resource_limits"`

	// TwoStage configures the page-accurate rendering pipeline.
	TwoStage TwoStageConfig `yaml:"two_stage"`

	// Metrics configures Prometheus metric collection.
	Metrics MetricsConfig `yaml:"metrics"`
}

// EngineConfig describes one rendering backend.
type EngineConfig struct {
	// Name is the unique engine identifier used in logs, metrics, and
	// selection configuration.
	Name string `yaml:"name"`

	// Type selects the engine variant: "chromium" or "remote".
	Type string `yaml:"type"`

	// Priority is a secondary ordering hint; lower sorts earlier.
	Priority int `yaml:"priority"`

	// BrowserBin is an optional path to a pre-installed browser binary
	// (chromium engines; containerized environments).
	BrowserBin string `yaml:"browser_bin"`

	// NoSandbox disables the browser sandbox (chromium engines; required
	// in most containers and CI).
	NoSandbox bool `yaml:"no_sandbox"`

	// BaseURL is the render service endpoint (remote engines).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the render service (remote engines).
	APIKey string `yaml:"api_key"`

	// RequestTimeout bounds individual HTTP calls (remote engines).
	// Default: 60s.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SelectionConfig configures how candidates are ordered per request.
type SelectionConfig struct {
	// Strategy is one of "health-first", "primary-first", "round-robin".
	// Default: "health-first".
	Strategy string `yaml:"strategy"`

	// PrimaryEngine names the preferred engine (primary-first strategy).
	PrimaryEngine string `yaml:"primary_engine"`

	// FallbackEngines is the ordered fallback list (primary-first strategy).
	FallbackEngines []string `yaml:"fallback_engines"`

	// Weights maps engine names to round-robin weights.
	Weights map[string]int `yaml:"weights"`
}

// HealthConfig configures probing and the health state machine.
type HealthConfig struct {
	// CheckInterval is the time between probe cycles. Default: 30s.
	CheckInterval time.Duration `yaml:"check_interval"`

	// ProbeTimeout bounds each individual probe. Default: 5s.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// PromoteAfter is the consecutive-success threshold for promotion.
	// Default: 2.
	PromoteAfter int `yaml:"promote_after"`

	// DemoteAfter is the failure-credit threshold for demotion. Default: 3.
	DemoteAfter int `yaml:"demote_after"`

	// TimeoutWeight is the demotion credit of a timeout relative to an
	// explicit engine error (0..1]. Default: 0.5.
	TimeoutWeight float64 `yaml:"timeout_weight"`

	// UnhealthyBackoff enables exponential probe backoff for engines that
	// keep failing. Default: true.
	UnhealthyBackoff *bool `yaml:"unhealthy_backoff"`
}

// RetryConfig configures per-candidate retry behavior during failover.
type RetryConfig struct {
	// MaxRetries is how many times the same candidate is retried after a
	// failed attempt before moving to the next candidate. Zero disables
	// retries. Default: 1.
	MaxRetries *int `yaml:"max_retries"`

	// RetryDelay is the base delay between attempts. Default: 500ms.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Backoff is "constant" or "exponential". Default: "constant".
	Backoff string `yaml:"backoff"`
}

// ResourceLimitsConfig bounds concurrent generation work.
type ResourceLimitsConfig struct {
	// MaxConcurrentTasks is the per-engine concurrency limit. Default: 4.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`

	// TaskTimeout cancels a generation attempt that overruns. Default: 2m.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// AcquireWait is how long an attempt may wait for a free slot before
	// the engine counts as busy. Default: 0 (skip immediately).
	AcquireWait time.Duration `yaml:"acquire_wait"`

	// MemoryLimitBytes is an advisory per-task memory bound. Default: 0
	// (unlimited).
	MemoryLimitBytes int64 `yaml:"memory_limit_bytes"`
}

// TwoStageConfig configures the page-accurate rendering pipeline.
type TwoStageConfig struct {
	// Cache configures the stage-1 pagination cache.
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig configures the pre-render pagination cache.
type CacheConfig struct {
	// Enabled turns caching on. Default: true.
	Enabled *bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite". Default: "memory".
	Backend string `yaml:"backend"`

	// TTL is how long a cached pagination map stays valid. Default: 10m.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the cache size (memory backend). Default: 1024.
	MaxEntries int `yaml:"max_entries"`

	// SQLitePath is the database file (sqlite backend).
	// Default: "data/prerender.db".
	SQLitePath string `yaml:"sqlite_path"`

	// PruneSchedule is a cron expression for pruning expired entries from
	// the sqlite backend (e.g., "0 3 * * *" for daily at 3 AM). Empty
	// disables scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metric collection on. Default: true.
	Enabled *bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "gutenberg".
	Namespace string `yaml:"namespace"`

	// Subsystem is the secondary prefix. Default: "engine".
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are histogram buckets for render latency in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}
