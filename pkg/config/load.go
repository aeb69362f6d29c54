package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envRefPattern matches ${VAR_NAME} references in config values.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a YAML file, applies defaults, and
// validates the result. Values may reference environment variables as
// ${VAR_NAME}; unset variables expand to the empty string.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	data = expandEnvRefs(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// GUTENBERG_SECTION_FIELD (e.g., GUTENBERG_RETRY_MAX_RETRIES) and always
// take precedence over file-based configuration.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// Default returns a validated configuration with a single local chromium
// engine, used when no config file is given.
func Default() *Config {
	cfg := &Config{
		Engines: []EngineConfig{
			{Name: "chromium", Type: "chromium"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// expandEnvRefs substitutes ${VAR_NAME} references with environment
// variable values.
func expandEnvRefs(data []byte) []byte {
	return envRefPattern.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRefPattern.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyEnvOverrides applies GUTENBERG_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("GUTENBERG_SELECTION_STRATEGY"); val != "" {
		cfg.Selection.Strategy = val
	}
	if val := os.Getenv("GUTENBERG_SELECTION_PRIMARY_ENGINE"); val != "" {
		cfg.Selection.PrimaryEngine = val
	}
	if val := os.Getenv("GUTENBERG_HEALTH_CHECK_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Health.CheckInterval = d
		}
	}
	if val := os.Getenv("GUTENBERG_HEALTH_PROBE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Health.ProbeTimeout = d
		}
	}
	if val := os.Getenv("GUTENBERG_RETRY_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			cfg.Retry.MaxRetries = &n
		}
	}
	if val := os.Getenv("GUTENBERG_RETRY_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Retry.RetryDelay = d
		}
	}
	if val := os.Getenv("GUTENBERG_LIMITS_MAX_CONCURRENT_TASKS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.ResourceLimits.MaxConcurrentTasks = n
		}
	}
	if val := os.Getenv("GUTENBERG_LIMITS_TASK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.ResourceLimits.TaskTimeout = d
		}
	}
	if val := os.Getenv("GUTENBERG_CACHE_BACKEND"); val != "" {
		cfg.TwoStage.Cache.Backend = val
	}
	if val := os.Getenv("GUTENBERG_CACHE_SQLITE_PATH"); val != "" {
		cfg.TwoStage.Cache.SQLitePath = val
	}
	if val := os.Getenv("GUTENBERG_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = &b
		}
	}
}
