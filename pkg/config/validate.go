package config

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	// ErrNoEngines is returned when the configuration declares no engines.
	ErrNoEngines = errors.New("at least one engine must be configured")
)

// knownEngineTypes is the closed set of engine variants.
var knownEngineTypes = map[string]bool{
	"chromium": true,
	"remote":   true,
}

// knownStrategies is the set of valid selection strategy names.
var knownStrategies = map[string]bool{
	"health-first":  true,
	"primary-first": true,
	"round-robin":   true,
}

// Validate checks the configuration for consistency. It is called after
// defaults are applied, so zero values for defaulted fields are bugs here,
// not user errors.
func Validate(cfg *Config) error {
	if len(cfg.Engines) == 0 {
		return ErrNoEngines
	}

	names := make(map[string]bool, len(cfg.Engines))
	for i, ec := range cfg.Engines {
		if ec.Name == "" {
			return fmt.Errorf("engine %d: name must not be empty", i)
		}
		if names[ec.Name] {
			return fmt.Errorf("engine %q: duplicate name", ec.Name)
		}
		names[ec.Name] = true

		if !knownEngineTypes[ec.Type] {
			return fmt.Errorf("engine %q: unknown type %q", ec.Name, ec.Type)
		}
		if ec.Type == "remote" && ec.BaseURL == "" {
			return fmt.Errorf("engine %q: remote engines require base_url", ec.Name)
		}
	}

	if !knownStrategies[cfg.Selection.Strategy] {
		return fmt.Errorf("unknown selection strategy %q", cfg.Selection.Strategy)
	}
	if cfg.Selection.Strategy == "primary-first" {
		if cfg.Selection.PrimaryEngine == "" {
			return fmt.Errorf("primary-first strategy requires primary_engine")
		}
		if !names[cfg.Selection.PrimaryEngine] {
			return fmt.Errorf("primary_engine %q is not a configured engine", cfg.Selection.PrimaryEngine)
		}
		for _, fb := range cfg.Selection.FallbackEngines {
			if !names[fb] {
				return fmt.Errorf("fallback engine %q is not a configured engine", fb)
			}
		}
	}

	if cfg.Health.TimeoutWeight <= 0 || cfg.Health.TimeoutWeight > 1 {
		return fmt.Errorf("health timeout_weight must be in (0, 1], got %v", cfg.Health.TimeoutWeight)
	}

	switch cfg.Retry.Backoff {
	case "constant", "exponential":
	default:
		return fmt.Errorf("retry backoff must be \"constant\" or \"exponential\", got %q", cfg.Retry.Backoff)
	}

	switch cfg.TwoStage.Cache.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("cache backend must be \"memory\" or \"sqlite\", got %q", cfg.TwoStage.Cache.Backend)
	}

	return nil
}
