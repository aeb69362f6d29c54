package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"typeset-hq/gutenberg/pkg/config"
	"typeset-hq/gutenberg/pkg/enginefactory"
	"typeset-hq/gutenberg/pkg/gate"
	"typeset-hq/gutenberg/pkg/health"
	"typeset-hq/gutenberg/pkg/manager"
	"typeset-hq/gutenberg/pkg/metrics"
	"typeset-hq/gutenberg/pkg/selection"
	"typeset-hq/gutenberg/pkg/twostage"
	"typeset-hq/gutenberg/pkg/twostage/storage"
)

// stack wires the full rendering pipeline: engines, manager, pagination
// cache, and the two-stage renderer.
type stack struct {
	manager  *manager.Manager
	renderer *twostage.Renderer
	cache    storage.Store
	pruner   *storage.PruneScheduler
	watcher  *config.Watcher
}

// loadConfig reads the config file, or falls back to the built-in default
// when no path was given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadWithEnvOverrides(cfgFile)
}

// buildStack assembles the rendering pipeline from configuration and
// initializes it. When a config file is in use, a watcher applies strategy,
// limit, and retry changes to the running manager without a restart.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	em := metrics.NewEngineMetrics(metrics.Config{
		Enabled:         cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled,
		Namespace:       cfg.Metrics.Namespace,
		Subsystem:       cfg.Metrics.Subsystem,
		DurationBuckets: cfg.Metrics.DurationBuckets,
	}, prometheus.NewRegistry())

	mgr := manager.New(manager.Options{
		Strategy: buildStrategy(cfg.Selection),
		Thresholds: health.Thresholds{
			PromoteAfter:  cfg.Health.PromoteAfter,
			DemoteAfter:   cfg.Health.DemoteAfter,
			TimeoutWeight: cfg.Health.TimeoutWeight,
		},
		Monitor: health.MonitorConfig{
			Interval:         cfg.Health.CheckInterval,
			ProbeTimeout:     cfg.Health.ProbeTimeout,
			UnhealthyBackoff: cfg.Health.UnhealthyBackoff != nil && *cfg.Health.UnhealthyBackoff,
		},
		Limits:  buildLimits(cfg.ResourceLimits),
		Retry:   buildRetry(cfg.Retry),
		Metrics: em,
	})

	engs, err := enginefactory.BuildAll(cfg.Engines)
	if err != nil {
		return nil, err
	}
	for _, eng := range engs {
		if err := mgr.Register(eng); err != nil {
			return nil, err
		}
	}

	s := &stack{manager: mgr}

	s.cache, s.pruner, err = buildCache(ctx, cfg.TwoStage.Cache)
	if err != nil {
		return nil, err
	}
	s.renderer = twostage.New(mgr, s.cache)

	if err := mgr.Initialize(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if cfgFile != "" {
		s.watcher, err = config.NewWatcher(cfgFile, 0, func(next *config.Config) {
			retry := buildRetry(next.Retry)
			limits := buildLimits(next.ResourceLimits)
			mgr.UpdateConfig(manager.ConfigUpdate{
				Strategy: buildStrategy(next.Selection),
				Limits:   &limits,
				Retry:    &retry,
			})
		})
		if err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else if err := s.watcher.Start(); err != nil {
			slog.Warn("config watcher failed to start", "error", err)
			s.watcher = nil
		}
	}

	return s, nil
}

// Close tears the stack down in reverse dependency order.
func (s *stack) Close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.pruner != nil {
		s.pruner.Stop()
	}
	if err := s.manager.Cleanup(); err != nil {
		slog.Warn("engine cleanup reported errors", "error", err)
	}
	if s.cache != nil {
		s.cache.Close()
	}
}

// buildStrategy maps selection config to a strategy instance.
func buildStrategy(cfg config.SelectionConfig) selection.Strategy {
	switch cfg.Strategy {
	case selection.NamePrimaryFirst:
		return selection.NewPrimaryFirst(cfg.PrimaryEngine, cfg.FallbackEngines)
	case selection.NameRoundRobin:
		return selection.NewRoundRobin(cfg.Weights)
	default:
		return selection.NewHealthFirst()
	}
}

func buildLimits(cfg config.ResourceLimitsConfig) gate.Limits {
	return gate.Limits{
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		AcquireWait:        cfg.AcquireWait,
		TaskTimeout:        cfg.TaskTimeout,
		MemoryLimitBytes:   cfg.MemoryLimitBytes,
	}
}

func buildRetry(cfg config.RetryConfig) manager.RetryPolicy {
	policy := manager.RetryPolicy{
		Delay:       cfg.RetryDelay,
		Exponential: cfg.Backoff == "exponential",
	}
	if cfg.MaxRetries != nil {
		policy.MaxRetries = *cfg.MaxRetries
	}
	return policy
}

// buildCache creates the pagination cache backend and, for the sqlite
// backend, a cron-scheduled pruner.
func buildCache(ctx context.Context, cfg config.CacheConfig) (storage.Store, *storage.PruneScheduler, error) {
	if cfg.Enabled == nil || !*cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Backend {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating cache directory: %w", err)
			}
		}
		store, err := storage.NewSQLiteStore(storage.SQLiteStoreConfig{
			DBPath: cfg.SQLitePath,
			TTL:    cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}

		pruner := storage.NewPruneScheduler(store, cfg.PruneSchedule, cfg.TTL)
		if err := pruner.Start(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, pruner, nil

	default:
		return storage.NewMemoryStoreWithConfig(storage.MemoryStoreConfig{
			TTL:        cfg.TTL,
			MaxEntries: cfg.MaxEntries,
		}), nil, nil
	}
}
