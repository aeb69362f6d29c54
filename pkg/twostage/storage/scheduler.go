package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PruneScheduler runs periodic cache pruning on a cron schedule, keeping
// the pagination cache from growing without bound between restarts.
type PruneScheduler struct {
	store    Store
	schedule string
	ttl      time.Duration
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewPruneScheduler creates a scheduler pruning entries older than ttl on
// the given cron schedule (standard 5-field syntax, e.g. "0 3 * * *").
func NewPruneScheduler(store Store, schedule string, ttl time.Duration) *PruneScheduler {
	return &PruneScheduler{
		store:    store,
		schedule: schedule,
		ttl:      ttl,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "twostage.prune"),
	}
}

// Start begins scheduled pruning. An empty schedule disables the scheduler.
// The scheduler stops itself when ctx is cancelled.
func (s *PruneScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runPrune(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("prune scheduler started", "schedule", s.schedule, "ttl", s.ttl)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts scheduled pruning. Safe to call multiple times.
func (s *PruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("prune scheduler stopped")
}

// runPrune executes one prune pass.
func (s *PruneScheduler) runPrune(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)

	pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := s.store.Prune(pruneCtx, cutoff)
	if err != nil {
		s.logger.Error("cache prune failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("cache pruned", "removed", removed, "cutoff", cutoff)
	}
}
