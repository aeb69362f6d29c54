package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Gate errors.
var (
	// ErrSaturated is returned when an engine is at its concurrency limit
	// and the configured acquire wait was exceeded. The manager treats this
	// as "engine busy" and moves to the next candidate without touching the
	// engine's health.
	ErrSaturated = errors.New("engine at capacity")

	// ErrUnknownEngine is returned when acquiring a slot for an engine the
	// gate has never seen.
	ErrUnknownEngine = errors.New("engine not registered with gate")
)

// Limits configures admission control. Limits are fixed at manager
// construction and mutable only through an explicit update, which takes
// effect for subsequent admissions: tasks already in flight keep the slot
// they acquired under the old limits.
type Limits struct {
	// MaxConcurrentTasks is the number of simultaneous Generate calls
	// allowed per engine. Default: 4.
	MaxConcurrentTasks int

	// AcquireWait is how long an attempt may wait for a free slot before
	// the engine is treated as busy. Zero means skip immediately.
	AcquireWait time.Duration

	// TaskTimeout bounds each generation attempt. Default: 2m.
	TaskTimeout time.Duration

	// MemoryLimitBytes is an advisory per-task memory bound passed through
	// to engines that can enforce one. Zero means unlimited.
	MemoryLimitBytes int64
}

// WithDefaults fills zero fields with defaults.
func (l Limits) WithDefaults() Limits {
	if l.MaxConcurrentTasks <= 0 {
		l.MaxConcurrentTasks = 4
	}
	if l.TaskTimeout <= 0 {
		l.TaskTimeout = 2 * time.Minute
	}
	return l
}

// Gate is the per-engine counting admission control. Each engine gets an
// independent semaphore, so saturation of one backend never delays another.
type Gate struct {
	mu     sync.RWMutex
	limits Limits
	sems   map[string]chan struct{}
	logger *slog.Logger
}

// New creates a gate with the given limits.
func New(limits Limits) *Gate {
	return &Gate{
		limits: limits.WithDefaults(),
		sems:   make(map[string]chan struct{}),
		logger: slog.Default().With("component", "gate"),
	}
}

// Register creates the admission semaphore for an engine. Registering an
// existing name is a no-op.
func (g *Gate) Register(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.sems[name]; !ok {
		g.sems[name] = make(chan struct{}, g.limits.MaxConcurrentTasks)
	}
}

// Unregister removes an engine's semaphore. In-flight tasks still release
// cleanly through their captured slot.
func (g *Gate) Unregister(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.sems, name)
}

// Acquire claims a concurrency slot for the named engine, waiting up to the
// configured AcquireWait if the engine is saturated. On success it returns a
// release function that MUST be called exactly once when the task finishes,
// including on timeout or cancellation:
//
//	release, err := g.Acquire(ctx, "chromium")
//	if err != nil {
//	    return err
//	}
//	defer release()
//
// Returns ErrSaturated when no slot frees up in time, or the context error
// if the caller's context ends first.
func (g *Gate) Acquire(ctx context.Context, name string) (func(), error) {
	g.mu.RLock()
	sem, ok := g.sems[name]
	wait := g.limits.AcquireWait
	g.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}

	// Fast path: free slot available right now.
	select {
	case sem <- struct{}{}:
		return releaseFunc(sem), nil
	default:
	}

	if wait <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrSaturated, name)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return releaseFunc(sem), nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %q (waited %s)", ErrSaturated, name, wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// releaseFunc builds an idempotent release closure bound to the semaphore
// the slot was acquired from. Binding matters: a live limits update swaps
// the semaphore, and in-flight tasks must release into the one they hold.
func releaseFunc(sem chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}
}

// InFlight returns the number of tasks currently admitted for an engine
// under the current limits. Tasks still holding slots from before a limits
// update are not counted.
func (g *Gate) InFlight(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sem, ok := g.sems[name]
	if !ok {
		return 0
	}
	return len(sem)
}

// Limits returns the current limits.
func (g *Gate) Limits() Limits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}

// TaskTimeout returns the current per-task timeout.
func (g *Gate) TaskTimeout() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits.TaskTimeout
}

// Update replaces the limits for subsequent admissions. Every engine gets a
// fresh semaphore sized to the new concurrency limit; tasks in flight keep
// the slots they hold and release into their original semaphore.
func (g *Gate) Update(limits Limits) {
	limits = limits.WithDefaults()

	g.mu.Lock()
	defer g.mu.Unlock()

	if limits.MaxConcurrentTasks != g.limits.MaxConcurrentTasks {
		for name := range g.sems {
			g.sems[name] = make(chan struct{}, limits.MaxConcurrentTasks)
		}
	}
	g.limits = limits

	g.logger.Info("resource limits updated",
		"max_concurrent_tasks", limits.MaxConcurrentTasks,
		"task_timeout", limits.TaskTimeout,
		"acquire_wait", limits.AcquireWait,
	)
}
