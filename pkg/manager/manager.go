package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"typeset-hq/gutenberg/pkg/engines"
	"typeset-hq/gutenberg/pkg/gate"
	"typeset-hq/gutenberg/pkg/health"
	"typeset-hq/gutenberg/pkg/metrics"
	"typeset-hq/gutenberg/pkg/selection"
)

// RetryPolicy controls per-candidate retries during failover.
type RetryPolicy struct {
	// MaxRetries is how many times the same candidate is retried after a
	// failed attempt before moving on. Zero disables retries.
	MaxRetries int

	// Delay is the base delay between attempts on the same candidate.
	Delay time.Duration

	// Exponential doubles the delay after every retry when set; otherwise
	// the delay is constant.
	Exponential bool
}

// delayFor returns the delay before retry number n (1-based).
func (p RetryPolicy) delayFor(n int) time.Duration {
	if !p.Exponential || n <= 1 {
		return p.Delay
	}
	return p.Delay * time.Duration(1<<uint(n-1))
}

// Options configure a Manager.
type Options struct {
	// Strategy orders candidates per request. Default: health-first.
	Strategy selection.Strategy

	// Thresholds configure the health state machine.
	Thresholds health.Thresholds

	// Monitor configures the probe loop.
	Monitor health.MonitorConfig

	// Limits configure admission control.
	Limits gate.Limits

	// Retry configures per-candidate retries.
	Retry RetryPolicy

	// Metrics receives attempt and health observations. Nil disables
	// metric recording.
	Metrics *metrics.EngineMetrics
}

// Manager owns the rendering engines for their whole lifetime: it registers
// them, monitors their health, orders candidates per request, and drives the
// attempt/retry/failover loop inside the resource gate.
//
// Manager is safe for concurrent use. Generate never returns a Go error to
// its caller; every failure mode resolves to a failure result.
type Manager struct {
	mu          sync.RWMutex
	engines     map[string]engines.Engine
	order       []string // registration order
	strategy    selection.Strategy
	retry       RetryPolicy
	initialized bool

	tracker *health.Tracker
	monitor *health.Monitor
	gate    *gate.Gate
	metrics *metrics.EngineMetrics
	logger  *slog.Logger

	stats map[string]*engineStats
}

// engineStats aggregates per-engine usage counters for diagnostics.
type engineStats struct {
	mu            sync.Mutex
	totalRequests int64
	totalFailures int64
	totalTimeouts int64
	successCount  int64
	totalLatency  time.Duration
	lastUsedAt    time.Time
}

// MetricsSnapshot is the diagnostic view of one engine's usage counters.
type MetricsSnapshot struct {
	// TotalRequests counts generation attempts routed to this engine.
	TotalRequests int64 `json:"total_requests"`

	// TotalFailures counts failed attempts (including timeouts).
	TotalFailures int64 `json:"total_failures"`

	// TotalTimeouts counts attempts cancelled by the task timeout.
	TotalTimeouts int64 `json:"total_timeouts"`

	// AvgLatency is the mean latency of successful attempts.
	AvgLatency time.Duration `json:"avg_latency"`

	// LastUsedAt is when the engine last completed an attempt.
	LastUsedAt time.Time `json:"last_used_at"`
}

// EngineStatus is the diagnostic view of one engine's health.
type EngineStatus struct {
	// Name is the engine identifier.
	Name string `json:"name"`

	// Status is the health state name.
	Status string `json:"status"`

	// ConsecutiveSuccesses and ConsecutiveFailures mirror the health record.
	ConsecutiveSuccesses int `json:"consecutive_successes"`
	ConsecutiveFailures  int `json:"consecutive_failures"`

	// LastCheckedAt is when the record was last updated.
	LastCheckedAt time.Time `json:"last_checked_at"`

	// LastError is the most recent error, empty while healthy.
	LastError string `json:"last_error,omitempty"`

	// InFlight is the number of currently admitted tasks.
	InFlight int `json:"in_flight"`
}

// New creates a manager. Engines are registered afterwards with Register;
// Initialize starts the health monitor and prepares the engines for work.
func New(opts Options) *Manager {
	if opts.Strategy == nil {
		opts.Strategy = selection.NewHealthFirst()
	}

	m := &Manager{
		engines:  make(map[string]engines.Engine),
		strategy: opts.Strategy,
		retry:    opts.Retry,
		tracker:  health.NewTracker(opts.Thresholds),
		gate:     gate.New(opts.Limits),
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "manager"),
		stats:    make(map[string]*engineStats),
	}

	m.tracker.SetObserver(func(name string, rec health.Record) {
		m.metrics.UpdateHealth(name, rec.Status)
	})
	m.monitor = health.NewMonitor(m.tracker, m, opts.Monitor)

	return m
}

// Register adds an engine to the manager. Engines must be registered before
// Initialize; registering a duplicate name is an error.
func (m *Manager) Register(eng engines.Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := eng.Name()
	if _, ok := m.engines[name]; ok {
		return fmt.Errorf("engine %q already registered", name)
	}

	m.engines[name] = eng
	m.order = append(m.order, name)
	m.stats[name] = &engineStats{}
	m.tracker.Register(name)
	m.gate.Register(name)

	m.logger.Info("engine registered",
		"engine", name,
		"priority", eng.Priority(),
		"total_engines", len(m.engines),
	)
	return nil
}

// Probes implements health.ProbeSource over the registered engines.
func (m *Manager) Probes() map[string]health.ProbeFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()

	probes := make(map[string]health.ProbeFunc, len(m.engines))
	for name, eng := range m.engines {
		probes[name] = eng.Probe
	}
	return probes
}

// Initialize prepares every registered engine and starts the health monitor.
// It is idempotent: a second call while initialized is a no-op. An engine
// whose initialization fails is kept registered but starts out unhealthy;
// the probe loop promotes it if it recovers.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	engs := make(map[string]engines.Engine, len(m.engines))
	for name, eng := range m.engines {
		engs[name] = eng
	}
	m.initialized = true
	m.mu.Unlock()

	for name, eng := range engs {
		if err := eng.Initialize(ctx); err != nil {
			m.logger.Error("engine initialization failed",
				"engine", name,
				"error", err,
			)
			m.tracker.ApplyOutcome(name, health.Outcome{Healthy: false, Err: err})
			continue
		}
		m.tracker.ApplyOutcome(name, health.Outcome{Healthy: true})
	}

	m.monitor.Start()

	m.logger.Info("engine manager initialized", "engines", len(engs))
	return nil
}

// Generate renders the request against the best available engine, failing
// over through the candidate list produced by the selection strategy.
//
// Algorithm:
//  1. Order candidates from the current health snapshot; requests that
//     collect anchor pages move anchor-capable engines to the front.
//  2. Per candidate: acquire a gate slot (skip to the next candidate when
//     the engine is saturated), run Generate under the task timeout, and
//     retry the same candidate up to the retry policy before moving on.
//  3. Every attempt outcome feeds the health tracker: an attempt failure is
//     equivalent to one failed probe, with timeouts weighed lighter.
//  4. When all candidates are exhausted, the failure result names every
//     attempted engine and its last error.
//
// Generate never returns a Go error; all failure modes resolve to a
// failure result.
func (m *Manager) Generate(ctx context.Context, req *engines.GenerationRequest) *engines.GenerationResult {
	m.mu.RLock()
	initialized := m.initialized
	strategy := m.strategy
	retry := m.retry
	m.mu.RUnlock()

	if !initialized {
		return engines.Failure(ErrNotInitialized.Error())
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	candidates := strategy.Select(m.candidateOrder(), m.tracker.Snapshot())
	if req.CollectAnchors {
		candidates = m.preferAnchorCapable(candidates)
	}
	if req.PreferredEngine != "" {
		candidates = moveToFront(candidates, req.PreferredEngine)
	}
	if len(candidates) == 0 {
		return engines.Failure("no engines registered")
	}

	m.logger.Debug("candidate order selected",
		"request_id", req.RequestID,
		"strategy", strategy.Name(),
		"candidates", candidates,
	)

	var attempts []AttemptError

	for _, name := range candidates {
		m.mu.RLock()
		eng, ok := m.engines[name]
		m.mu.RUnlock()
		if !ok {
			continue
		}

		result, lastErr := m.attemptCandidate(ctx, eng, req, retry)
		if result != nil {
			return result
		}

		attempts = append(attempts, AttemptError{Engine: name, Err: lastErr})

		if ctx.Err() != nil {
			// Caller gave up; stop failing over.
			break
		}
	}

	err := &AllEnginesFailedError{Attempts: attempts}
	m.logger.Error("generation failed on all candidates",
		"request_id", req.RequestID,
		"attempted", len(attempts),
		"error", err,
	)
	return engines.Failure(err.Error())
}

// attemptCandidate runs one candidate through the gate with retries.
// It returns a non-nil result on success, or nil and the candidate's last
// error once the retry budget is spent or the engine is busy.
func (m *Manager) attemptCandidate(ctx context.Context, eng engines.Engine, req *engines.GenerationRequest, retry RetryPolicy) (*engines.GenerationResult, error) {
	name := eng.Name()
	var lastErr error

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		release, err := m.gate.Acquire(ctx, name)
		if err != nil {
			if errors.Is(err, gate.ErrSaturated) {
				// Busy is not a health signal; skip to the next candidate.
				m.metrics.RecordAttempt(name, metrics.OutcomeBusy)
				m.logger.Debug("engine busy, skipping",
					"request_id", req.RequestID,
					"engine", name,
				)
				return nil, err
			}
			return nil, err
		}
		m.metrics.SetInFlight(name, m.gate.InFlight(name))

		result, attemptErr := m.runAttempt(ctx, eng, req)

		release()
		m.metrics.SetInFlight(name, m.gate.InFlight(name))

		if attemptErr == nil {
			return result, nil
		}
		lastErr = attemptErr

		if ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt < retry.MaxRetries && retry.Delay > 0 {
			select {
			case <-time.After(retry.delayFor(attempt + 1)):
			case <-ctx.Done():
				return nil, lastErr
			}
		}
	}

	return nil, lastErr
}

// runAttempt executes a single gated generation attempt under the task
// timeout, feeding the outcome to health and metrics.
func (m *Manager) runAttempt(ctx context.Context, eng engines.Engine, req *engines.GenerationRequest) (*engines.GenerationResult, error) {
	name := eng.Name()
	timeout := m.gate.TaskTimeout()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := eng.Generate(attemptCtx, req)
	elapsed := time.Since(start)

	st := m.statsFor(name)
	st.mu.Lock()
	st.totalRequests++
	st.lastUsedAt = time.Now()
	st.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// The caller gave up mid-attempt. That says nothing about the
			// engine, so health stays untouched, the same way the monitor
			// discards probe results after shutdown.
			m.metrics.RecordAttempt(name, metrics.OutcomeCanceled)
			m.logger.Debug("generation attempt canceled by caller",
				"request_id", req.RequestID,
				"engine", name,
				"elapsed", elapsed,
			)
			return nil, err
		}

		isTimeout := engines.IsTimeout(err) ||
			(errors.Is(err, context.DeadlineExceeded) && attemptCtx.Err() != nil && ctx.Err() == nil)
		if isTimeout && !engines.IsTimeout(err) {
			err = &engines.TimeoutError{Engine: name, Timeout: timeout.String()}
		}

		m.tracker.ApplyOutcome(name, health.Outcome{Healthy: false, Timeout: isTimeout, Err: err})

		st.mu.Lock()
		st.totalFailures++
		if isTimeout {
			st.totalTimeouts++
		}
		st.mu.Unlock()

		outcome := metrics.OutcomeError
		if isTimeout {
			outcome = metrics.OutcomeTimeout
		}
		m.metrics.RecordAttempt(name, outcome)

		m.logger.Warn("generation attempt failed",
			"request_id", req.RequestID,
			"engine", name,
			"timeout", isTimeout,
			"elapsed", elapsed,
			"error", err,
		)
		return nil, err
	}

	if req.OutputPath != "" {
		if werr := os.WriteFile(req.OutputPath, out.PDF, 0o644); werr != nil {
			// Local IO failure, not an engine fault: fail the request
			// without touching the engine's health.
			m.metrics.RecordAttempt(name, metrics.OutcomeError)
			return engines.Failure(fmt.Sprintf("failed to write output %q: %v", req.OutputPath, werr)), nil
		}
	}

	m.tracker.ApplyOutcome(name, health.Outcome{Healthy: true})
	m.metrics.RecordAttempt(name, metrics.OutcomeSuccess)
	m.metrics.RecordLatency(name, elapsed.Seconds())

	st.mu.Lock()
	st.successCount++
	st.totalLatency += elapsed
	st.mu.Unlock()

	m.logger.Info("generation succeeded",
		"request_id", req.RequestID,
		"engine", name,
		"pages", out.Pages,
		"bytes", len(out.PDF),
		"elapsed", elapsed,
	)

	result := &engines.GenerationResult{
		Success:     true,
		OutputPath:  req.OutputPath,
		AnchorPages: out.AnchorPages,
		Metadata: &engines.ResultMetadata{
			Pages:          out.Pages,
			FileSize:       int64(len(out.PDF)),
			GenerationTime: elapsed,
			EngineUsed:     name,
		},
	}
	if req.OutputPath == "" {
		result.PDF = out.PDF
	}
	return result, nil
}

// ForceHealthCheck runs an immediate probe for one engine, or for all
// engines when name is empty, updating only the targeted records.
func (m *Manager) ForceHealthCheck(ctx context.Context, name string) error {
	if name == "" {
		m.monitor.ForceCheckAll(ctx)
		return nil
	}
	if !m.monitor.ForceCheck(ctx, name) {
		return fmt.Errorf("%w: %q", ErrEngineNotFound, name)
	}
	return nil
}

// GetEngineStatus returns the current diagnostic view of every engine.
// Safe to call concurrently with Generate.
func (m *Manager) GetEngineStatus() map[string]EngineStatus {
	snap := m.tracker.Snapshot()

	statuses := make(map[string]EngineStatus, len(snap))
	for name, rec := range snap {
		st := EngineStatus{
			Name:                 name,
			Status:               rec.Status.String(),
			ConsecutiveSuccesses: rec.ConsecutiveSuccesses,
			ConsecutiveFailures:  rec.ConsecutiveFailures,
			LastCheckedAt:        rec.LastCheckedAt,
			InFlight:             m.gate.InFlight(name),
		}
		if rec.LastError != nil {
			st.LastError = rec.LastError.Error()
		}
		statuses[name] = st
	}
	return statuses
}

// GetAvailableEngines returns all registered engine names in candidate
// order.
func (m *Manager) GetAvailableEngines() []string {
	return m.candidateOrder()
}

// GetHealthyEngines returns the names of engines currently HEALTHY, in
// candidate order.
func (m *Manager) GetHealthyEngines() []string {
	snap := m.tracker.Snapshot()

	var healthy []string
	for _, name := range m.candidateOrder() {
		if rec, ok := snap[name]; ok && rec.Status == health.StatusHealthy {
			healthy = append(healthy, name)
		}
	}
	return healthy
}

// GetEngineMetrics returns per-engine usage counters.
func (m *Manager) GetEngineMetrics() map[string]MetricsSnapshot {
	m.mu.RLock()
	stats := make(map[string]*engineStats, len(m.stats))
	for name, st := range m.stats {
		stats[name] = st
	}
	m.mu.RUnlock()

	out := make(map[string]MetricsSnapshot, len(stats))
	for name, st := range stats {
		st.mu.Lock()
		snap := MetricsSnapshot{
			TotalRequests: st.totalRequests,
			TotalFailures: st.totalFailures,
			TotalTimeouts: st.totalTimeouts,
			LastUsedAt:    st.lastUsedAt,
		}
		if st.successCount > 0 {
			snap.AvgLatency = st.totalLatency / time.Duration(st.successCount)
		}
		st.mu.Unlock()
		out[name] = snap
	}
	return out
}

// ConfigUpdate carries a partial live configuration change. Nil fields keep
// their current value. Updates affect only future selection and admission
// decisions; in-flight tasks keep their original limits.
type ConfigUpdate struct {
	// Strategy replaces the selection strategy.
	Strategy selection.Strategy

	// Limits replaces the resource limits.
	Limits *gate.Limits

	// Retry replaces the retry policy.
	Retry *RetryPolicy
}

// UpdateConfig merges a partial update into the live configuration.
func (m *Manager) UpdateConfig(update ConfigUpdate) {
	m.mu.Lock()
	if update.Strategy != nil {
		m.strategy = update.Strategy
	}
	if update.Retry != nil {
		m.retry = *update.Retry
	}
	m.mu.Unlock()

	if update.Limits != nil {
		m.gate.Update(*update.Limits)
	}

	m.logger.Info("manager configuration updated",
		"strategy_changed", update.Strategy != nil,
		"limits_changed", update.Limits != nil,
		"retry_changed", update.Retry != nil,
	)
}

// Cleanup stops the health monitor and disposes every engine. After Cleanup,
// Generate fails fast with a "not initialized" error. Cleanup is idempotent.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = false
	engs := make(map[string]engines.Engine, len(m.engines))
	for name, eng := range m.engines {
		engs[name] = eng
	}
	m.mu.Unlock()

	m.monitor.Stop()

	var errs []error
	for name, eng := range engs {
		if err := eng.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("failed to dispose engine %q: %w", name, err))
			m.logger.Error("engine dispose failed", "engine", name, "error", err)
		}
	}

	m.logger.Info("engine manager cleaned up")

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// candidateOrder returns engine names sorted by declared priority, ties
// broken by registration order.
func (m *Manager) candidateOrder() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ordered := make([]string, len(m.order))
	copy(ordered, m.order)

	sort.SliceStable(ordered, func(i, j int) bool {
		return m.engines[ordered[i]].Priority() < m.engines[ordered[j]].Priority()
	})
	return ordered
}

// preferAnchorCapable stably moves engines that can report anchor pages
// ahead of those that cannot. Incapable engines stay in the list as last
// resorts, so an anchor-collecting request still renders somewhere and
// degrades instead of failing outright.
func (m *Manager) preferAnchorCapable(candidates []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	capable := make([]string, 0, len(candidates))
	rest := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if eng, ok := m.engines[name]; ok && eng.Capabilities().SupportsAnchorProbing {
			capable = append(capable, name)
		} else {
			rest = append(rest, name)
		}
	}
	return append(capable, rest...)
}

// statsFor returns the stats bucket for an engine.
func (m *Manager) statsFor(name string) *engineStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats[name]
}

// moveToFront returns names with the given name first, if present.
func moveToFront(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			out := make([]string, 0, len(names))
			out = append(out, name)
			out = append(out, names[:i]...)
			out = append(out, names[i+1:]...)
			return out
		}
	}
	return names
}
