package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProbeFunc performs a single health probe for one engine.
type ProbeFunc func(ctx context.Context) error

// ProbeSource supplies the current set of probe targets. The manager
// implements this over its registered engines, so the monitor never holds
// engine references of its own.
type ProbeSource interface {
	// Probes returns the probe function for every registered engine.
	Probes() map[string]ProbeFunc
}

// MonitorConfig configures the health monitor loop.
type MonitorConfig struct {
	// Interval is the time between probe cycles. Default: 30s.
	Interval time.Duration

	// ProbeTimeout bounds each individual probe. Default: 5s.
	ProbeTimeout time.Duration

	// UnhealthyBackoff enables exponential probe backoff for engines that
	// keep failing, to reduce load on a renderer that is clearly down.
	UnhealthyBackoff bool
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	return c
}

// Monitor runs the periodic probe loop. Each tick it probes every registered
// engine concurrently, each probe bounded by its own timeout, and feeds the
// outcomes into the Tracker. The monitor never blocks generation calls and
// stops without waiting for in-flight probes.
type Monitor struct {
	tracker *Tracker
	source  ProbeSource
	config  MonitorConfig
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}

	// nextProbe holds the earliest next-probe time per engine when backoff
	// is enabled. Guarded by mu; only the loop goroutine and Stop touch it.
	nextProbe map[string]time.Time
}

// NewMonitor creates a health monitor feeding the given tracker.
func NewMonitor(tracker *Tracker, source ProbeSource, cfg MonitorConfig) *Monitor {
	return &Monitor{
		tracker:   tracker,
		source:    source,
		config:    cfg.withDefaults(),
		logger:    slog.Default().With("component", "health.monitor"),
		nextProbe: make(map[string]time.Time),
	}
}

// Start launches the probe loop. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.doneCh = make(chan struct{})
	m.running = true

	go m.run(ctx)

	m.logger.Info("health monitor started",
		"interval", m.config.Interval,
		"probe_timeout", m.config.ProbeTimeout,
	)
}

// Stop cancels the probe loop. In-flight probes are abandoned: their contexts
// are cancelled and their results discarded. Stop waits only for the loop
// goroutine itself to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.doneCh
	m.mu.Unlock()

	cancel()
	<-done

	m.logger.Info("health monitor stopped")
}

// run is the ticker loop.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeCycle(ctx)
		}
	}
}

// probeCycle launches one probe goroutine per due engine. Probes are
// fire-and-forget: the loop never waits for them, so a stuck probe cannot
// delay ticks or shutdown. Results arriving after Stop are discarded.
func (m *Monitor) probeCycle(ctx context.Context) {
	probes := m.source.Probes()
	now := time.Now()

	for name, probe := range probes {
		if m.config.UnhealthyBackoff && m.deferUntil(name).After(now) {
			continue
		}

		go m.runProbe(ctx, name, probe)
	}
}

// runProbe executes one probe with its own timeout and applies the outcome.
func (m *Monitor) runProbe(ctx context.Context, name string, probe ProbeFunc) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := probe(probeCtx)
	latency := time.Since(start)

	if ctx.Err() != nil {
		// Monitor stopped while the probe was in flight; discard.
		return
	}

	if err != nil {
		rec, _ := m.tracker.ApplyOutcome(name, Outcome{Healthy: false, Err: err})
		m.scheduleBackoff(name, rec)
		m.logger.Debug("probe failed",
			"engine", name,
			"error", err,
			"latency", latency,
			"status", rec.Status.String(),
		)
		return
	}

	m.tracker.ApplyOutcome(name, Outcome{Healthy: true})
	m.clearBackoff(name)
	m.logger.Debug("probe passed", "engine", name, "latency", latency)
}

// ForceCheck probes a single engine immediately, outside the regular
// interval, updating only that engine's record. Returns false if the engine
// is unknown to the probe source.
func (m *Monitor) ForceCheck(ctx context.Context, name string) bool {
	probe, ok := m.source.Probes()[name]
	if !ok {
		return false
	}
	m.runProbe(ctx, name, probe)
	return true
}

// ForceCheckAll probes every registered engine immediately.
func (m *Monitor) ForceCheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for name, probe := range m.source.Probes() {
		wg.Add(1)
		go func(name string, probe ProbeFunc) {
			defer wg.Done()
			m.runProbe(ctx, name, probe)
		}(name, probe)
	}
	wg.Wait()
}

// deferUntil returns the earliest next-probe time for an engine.
func (m *Monitor) deferUntil(name string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextProbe[name]
}

// scheduleBackoff pushes out the next probe for an engine that keeps
// failing. Backoff is exponential in the failure count, capped at 10x the
// base interval or 5 minutes, whichever is smaller.
func (m *Monitor) scheduleBackoff(name string, rec Record) {
	if !m.config.UnhealthyBackoff || rec.Status != StatusUnhealthy {
		return
	}

	multiplier := 1 << uint(min(rec.ConsecutiveFailures, 4))
	if multiplier > 10 {
		multiplier = 10
	}
	backoff := m.config.Interval * time.Duration(multiplier)
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}

	m.mu.Lock()
	m.nextProbe[name] = time.Now().Add(backoff)
	m.mu.Unlock()

	m.logger.Debug("probe backoff scheduled",
		"engine", name,
		"consecutive_failures", rec.ConsecutiveFailures,
		"next_probe_in", backoff,
	)
}

// clearBackoff resets the probe schedule after a success.
func (m *Monitor) clearBackoff(name string) {
	if !m.config.UnhealthyBackoff {
		return
	}
	m.mu.Lock()
	delete(m.nextProbe, name)
	m.mu.Unlock()
}
