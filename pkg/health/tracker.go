package health

import (
	"log/slog"
	"sync"
	"time"
)

// Thresholds configure the state machine of the Tracker.
type Thresholds struct {
	// PromoteAfter is the number of consecutive successes required to move
	// the status one level up. Default: 2.
	PromoteAfter int

	// DemoteAfter is the failure credit required to move the status one
	// level down. Default: 3.
	DemoteAfter int

	// TimeoutWeight is the failure credit contributed by a timeout, relative
	// to the 1.0 credit of an explicit engine error. Default: 0.5.
	TimeoutWeight float64
}

// DefaultThresholds returns the default state machine thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PromoteAfter:  2,
		DemoteAfter:   3,
		TimeoutWeight: 0.5,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	if t.PromoteAfter <= 0 {
		t.PromoteAfter = 2
	}
	if t.DemoteAfter <= 0 {
		t.DemoteAfter = 3
	}
	if t.TimeoutWeight <= 0 {
		t.TimeoutWeight = 0.5
	}
	return t
}

// entry is the mutable per-engine state. Each entry carries its own lock so
// outcome updates for different engines proceed fully in parallel, while
// concurrent updates for the same engine are serialized.
type entry struct {
	mu            sync.Mutex
	record        Record
	failureCredit float64
}

// Tracker owns the health record table. It is the single serialization point
// for health mutations: probe results from the Monitor and attempt outcomes
// from the manager both funnel through ApplyOutcome. Everything else gets
// read-only snapshots.
type Tracker struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	thresholds Thresholds
	logger     *slog.Logger

	// observer, if set, is invoked with the updated record after every
	// outcome. Used to mirror status changes into metrics.
	observer func(name string, rec Record)
}

// NewTracker creates a health tracker with the given thresholds.
func NewTracker(thresholds Thresholds) *Tracker {
	return &Tracker{
		entries:    make(map[string]*entry),
		thresholds: thresholds.withDefaults(),
		logger:     slog.Default().With("component", "health.tracker"),
	}
}

// SetObserver registers a callback invoked after every record update.
// Must be called before the tracker receives outcomes.
func (t *Tracker) SetObserver(fn func(name string, rec Record)) {
	t.observer = fn
}

// Register creates an UNKNOWN record for an engine. Registering an existing
// name is a no-op so re-initialization keeps accumulated history.
func (t *Tracker) Register(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[name]; !ok {
		t.entries[name] = &entry{record: Record{Status: StatusUnknown}}
	}
}

// Unregister removes an engine's record.
func (t *Tracker) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, name)
}

// ApplyOutcome feeds one probe or attempt outcome into the state machine and
// returns the updated record. Outcomes for unregistered engines are ignored.
func (t *Tracker) ApplyOutcome(name string, out Outcome) (Record, bool) {
	t.mu.RLock()
	e, ok := t.entries[name]
	t.mu.RUnlock()
	if !ok {
		return Record{}, false
	}

	e.mu.Lock()
	prev := e.record.Status

	if out.Healthy {
		e.record.ConsecutiveSuccesses++
		e.record.ConsecutiveFailures = 0
		e.failureCredit = 0
		e.record.LastError = nil

		switch {
		case prev == StatusUnknown:
			// First result decides the initial state directly.
			e.record.Status = StatusHealthy
			e.record.ConsecutiveSuccesses = 0
		case e.record.ConsecutiveSuccesses >= t.thresholds.PromoteAfter:
			e.record.Status = prev.promote()
			e.record.ConsecutiveSuccesses = 0
		}
	} else {
		credit := 1.0
		if out.Timeout {
			credit = t.thresholds.TimeoutWeight
		}
		e.failureCredit += credit
		e.record.ConsecutiveFailures = int(e.failureCredit)
		e.record.ConsecutiveSuccesses = 0
		e.record.LastError = out.Err

		switch {
		case prev == StatusUnknown:
			e.record.Status = StatusUnhealthy
			e.failureCredit = 0
			e.record.ConsecutiveFailures = 0
		case e.failureCredit >= float64(t.thresholds.DemoteAfter):
			e.record.Status = prev.demote()
			e.failureCredit = 0
			e.record.ConsecutiveFailures = 0
		}
	}

	e.record.LastCheckedAt = time.Now()
	rec := e.record
	e.mu.Unlock()

	if rec.Status != prev {
		t.logger.Info("engine status changed",
			"engine", name,
			"from", prev.String(),
			"to", rec.Status.String(),
			"last_error", rec.LastError,
		)
	}

	if t.observer != nil {
		t.observer(name, rec)
	}

	return rec, true
}

// Read returns a copy of one engine's record.
func (t *Tracker) Read(name string) (Record, bool) {
	t.mu.RLock()
	e, ok := t.entries[name]
	t.mu.RUnlock()
	if !ok {
		return Record{}, false
	}

	e.mu.Lock()
	rec := e.record
	e.mu.Unlock()
	return rec, true
}

// Snapshot returns a copy of the full record table. The returned map is safe
// to read and modify; it does not alias tracker state.
func (t *Tracker) Snapshot() map[string]Record {
	t.mu.RLock()
	entries := make(map[string]*entry, len(t.entries))
	for name, e := range t.entries {
		entries[name] = e
	}
	t.mu.RUnlock()

	snap := make(map[string]Record, len(entries))
	for name, e := range entries {
		e.mu.Lock()
		snap[name] = e.record
		e.mu.Unlock()
	}
	return snap
}

// Names returns the registered engine names.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	return names
}
