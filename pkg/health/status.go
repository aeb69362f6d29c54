package health

import "time"

// Status is the health state of a rendering engine.
//
// Transitions follow a four-state machine per engine: UNKNOWN is the initial
// state before the first probe; the first probe result moves the engine
// directly to HEALTHY or UNHEALTHY; subsequent transitions are single-step
// promotions or demotions driven by consecutive-outcome thresholds.
type Status int

const (
	// StatusUnknown means the engine has not been probed yet.
	StatusUnknown Status = iota

	// StatusHealthy means the engine is accepting work normally.
	StatusHealthy

	// StatusDegraded means the engine has recently failed but is still usable.
	StatusDegraded

	// StatusUnhealthy means the engine is considered unusable and is tried
	// only as a last resort.
	StatusUnhealthy
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Rank returns the selection preference of the status. Lower ranks sort
// earlier: HEALTHY < DEGRADED < UNKNOWN < UNHEALTHY.
func (s Status) Rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnknown:
		return 2
	default:
		return 3
	}
}

// promote moves the status one level up (UNHEALTHY -> DEGRADED -> HEALTHY).
func (s Status) promote() Status {
	switch s {
	case StatusUnhealthy:
		return StatusDegraded
	case StatusDegraded:
		return StatusHealthy
	default:
		return s
	}
}

// demote moves the status one level down (HEALTHY -> DEGRADED -> UNHEALTHY).
func (s Status) demote() Status {
	switch s {
	case StatusHealthy:
		return StatusDegraded
	case StatusDegraded:
		return StatusUnhealthy
	default:
		return s
	}
}

// Record is the health record of a single engine.
// Records are value snapshots; mutations happen only inside the Tracker.
type Record struct {
	// Status is the current health state.
	Status Status

	// ConsecutiveSuccesses counts successes accumulated toward the next
	// promotion. It resets on failure and after each promotion.
	ConsecutiveSuccesses int

	// ConsecutiveFailures counts whole failure credits accumulated toward
	// the next demotion. Timeouts contribute fractionally (see
	// Thresholds.TimeoutWeight), so this is the floor of the credit. It
	// resets on success and after each demotion.
	ConsecutiveFailures int

	// LastCheckedAt is when the record was last updated by a probe or an
	// attempt outcome.
	LastCheckedAt time.Time

	// LastError is the most recent error observed (nil while healthy).
	LastError error
}

// Outcome is a single probe or generation-attempt result fed to the Tracker.
type Outcome struct {
	// Healthy reports whether the probe or attempt succeeded.
	Healthy bool

	// Timeout marks the failure as a task timeout rather than an
	// engine-reported error. Timeouts count toward demotion with a lighter,
	// configurable weight.
	Timeout bool

	// Err is the failure cause (nil on success).
	Err error
}
