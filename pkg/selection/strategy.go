package selection

import (
	"errors"

	"typeset-hq/gutenberg/pkg/health"
)

// Strategy errors.
var (
	// ErrUnknownStrategy is returned when an unrecognized strategy name is
	// configured.
	ErrUnknownStrategy = errors.New("unknown selection strategy")
)

// Strategy names accepted in configuration.
const (
	NameHealthFirst  = "health-first"
	NamePrimaryFirst = "primary-first"
	NameRoundRobin   = "round-robin"
)

// Strategy produces an ordered candidate list of engine names for one
// generation request.
//
// Strategies are pure functions of their inputs: they read the health
// snapshot passed in, never engine state directly, and mutate nothing. This
// keeps them trivially unit-testable and safe to call concurrently from
// multiple goroutines handling simultaneous requests (round-robin keeps an
// internal counter but it is atomic and observable only through ordering).
//
// The candidates slice is the manager's registration order, which doubles as
// the explicit tie-break for engines with identical status.
type Strategy interface {
	// Select returns candidate names ordered from most to least preferred.
	// Every input candidate appears exactly once in the output: unhealthy
	// engines sort last rather than being removed, so a manager with zero
	// healthy engines still attempts something.
	Select(candidates []string, snapshot map[string]health.Record) []string

	// Name returns the strategy name for logging and diagnostics.
	Name() string
}
