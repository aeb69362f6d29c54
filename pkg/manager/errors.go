package manager

import (
	"errors"
	"fmt"
	"strings"
)

// Common manager errors that can be checked with errors.Is().
var (
	// ErrNotInitialized is returned when Generate is called before
	// Initialize or after Cleanup.
	ErrNotInitialized = errors.New("engine manager not initialized")

	// ErrAllEnginesFailed is returned when every candidate engine was
	// exhausted without producing an artifact.
	ErrAllEnginesFailed = errors.New("all engines failed")

	// ErrEngineNotFound is returned by diagnostics targeting an unknown
	// engine.
	ErrEngineNotFound = errors.New("engine not found")
)

// AttemptError records the final error of one candidate engine during a
// failover loop.
type AttemptError struct {
	// Engine is the candidate name.
	Engine string

	// Err is the last error from that candidate after retries.
	Err error
}

// AllEnginesFailedError is returned when the failover loop exhausts every
// candidate. It names the attempted engines and their last errors so the
// failure result is actionable without log-diving.
type AllEnginesFailedError struct {
	// Attempts holds one entry per attempted candidate, in attempt order.
	Attempts []AttemptError
}

// Error implements the error interface.
func (e *AllEnginesFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all engines failed (no candidates attempted)"
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Engine, a.Err))
	}
	return fmt.Sprintf("all engines failed: %s", strings.Join(parts, "; "))
}

// Is implements error matching for errors.Is().
func (e *AllEnginesFailedError) Is(target error) bool {
	return target == ErrAllEnginesFailed
}

// Unwrap returns the last attempt's error for error chain traversal.
func (e *AllEnginesFailedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
