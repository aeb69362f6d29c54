package selection

import (
	"sync/atomic"

	"typeset-hq/gutenberg/pkg/health"
)

// RoundRobin rotates the lead candidate across calls to spread load evenly,
// with optional weighting to hand some engines more turns. Unhealthy engines
// are moved to the back of the rotation but never removed.
//
// The rotation counter is atomic, so the strategy is safe for concurrent use.
type RoundRobin struct {
	// counter is the global rotation counter.
	counter atomic.Int64

	// weights maps engine names to their weights (default: 1).
	// Higher weight = lead position more often. Zero or negative weight
	// excludes the engine from the rotation (it still appears at the back).
	weights map[string]int
}

// NewRoundRobin creates a round-robin strategy. Weights is optional; if nil
// or empty, all engines rotate with equal weight.
func NewRoundRobin(weights map[string]int) *RoundRobin {
	if weights == nil {
		weights = make(map[string]int)
	}
	return &RoundRobin{weights: weights}
}

// Select returns candidates rotated by the call counter, usable engines
// first.
//
// Algorithm:
//  1. Partition candidates into usable (not UNHEALTHY) and unhealthy.
//  2. Build a weighted turn list from the usable set.
//  3. Pick the lead from the turn list by counter modulo, then lay out the
//     remaining usable engines in rotation order, unhealthy last.
func (s *RoundRobin) Select(candidates []string, snapshot map[string]health.Record) []string {
	usable := make([]string, 0, len(candidates))
	var unhealthy []string
	for _, name := range candidates {
		if rec, ok := snapshot[name]; ok && rec.Status == health.StatusUnhealthy {
			unhealthy = append(unhealthy, name)
			continue
		}
		usable = append(usable, name)
	}

	if len(usable) > 1 {
		turns := s.buildTurnList(usable)
		if len(turns) == 0 {
			turns = usable
		}

		count := s.counter.Add(1) - 1
		if count >= 1_000_000_000 {
			// Reset on overflow to keep the counter in a sane range.
			s.counter.CompareAndSwap(count+1, 0)
			count = 0
		}

		lead := turns[int(count%int64(len(turns)))]
		usable = rotateTo(usable, lead)
	}

	return append(usable, unhealthy...)
}

// Name returns the strategy name.
func (s *RoundRobin) Name() string {
	return NameRoundRobin
}

// Reset resets the rotation counter. Primarily used for testing.
func (s *RoundRobin) Reset() {
	s.counter.Store(0)
}

// buildTurnList expands engines by weight: an engine with weight 2 appears
// twice and therefore leads twice as often.
func (s *RoundRobin) buildTurnList(names []string) []string {
	if len(s.weights) == 0 {
		return names
	}

	var turns []string
	for _, name := range names {
		weight, ok := s.weights[name]
		if !ok {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			turns = append(turns, name)
		}
	}
	return turns
}

// rotateTo reorders names so the given lead comes first, preserving the
// cyclic order of the rest.
func rotateTo(names []string, lead string) []string {
	for i, name := range names {
		if name == lead {
			out := make([]string, 0, len(names))
			out = append(out, names[i:]...)
			out = append(out, names[:i]...)
			return out
		}
	}
	return names
}
