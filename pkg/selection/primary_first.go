package selection

import (
	"typeset-hq/gutenberg/pkg/health"
)

// PrimaryFirst places the designated primary engine first unless it is
// currently UNHEALTHY, in which case the configured fallbacks take the lead
// (kept in their configured order) and the primary drops to the end of the
// list as a last resort. Candidates that are neither the primary nor a
// configured fallback keep their registration order after the fallbacks.
type PrimaryFirst struct {
	primary   string
	fallbacks []string
}

// NewPrimaryFirst creates a primary-first strategy with the given primary
// engine name and ordered fallback list.
func NewPrimaryFirst(primary string, fallbacks []string) *PrimaryFirst {
	return &PrimaryFirst{
		primary:   primary,
		fallbacks: fallbacks,
	}
}

// Select orders candidates with the primary leading while it is usable.
func (s *PrimaryFirst) Select(candidates []string, snapshot map[string]health.Record) []string {
	present := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		present[name] = true
	}

	primaryDemoted := false
	if rec, ok := snapshot[s.primary]; ok && rec.Status == health.StatusUnhealthy {
		primaryDemoted = true
	}

	ordered := make([]string, 0, len(candidates))
	used := make(map[string]bool, len(candidates))

	appendName := func(name string) {
		if present[name] && !used[name] {
			ordered = append(ordered, name)
			used[name] = true
		}
	}

	if !primaryDemoted {
		appendName(s.primary)
	}
	for _, name := range s.fallbacks {
		appendName(name)
	}
	for _, name := range candidates {
		appendName(name)
	}
	if primaryDemoted && present[s.primary] {
		// Drop the primary from wherever the loops placed it and re-append
		// it at the very end: still attempted, but only as a last resort.
		trimmed := ordered[:0]
		for _, name := range ordered {
			if name != s.primary {
				trimmed = append(trimmed, name)
			}
		}
		ordered = append(trimmed, s.primary)
	}

	return ordered
}

// Name returns the strategy name.
func (s *PrimaryFirst) Name() string {
	return NamePrimaryFirst
}
