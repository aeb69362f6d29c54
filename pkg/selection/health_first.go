package selection

import (
	"sort"

	"typeset-hq/gutenberg/pkg/health"
)

// HealthFirst ranks candidates by health status: healthy engines first, then
// degraded, then unknown, with unhealthy engines appended last rather than
// removed. Ties are broken by the candidates' input order, which is the
// manager's registration order.
type HealthFirst struct{}

// NewHealthFirst creates a health-first strategy.
func NewHealthFirst() *HealthFirst {
	return &HealthFirst{}
}

// Select orders candidates by status rank. Engines missing from the
// snapshot are treated as UNKNOWN.
func (s *HealthFirst) Select(candidates []string, snapshot map[string]health.Record) []string {
	ordered := make([]string, len(candidates))
	copy(ordered, candidates)

	// SliceStable keeps registration order within equal ranks.
	sort.SliceStable(ordered, func(i, j int) bool {
		return rankOf(ordered[i], snapshot) < rankOf(ordered[j], snapshot)
	})

	return ordered
}

// Name returns the strategy name.
func (s *HealthFirst) Name() string {
	return NameHealthFirst
}

// rankOf returns the selection rank of a candidate, defaulting to UNKNOWN
// for engines without a health record.
func rankOf(name string, snapshot map[string]health.Record) int {
	rec, ok := snapshot[name]
	if !ok {
		return health.StatusUnknown.Rank()
	}
	return rec.Status.Rank()
}
