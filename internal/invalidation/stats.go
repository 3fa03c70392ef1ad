package invalidation

import (
	"sync"

	"promptliano-client/internal/domain"
)

// Stats holds the engine's running counters. They live for the process and
// are reset only on demand through ResetStats.
type Stats struct {
	mu             sync.Mutex
	total          int64
	byRule         map[string]int64
	byEntity       map[domain.EntityType]int64
	averageTargets float64
}

// StatsSnapshot is the read-only view handed to diagnostics consumers.
type StatsSnapshot struct {
	Total          int64                       `json:"total"`
	ByRule         map[string]int64            `json:"byRule"`
	ByEntity       map[domain.EntityType]int64 `json:"byEntity"`
	AverageTargets float64                     `json:"averageTargets"`
}

// NewStats creates zeroed counters.
func NewStats() *Stats {
	return &Stats{
		byRule:   make(map[string]int64),
		byEntity: make(map[domain.EntityType]int64),
	}
}

// Record tallies one engine invocation.
func (s *Stats) Record(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byEntity[event.Entity]++
	for _, ruleID := range event.TriggeredRuleIDs {
		s.byRule[ruleID]++
	}
	// Running average of targets per invalidation.
	s.averageTargets += (float64(event.TargetsInvalidated) - s.averageTargets) / float64(s.total)
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Total:          s.total,
		ByRule:         make(map[string]int64, len(s.byRule)),
		ByEntity:       make(map[domain.EntityType]int64, len(s.byEntity)),
		AverageTargets: s.averageTargets,
	}
	for k, v := range s.byRule {
		snap.ByRule[k] = v
	}
	for k, v := range s.byEntity {
		snap.ByEntity[k] = v
	}
	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.byRule = make(map[string]int64)
	s.byEntity = make(map[domain.EntityType]int64)
	s.averageTargets = 0
}
