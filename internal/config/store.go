package config

import (
	"fmt"
	"sync"

	"github.com/reelpilot/strategycore/internal/domain"
)

// Store owns the mutable versioned strategy config. Mutation is serialized
// through compare-and-swap on the version id (single-writer semantics);
// readers take an isolated snapshot at cycle start and never observe a
// mid-cycle change.
type Store struct {
	mu      sync.RWMutex
	current domain.StrategyConfig
}

// NewStore creates a store seeded with a validated strategy config.
func NewStore(initial domain.StrategyConfig) (*Store, error) {
	if err := ValidateStrategy(initial); err != nil {
		return nil, err
	}
	return &Store{current: initial}, nil
}

// Snapshot returns an isolated deep copy of the current config.
func (s *Store) Snapshot() domain.StrategyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Version returns the current config version.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Version
}

// CompareAndSwap installs next if the caller's snapshot version still
// matches, bumping the version. A stale snapshot fails so a concurrent
// cycle's update is never silently overwritten.
func (s *Store) CompareAndSwap(snapshotVersion int64, next domain.StrategyConfig) (domain.StrategyConfig, error) {
	if err := ValidateStrategy(next); err != nil {
		return domain.StrategyConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Version != snapshotVersion {
		return domain.StrategyConfig{}, fmt.Errorf("config version %d superseded by %d: stale snapshot", snapshotVersion, s.current.Version)
	}
	next.Version = snapshotVersion + 1
	s.current = next.Clone()
	return s.current.Clone(), nil
}

// SetAnomalyFlag flips the anomaly freeze outside the CAS path; incident
// tooling may raise it at any time.
func (s *Store) SetAnomalyFlag(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.AnomalyFlag = active
}
