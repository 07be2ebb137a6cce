package bandit

import (
	"github.com/reelpilot/strategycore/internal/domain"
)

// State is the persistable bandit snapshot: arm stats plus the exploration
// coefficient in force when the snapshot was taken.
type State struct {
	Arms                   []domain.Archetype `json:"arms"`
	ExplorationCoefficient float64            `json:"exploration_coefficient"`
}

// Export captures all arm stats for persistence.
func (o *Optimizer) Export(epsilon float64) State {
	return State{Arms: o.Arms(), ExplorationCoefficient: epsilon}
}

// Import restores arm stats from a persisted snapshot. Existing stats for the
// same arm id are overwritten; arms absent from the snapshot are kept.
func (o *Optimizer) Import(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, arm := range state.Arms {
		restored := arm
		o.arms[arm.ID] = &restored
	}
}
