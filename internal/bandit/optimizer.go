package bandit

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/reelpilot/strategycore/internal/domain"
)

// Optimizer is an epsilon-greedy bandit over content archetypes. Reward
// registration is an atomic read-modify-write per arm, idempotent per
// (archetype, content) key, so concurrent cycles touching the same arm never
// lose updates or double-count a post.
type Optimizer struct {
	mu   sync.Mutex
	arms map[string]*domain.Archetype
	// registered maps idempotency key -> reward applied on first call.
	registered map[string]float64
	rng        *rand.Rand
}

// New creates an optimizer with the given random source. Pass nil for a
// time-seeded source; tests inject a seeded one for reproducibility.
func New(rng *rand.Rand) *Optimizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Optimizer{
		arms:       make(map[string]*domain.Archetype),
		registered: make(map[string]float64),
		rng:        rng,
	}
}

// AddArm registers an archetype as a selectable arm. Adding an existing id is
// a no-op so arms survive repeated cycle setup.
func (o *Optimizer) AddArm(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.arms[id]; !exists {
		o.arms[id] = &domain.Archetype{ID: id}
	}
}

// Arms returns a stable-ordered snapshot of all arm stats.
func (o *Optimizer) Arms() []domain.Archetype {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.Archetype, 0, len(o.arms))
	for _, arm := range o.arms {
		out = append(out, *arm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Select picks an archetype: with probability epsilon, uniformly among
// non-top-mean arms; otherwise the arm with the highest mean reward.
// Mean ties break toward fewer cumulative pulls, then lowest id.
func (o *Optimizer) Select(epsilon float64) (string, error) {
	if epsilon < 0 || epsilon > 1 {
		return "", &domain.ValidationError{Field: "epsilon", Reason: fmt.Sprintf("%.4f outside [0,1]", epsilon)}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.arms) == 0 {
		return "", &domain.ValidationError{Field: "arms", Reason: "no archetypes registered"}
	}

	top := o.topArmLocked()
	if o.rng.Float64() < epsilon {
		others := make([]string, 0, len(o.arms)-1)
		for id := range o.arms {
			if id != top {
				others = append(others, id)
			}
		}
		if len(others) > 0 {
			sort.Strings(others)
			return others[o.rng.Intn(len(others))], nil
		}
		// Single arm: exploration collapses to the only choice.
	}
	return top, nil
}

// topArmLocked returns the greedy choice under the documented tie-break:
// highest mean reward, then fewer pulls, then lowest id.
func (o *Optimizer) topArmLocked() string {
	ids := make([]string, 0, len(o.arms))
	for id := range o.arms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ids[0]
	for _, id := range ids[1:] {
		arm, incumbent := o.arms[id], o.arms[best]
		switch {
		case arm.MeanReward > incumbent.MeanReward:
			best = id
		case arm.MeanReward == incumbent.MeanReward && arm.Pulls < incumbent.Pulls:
			best = id
		}
	}
	return best
}

// RegisterReward computes the scalar reward for the given metrics under the
// reward weights, then applies it to the arm. Unknown arms fail with a
// not-found error and mutate nothing. The (archetypeID, contentID) key makes
// repeated registration a no-op after the first call.
func (o *Optimizer) RegisterReward(archetypeID, contentID string, metrics, weights map[string]float64) (float64, error) {
	if contentID == "" {
		return 0, &domain.ValidationError{Field: "content_id", Reason: "empty idempotency key"}
	}
	reward := WeightedReward(metrics, weights)

	o.mu.Lock()
	defer o.mu.Unlock()

	arm, exists := o.arms[archetypeID]
	if !exists {
		return 0, &domain.NotFoundError{Kind: "archetype", ID: archetypeID}
	}

	key := archetypeID + ":" + contentID
	if prior, done := o.registered[key]; done {
		return prior, nil
	}

	arm.Pulls++
	arm.TotalReward += reward
	arm.MeanReward = arm.TotalReward / float64(arm.Pulls)
	o.registered[key] = reward
	return reward, nil
}

// WeightedReward collapses a metric map to a scalar using the configured
// reward weights. Metrics without a weight contribute nothing.
func WeightedReward(metrics, weights map[string]float64) float64 {
	total := 0.0
	for metric, value := range metrics {
		total += value * weights[metric]
	}
	return total
}
