package shadow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpilot/strategycore/internal/domain"
)

func variant(id string, views, saves, shares int64, velocity float64) domain.ShadowVariantResult {
	return domain.ShadowVariantResult{
		VariantID:    id,
		Views:        views,
		Saves:        saves,
		Shares:       shares,
		ViewVelocity: velocity,
		Confidence:   0.9,
	}
}

func TestEvaluate_AllBelowViewFloorDefers(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	results := []domain.ShadowVariantResult{
		variant("v1", 150, 10, 5, 0.3),
		variant("v2", 80, 2, 1, 0.1),
	}

	winner := e.Evaluate(CheckpointPrimary, results, 0.05)
	assert.True(t, winner.Deferred)
	assert.Empty(t, winner.WinnerID)
	assert.Contains(t, winner.Rationale, "view floor")
}

func TestEvaluate_SufficientSamplePicksHighestPrimary(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	results := []domain.ShadowVariantResult{
		variant("strong", 3000, 300, 150, 0.6),
		variant("weak", 2500, 20, 10, 0.1),
	}

	winner := e.Evaluate(CheckpointPrimary, results, 0.05)
	require.False(t, winner.Deferred, "rationale: %s", winner.Rationale)
	assert.Equal(t, "strong", winner.WinnerID)
	assert.Equal(t, "strong", winner.Ranked[0].VariantID)
}

func TestEvaluate_EarlyCheckpointNeverBinds(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	results := []domain.ShadowVariantResult{
		variant("strong", 3000, 300, 150, 0.6),
		variant("weak", 2500, 20, 10, 0.1),
	}

	winner := e.Evaluate(CheckpointEarly, results, 0.05)
	assert.True(t, winner.Deferred)
	assert.Empty(t, winner.WinnerID)
	assert.Contains(t, winner.Rationale, "strong")
}

func TestEvaluate_NearTieUsesSecondaryMetrics(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	a := variant("a", 3000, 100, 50, 0.30)
	b := variant("b", 3000, 100, 50, 0.30)
	a.CommentQuality = 0.2
	b.CommentQuality = 0.6

	winner := e.Evaluate(CheckpointPrimary, []domain.ShadowVariantResult{a, b}, 0.05)
	require.False(t, winner.Deferred)
	assert.Equal(t, "b", winner.WinnerID)
	assert.Contains(t, winner.Rationale, "comment quality")
}

func TestEvaluate_FullTieDefers(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	a := variant("a", 3000, 100, 50, 0.30)
	b := variant("b", 3000, 100, 50, 0.30)

	winner := e.Evaluate(CheckpointPrimary, []domain.ShadowVariantResult{a, b}, 0.05)
	assert.True(t, winner.Deferred)
	assert.Contains(t, winner.Rationale, "secondary metrics tied")
}

func TestEvaluate_SmallAggregateDefers(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	winner := e.Evaluate(CheckpointPrimary, []domain.ShadowVariantResult{
		variant("only", 250, 30, 10, 0.4),
	}, 0.05)
	assert.True(t, winner.Deferred)
	assert.Contains(t, winner.Rationale, "aggregate sample")
}

func TestEvaluate_ConfidenceMonotoneInData(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	early := []domain.ShadowVariantResult{
		variant("a", 400, 20, 10, 0.3),
		variant("b", 350, 30, 5, 0.2),
	}
	later := []domain.ShadowVariantResult{
		variant("a", 2200, 110, 60, 0.32),
		variant("b", 1800, 140, 30, 0.22),
	}

	first := e.Evaluate(CheckpointEarly, early, 0.05)
	second := e.Evaluate(CheckpointPrimary, later, 0.05)
	assert.GreaterOrEqual(t, second.Confidence, first.Confidence,
		"confidence must only rise or hold as data accumulates")
}

func TestEvaluate_ShrinkageProtectsSmallSamples(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	// Tiny sample with an inflated rate vs a large steady sample.
	inflated := variant("inflated", 210, 60, 40, 0.05) // raw rate ~0.48
	steady := variant("steady", 5000, 900, 350, 0.05)  // raw rate 0.25

	winner := e.Evaluate(CheckpointPrimary, []domain.ShadowVariantResult{inflated, steady}, 0.02)
	require.False(t, winner.Deferred, "rationale: %s", winner.Rationale)
	assert.Equal(t, "steady", winner.WinnerID,
		"shrinkage must pull the small inflated sample toward the baseline")
}
