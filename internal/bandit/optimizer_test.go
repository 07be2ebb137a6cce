package bandit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/reelpilot/strategycore/internal/domain"
)

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestSelect_GreedyPicksHighestMean(t *testing.T) {
	o := New(seeded(1))
	o.AddArm("teardown")
	o.AddArm("listicle")
	o.Import(State{Arms: []domain.Archetype{
		{ID: "teardown", Pulls: 10, TotalReward: 8, MeanReward: 0.8},
		{ID: "listicle", Pulls: 10, TotalReward: 3, MeanReward: 0.3},
	}})

	picked, err := o.Select(0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if picked != "teardown" {
		t.Errorf("expected greedy pick teardown, got %s", picked)
	}
}

func TestSelect_TieBreakFewerPullsThenLowestID(t *testing.T) {
	o := New(seeded(1))
	o.Import(State{Arms: []domain.Archetype{
		{ID: "b_arm", Pulls: 5, TotalReward: 2.5, MeanReward: 0.5},
		{ID: "c_arm", Pulls: 2, TotalReward: 1.0, MeanReward: 0.5},
		{ID: "a_arm", Pulls: 5, TotalReward: 2.5, MeanReward: 0.5},
	}})

	picked, err := o.Select(0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if picked != "c_arm" {
		t.Errorf("fewer pulls must win the tie, got %s", picked)
	}

	// Equal pulls as well: lowest id wins.
	o2 := New(seeded(1))
	o2.Import(State{Arms: []domain.Archetype{
		{ID: "b_arm", Pulls: 5, TotalReward: 2.5, MeanReward: 0.5},
		{ID: "a_arm", Pulls: 5, TotalReward: 2.5, MeanReward: 0.5},
	}})
	picked, _ = o2.Select(0.0)
	if picked != "a_arm" {
		t.Errorf("lowest id must win the final tie, got %s", picked)
	}
}

func TestSelect_ExplorationFrequency(t *testing.T) {
	// Archetype A: mean 0.8 across 50 pulls. New archetype B: 0 pulls.
	// With epsilon 0.10, B should be selected about 10% of the time.
	o := New(seeded(42))
	o.Import(State{Arms: []domain.Archetype{
		{ID: "a", Pulls: 50, TotalReward: 40, MeanReward: 0.8},
		{ID: "b", Pulls: 0},
	}})

	const trials = 10000
	bCount := 0
	for i := 0; i < trials; i++ {
		picked, err := o.Select(0.10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if picked == "b" {
			bCount++
		}
	}

	rate := float64(bCount) / trials
	if math.Abs(rate-0.10) > 0.01 {
		t.Errorf("expected b selection rate ~0.10, got %.4f", rate)
	}
}

func TestSelect_InvalidEpsilon(t *testing.T) {
	o := New(seeded(1))
	o.AddArm("a")
	if _, err := o.Select(1.5); err == nil {
		t.Error("expected validation error for epsilon > 1")
	}
	if _, err := o.Select(-0.1); err == nil {
		t.Error("expected validation error for epsilon < 0")
	}
}

func TestRegisterReward_Idempotent(t *testing.T) {
	o := New(seeded(1))
	o.AddArm("teardown")

	metrics := map[string]float64{"views": 1000, "saves": 50}
	weights := map[string]float64{"views": 0.001, "saves": 0.02}

	first, err := o.RegisterReward("teardown", "post-123", metrics, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := o.RegisterReward("teardown", "post-123", metrics, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("repeated registration returned different reward: %f vs %f", first, second)
	}

	arms := o.Arms()
	if arms[0].Pulls != 1 {
		t.Errorf("pulls must change exactly once, got %d", arms[0].Pulls)
	}
	expected := 1000*0.001 + 50*0.02
	if math.Abs(arms[0].TotalReward-expected) > 1e-9 {
		t.Errorf("expected total reward %f, got %f", expected, arms[0].TotalReward)
	}
}

func TestRegisterReward_UnknownArm(t *testing.T) {
	o := New(seeded(1))
	o.AddArm("teardown")

	_, err := o.RegisterReward("ghost", "post-1", map[string]float64{"views": 1}, map[string]float64{"views": 1})
	if !domain.IsArmNotFound(err) {
		t.Fatalf("expected arm-not-found, got %v", err)
	}

	// Nothing mutated.
	for _, arm := range o.Arms() {
		if arm.Pulls != 0 || arm.TotalReward != 0 {
			t.Errorf("arm %s mutated by failed registration", arm.ID)
		}
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	o := New(seeded(1))
	o.AddArm("teardown")
	o.AddArm("listicle")
	if _, err := o.RegisterReward("teardown", "p1", map[string]float64{"views": 500}, map[string]float64{"views": 0.001}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exported := o.Export(0.2)

	restored := New(seeded(2))
	restored.Import(exported)
	again := restored.Export(0.2)

	if len(again.Arms) != len(exported.Arms) {
		t.Fatalf("arm count mismatch: %d vs %d", len(again.Arms), len(exported.Arms))
	}
	for i := range exported.Arms {
		if again.Arms[i] != exported.Arms[i] {
			t.Errorf("arm %d round trip mismatch: %+v vs %+v", i, again.Arms[i], exported.Arms[i])
		}
	}
}
