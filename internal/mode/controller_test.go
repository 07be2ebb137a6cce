package mode

import (
	"math/rand"
	"testing"
	"time"

	"github.com/reelpilot/strategycore/internal/domain"
)

var t0 = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func stateIn(m domain.Mode, enteredAgo time.Duration) domain.ModeState {
	return domain.ModeState{
		Current:      m,
		EnteredAt:    t0.Add(-enteredAgo),
		LastSwitchAt: t0.Add(-enteredAgo),
	}
}

func TestDecide_ExploitToExploreOnFatigue(t *testing.T) {
	c := NewController(DefaultThresholds())

	d := c.Decide(stateIn(domain.ModeExploit, 8*time.Hour), Inputs{NoveltyFatigueIndex: 0.70}, t0)
	if d.Next != domain.ModeExplore || !d.Changed {
		t.Errorf("expected explore transition, got %+v", d)
	}
}

func TestDecide_CooldownBlocksSwitch(t *testing.T) {
	c := NewController(DefaultThresholds())

	// Switched 2h ago; fatigue alone cannot trigger another switch.
	d := c.Decide(stateIn(domain.ModeExploit, 2*time.Hour), Inputs{NoveltyFatigueIndex: 0.9}, t0)
	if d.Changed || d.Next != domain.ModeExploit {
		t.Errorf("switch within 6h must be rejected, got %+v", d)
	}
	if len(d.Rationale) == 0 || d.Rationale[0] != "switch_cooldown_active" {
		t.Errorf("expected cooldown rationale, got %v", d.Rationale)
	}
}

func TestDecide_ExploreToMutationOnWinStreak(t *testing.T) {
	c := NewController(DefaultThresholds())

	d := c.Decide(stateIn(domain.ModeExplore, 10*time.Hour), Inputs{ConsecutiveWinStreak: 3}, t0)
	if d.Next != domain.ModeMutation || !d.Changed {
		t.Errorf("expected mutation transition, got %+v", d)
	}
}

func TestDecide_ChaosRequiresPlateauAndBudget(t *testing.T) {
	c := NewController(DefaultThresholds())

	base := stateIn(domain.ModeExploit, 20*time.Hour)

	d := c.Decide(base, Inputs{PlateauCycles: 3, RiskBudget: 0.7}, t0)
	if d.Next != domain.ModeChaos {
		t.Errorf("expected chaos entry, got %+v", d)
	}

	d = c.Decide(base, Inputs{PlateauCycles: 3, RiskBudget: 0.3}, t0)
	if d.Next == domain.ModeChaos {
		t.Error("risk budget below floor must block chaos")
	}

	d = c.Decide(base, Inputs{PlateauCycles: 2, RiskBudget: 0.9}, t0)
	if d.Next == domain.ModeChaos {
		t.Error("short plateau must block chaos")
	}
}

func TestDecide_ChaosReentryCooldown(t *testing.T) {
	c := NewController(DefaultThresholds())

	state := stateIn(domain.ModeExploit, 20*time.Hour)
	state.LastChaosExitAt = t0.Add(-5 * time.Hour)

	d := c.Decide(state, Inputs{PlateauCycles: 5, RiskBudget: 0.9}, t0)
	if d.Next == domain.ModeChaos {
		t.Error("chaos re-entry within 12h of exit must be rejected")
	}

	state.LastChaosExitAt = t0.Add(-13 * time.Hour)
	d = c.Decide(state, Inputs{PlateauCycles: 5, RiskBudget: 0.9}, t0)
	if d.Next != domain.ModeChaos {
		t.Errorf("chaos re-entry after cooldown expected, got %+v", d)
	}
}

func TestDecide_ChaosExitsWithoutLift(t *testing.T) {
	c := NewController(DefaultThresholds())

	d := c.Decide(stateIn(domain.ModeChaos, 49*time.Hour), Inputs{TopDecileLift: false}, t0)
	if d.Next != domain.ModeExploit || !d.Changed {
		t.Errorf("expected chaos exit after 48h without lift, got %+v", d)
	}

	d = c.Decide(stateIn(domain.ModeChaos, 49*time.Hour), Inputs{TopDecileLift: true}, t0)
	if d.Changed {
		t.Errorf("observed lift must keep chaos running, got %+v", d)
	}
}

func TestDecide_AutoStops(t *testing.T) {
	c := NewController(DefaultThresholds())

	cases := []struct {
		name   string
		state  domain.ModeState
		inputs Inputs
	}{
		{"explore_drawdown", stateIn(domain.ModeExplore, time.Hour), Inputs{Drawdown24h: 0.30}},
		{"mutation_no_uplift", stateIn(domain.ModeMutation, time.Hour), Inputs{MutationRoundsNoUplift: 3}},
		{"chaos_safety", stateIn(domain.ModeChaos, time.Minute), Inputs{SafetyTrigger: true}},
		{"chaos_severe_drawdown", stateIn(domain.ModeChaos, time.Minute), Inputs{SevereDrawdown: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := c.Decide(tc.state, tc.inputs, t0)
			if d.Next != domain.ModeExploit || !d.Changed {
				t.Errorf("auto-stop must force exploit, got %+v", d)
			}
		})
	}

	// Exploit low-signal stop pauses in place rather than switching.
	d := c.Decide(stateIn(domain.ModeExploit, time.Hour), Inputs{LowSignalPosts: 2}, t0)
	if d.Next != domain.ModeExploit || d.Changed {
		t.Errorf("exploit auto-stop stays in exploit, got %+v", d)
	}
}

func TestDecide_NeverLeavesEdgeSet(t *testing.T) {
	c := NewController(DefaultThresholds())
	rng := rand.New(rand.NewSource(7))

	modes := []domain.Mode{domain.ModeExploit, domain.ModeExplore, domain.ModeMutation, domain.ModeChaos}
	for i := 0; i < 5000; i++ {
		from := modes[rng.Intn(len(modes))]
		state := stateIn(from, time.Duration(rng.Intn(96))*time.Hour)
		inputs := Inputs{
			HitRate7d:              rng.Float64(),
			NoveltyFatigueIndex:    rng.Float64() * 1.2,
			PlateauCycles:          rng.Intn(6),
			RiskBudget:             rng.Float64(),
			Drawdown24h:            rng.Float64() * 0.5,
			ConsecutiveWinStreak:   rng.Intn(5),
			LowSignalPosts:         rng.Intn(4),
			MutationRoundsNoUplift: rng.Intn(5),
			TopDecileLift:          rng.Intn(2) == 0,
			SafetyTrigger:          rng.Intn(10) == 0,
			SevereDrawdown:         rng.Intn(10) == 0,
		}

		d := c.Decide(state, inputs, t0)
		if d.Changed && !EdgeAllowed(from, d.Next) {
			t.Fatalf("illegal transition %s -> %s (inputs %+v)", from, d.Next, inputs)
		}
	}
}

func TestNextExplorationCoefficient_AlwaysClamped(t *testing.T) {
	p := DefaultCoefficientParams()
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 10000; i++ {
		params := p
		params.Alpha = rng.Float64()*20 - 10
		params.Beta = rng.Float64()*20 - 10
		current := rng.Float64()*2 - 0.5
		regret := rng.Float64()*4 - 2
		drawdown := rng.Float64()*4 - 2

		next := NextExplorationCoefficient(current, regret, drawdown, params)
		if next < params.Min || next > params.Max {
			t.Fatalf("coefficient %f escaped [%f, %f]", next, params.Min, params.Max)
		}
	}
}

func TestApply_TracksChaosExit(t *testing.T) {
	c := NewController(DefaultThresholds())
	state := stateIn(domain.ModeChaos, 49*time.Hour)
	next := c.Apply(state, Decision{Next: domain.ModeExploit, Changed: true}, Inputs{}, t0)

	if next.Current != domain.ModeExploit {
		t.Errorf("expected exploit, got %s", next.Current)
	}
	if !next.LastChaosExitAt.Equal(t0) {
		t.Errorf("chaos exit time not recorded: %v", next.LastChaosExitAt)
	}
	if !next.LastSwitchAt.Equal(t0) {
		t.Errorf("switch time not recorded: %v", next.LastSwitchAt)
	}
}

func TestApply_CarriesStreakCounters(t *testing.T) {
	c := NewController(DefaultThresholds())
	state := stateIn(domain.ModeExplore, time.Hour)
	inputs := Inputs{ConsecutiveWinStreak: 2, LowSignalPosts: 1, MutationRoundsNoUplift: 1}

	next := c.Apply(state, Decision{Next: domain.ModeExplore}, inputs, t0)
	if next.ConsecutiveWins != 2 || next.ConsecutiveLowSignal != 1 || next.MutationIterations != 1 {
		t.Errorf("streak counters not carried: %+v", next)
	}
	if !next.CooldownUntil.IsZero() {
		t.Errorf("no switch must leave cooldown untouched, got %v", next.CooldownUntil)
	}
}

func TestApply_SwitchResetsCountersAndStartsCooldown(t *testing.T) {
	c := NewController(DefaultThresholds())
	state := stateIn(domain.ModeExplore, 10*time.Hour)
	state.ConsecutiveWins = 3

	next := c.Apply(state, Decision{Next: domain.ModeMutation, Changed: true}, Inputs{ConsecutiveWinStreak: 3}, t0)
	if next.ConsecutiveWins != 0 || next.ConsecutiveLowSignal != 0 || next.MutationIterations != 0 {
		t.Errorf("switch must reset streak counters: %+v", next)
	}
	if !next.CooldownUntil.Equal(t0.Add(DefaultThresholds().SwitchCooldown)) {
		t.Errorf("cooldown window not started: %v", next.CooldownUntil)
	}
}

func TestDecide_HonorsPersistedCooldown(t *testing.T) {
	c := NewController(DefaultThresholds())

	// A restored state can carry a cooldown window without a recent
	// LastSwitchAt.
	state := stateIn(domain.ModeExploit, 20*time.Hour)
	state.CooldownUntil = t0.Add(time.Hour)

	d := c.Decide(state, Inputs{NoveltyFatigueIndex: 0.9}, t0)
	if d.Changed {
		t.Errorf("persisted cooldown must block the switch, got %+v", d)
	}
	if len(d.Rationale) == 0 || d.Rationale[0] != "switch_cooldown_active" {
		t.Errorf("expected cooldown rationale, got %v", d.Rationale)
	}
}
