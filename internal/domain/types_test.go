package domain

import (
	"errors"
	"testing"
)

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeExploit, ModeExplore, ModeMutation, ModeChaos} {
		parsed, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("parse %s: %v", m, err)
		}
		if parsed != m {
			t.Errorf("round trip %s -> %s", m, parsed)
		}
	}

	if _, err := ParseMode("yolo"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestMeasureWithPenalty(t *testing.T) {
	m := Measure{Value: 1.1, Confidence: 0.8}
	p := m.WithPenalty(0.15)

	if p.Value != 1.1 {
		t.Errorf("penalty must not change value, got %f", p.Value)
	}
	if p.Confidence < 0.679 || p.Confidence > 0.681 {
		t.Errorf("expected confidence 0.68, got %f", p.Confidence)
	}

	floor := Measure{Value: 0.5, Confidence: 0.1}.WithPenalty(2.0)
	if floor.Confidence != 0 {
		t.Errorf("confidence must floor at 0, got %f", floor.Confidence)
	}
}

func TestStrategyConfigCloneIsolation(t *testing.T) {
	cfg := StrategyConfig{
		Version:       3,
		RewardWeights: map[string]float64{"views": 0.5, "saves": 0.5},
		Calibration:   CalibrationParams{Baselines: map[string]float64{FeatureNovelty: 1.0}},
	}

	snap := cfg.Clone()
	cfg.RewardWeights["views"] = 0.9
	cfg.Calibration.Baselines[FeatureNovelty] = 2.0

	if snap.RewardWeights["views"] != 0.5 {
		t.Error("snapshot reward weights mutated by writer")
	}
	if snap.Calibration.Baselines[FeatureNovelty] != 1.0 {
		t.Error("snapshot calibration mutated by writer")
	}
}

func TestIsArmNotFound(t *testing.T) {
	err := &NotFoundError{Kind: "archetype", ID: "hook_teardown"}
	if !IsArmNotFound(err) {
		t.Error("expected arm-not-found match")
	}
	if IsArmNotFound(&NotFoundError{Kind: "variant", ID: "v1"}) {
		t.Error("variant not-found must not match arm check")
	}
	if IsArmNotFound(errors.New("other")) {
		t.Error("plain error must not match")
	}
}
