package monetization

import (
	"testing"

	"github.com/reelpilot/strategycore/internal/domain"
)

var defaultObjective = domain.ObjectiveWeights{Growth: 0.65, Monetization: 0.35}

func TestEvaluate_ZeroViewsExcludesRates(t *testing.T) {
	a := NewAnalyst(DefaultConfig())

	insight := a.Evaluate(Metrics{Views: 0, Shares: 50, Saves: 30, Confidence: 0.9}, defaultObjective)
	if insight.GrowthScore != 0 || insight.MonetizationScore != 0 {
		t.Errorf("zero denominators must exclude terms, got growth %f monetization %f",
			insight.GrowthScore, insight.MonetizationScore)
	}
}

func TestEvaluate_DriftAlert(t *testing.T) {
	a := NewAnalyst(DefaultConfig())

	// Strong growth rates but an intent-comment rate below baseline.
	insight := a.Evaluate(Metrics{
		Views:          10000,
		Shares:         400,
		Saves:          300,
		IntentComments: 100, // rate 0.01 < baseline 0.03
		Confidence:     0.9,
	}, defaultObjective)

	if !insight.DriftAlert {
		t.Errorf("expected drift alert, growth %f", insight.GrowthScore)
	}
	if insight.Recommended == nil {
		t.Fatal("expected a recommendation at high confidence")
	}
	if insight.Recommended.Monetization <= defaultObjective.Monetization {
		t.Error("drift alert must nudge weight toward monetization")
	}
}

func TestEvaluate_AbstainsBelowConfidenceFloor(t *testing.T) {
	a := NewAnalyst(DefaultConfig())

	insight := a.Evaluate(Metrics{Views: 5000, Shares: 100, Saves: 80, Confidence: 0.2}, defaultObjective)
	if !insight.Abstained {
		t.Error("expected abstention below confidence floor")
	}
	if insight.Recommended != nil {
		t.Error("abstention must not carry a recommendation")
	}
}

func TestEvaluate_RecommendationSumsToOne(t *testing.T) {
	a := NewAnalyst(DefaultConfig())

	cases := []Metrics{
		{Views: 10000, Shares: 900, Saves: 600, IntentComments: 20, Confidence: 0.9},
		{Views: 10000, Shares: 10, Saves: 10, IntentComments: 500, ProfileActions: 400, Confidence: 0.9},
		{Views: 10000, Shares: 200, Saves: 200, IntentComments: 300, Confidence: 0.8},
	}

	for i, m := range cases {
		insight := a.Evaluate(m, defaultObjective)
		if insight.Recommended == nil {
			t.Fatalf("case %d: expected recommendation", i)
		}
		sum := insight.Recommended.Growth + insight.Recommended.Monetization
		if sum < 0.999 || sum > 1.001 {
			t.Errorf("case %d: objective weights sum %f", i, sum)
		}
	}
}

func TestEvaluate_TotalObjectiveBlend(t *testing.T) {
	a := NewAnalyst(DefaultConfig())

	insight := a.Evaluate(Metrics{Views: 1000, Shares: 50, Saves: 50, Confidence: 0.9}, defaultObjective)
	expected := defaultObjective.Growth*insight.GrowthScore + defaultObjective.Monetization*insight.MonetizationScore
	if diff := insight.TotalObjective - expected; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("blend mismatch: %f vs %f", insight.TotalObjective, expected)
	}
}
