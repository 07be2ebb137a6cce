package score

import (
	"testing"
	"time"

	"github.com/reelpilot/strategycore/internal/domain"
)

func vectorWith(values map[string]float64, confidence float64) domain.FeatureVector {
	components := make(map[string]domain.Measure)
	for _, name := range domain.FeatureNames {
		v, ok := values[name]
		if !ok {
			v = 1.0
		}
		components[name] = domain.Measure{Value: v, Confidence: confidence}
	}
	return domain.FeatureVector{Niche: "ai_tools", Components: components, ComputedAt: time.Now()}
}

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return engine
}

func TestCompute_BucketBoundaries(t *testing.T) {
	engine := mustEngine(t)

	cases := []struct {
		name    string
		novelty float64
		bucket  domain.DecisionBucket
		variants int
	}{
		{"just_below_kill", 0.44, domain.BucketKill, 0},
		{"kill_boundary", 0.45, domain.BucketConservative, 1},
		{"standard_low", 0.70, domain.BucketStandard, 3},
		{"aggressive_boundary", 0.95, domain.BucketAggressive, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fv := vectorWith(map[string]float64{domain.FeatureNovelty: tc.novelty}, 0.9)
			result, err := engine.Compute(fv, domain.CalibrationParams{}, CohortBaselines{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Bucket != tc.bucket {
				t.Errorf("score %.2f: expected bucket %s, got %s", result.Score, tc.bucket, result.Bucket)
			}
			if result.VariantCount != tc.variants {
				t.Errorf("score %.2f: expected %d variants, got %d", result.Score, tc.variants, result.VariantCount)
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	engine := mustEngine(t)
	fv := vectorWith(map[string]float64{domain.FeatureNovelty: 0.83, domain.FeatureEmotionalPull: 1.1}, 0.8)
	cal := domain.CalibrationParams{
		Baselines:      map[string]float64{domain.FeatureNovelty: 0.9},
		BiasCorrection: 0.01,
	}

	first, err := engine.Compute(fv, cal, CohortBaselines{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := engine.Compute(fv, cal, CohortBaselines{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("compute not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestCompute_SparseComponentFallsBackToCohortMedian(t *testing.T) {
	engine := mustEngine(t)

	fv := vectorWith(nil, 0.9)
	fv.Components[domain.FeatureNovelty] = domain.Measure{Value: 1.15, Confidence: 0.2}

	cohort := CohortBaselines{Median: map[string]float64{domain.FeatureNovelty: 0.8}}
	result, err := engine.Compute(fv, domain.CalibrationParams{}, cohort)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.LowConfidence {
		t.Error("sparse component must flag the score low-confidence")
	}
	// Cohort median 0.8 substitutes the sparse 1.15 novelty reading.
	if result.Score < 0.79 || result.Score > 0.81 {
		t.Errorf("expected cohort median fallback score ~0.80, got %.4f", result.Score)
	}
}

func TestCompute_NewAccountNeutralConsistency(t *testing.T) {
	engine := mustEngine(t)

	fv := vectorWith(nil, 0.9)
	fv.Components[domain.FeatureCreatorConsistency] = domain.Measure{Value: 0.2, Confidence: 0.1}

	result, err := engine.Compute(fv, domain.CalibrationParams{}, CohortBaselines{NewAccount: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score < 0.99 || result.Score > 1.01 {
		t.Errorf("expected neutral 1.0 consistency fallback, score %.4f", result.Score)
	}
}

func TestCompute_MissingComponentRejected(t *testing.T) {
	engine := mustEngine(t)

	fv := vectorWith(nil, 0.9)
	delete(fv.Components, domain.FeaturePlatformBias)

	_, err := engine.Compute(fv, domain.CalibrationParams{}, CohortBaselines{})
	if err == nil {
		t.Fatal("expected validation error for missing component")
	}
	var ve *domain.ValidationError
	if !asValidation(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestCompute_ComponentClamping(t *testing.T) {
	engine := mustEngine(t)

	fv := vectorWith(map[string]float64{
		domain.FeatureNovelty:       5.0,  // clamps to 1.2
		domain.FeaturePatternStrength: 0.01, // clamps to 0.2
	}, 0.9)

	result, err := engine.Compute(fv, domain.CalibrationParams{}, CohortBaselines{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := 1.2 * 0.2
	if result.Score < expected-0.001 || result.Score > expected+0.001 {
		t.Errorf("expected clamped score %.3f, got %.4f", expected, result.Score)
	}
}

func asValidation(err error, target **domain.ValidationError) bool {
	ve, ok := err.(*domain.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}
