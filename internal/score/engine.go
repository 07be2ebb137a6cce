package score

import (
	"math"

	"github.com/reelpilot/strategycore/internal/domain"
)

const (
	componentFloor = 0.2
	componentCeil  = 1.2

	// Sparse components below this confidence fall back to a cohort value.
	sparseConfidenceFloor = 0.3

	// Confidence penalty applied when a fallback value substitutes a
	// sparse component.
	fallbackPenalty = 0.15

	// Aggregate confidence below this flags the score low-confidence.
	lowConfidenceFloor = 0.5
)

// Thresholds is the decision bucket table. Externally supplied so operators
// can retune without redeploying logic. Buckets partition the score domain:
// [0, Kill) kill, [Kill, Standard) conservative, [Standard, Aggressive)
// standard, [Aggressive, inf) aggressive.
type Thresholds struct {
	Kill       float64 `yaml:"kill"`       // Default: 0.45
	Standard   float64 `yaml:"standard"`   // Default: 0.70
	Aggressive float64 `yaml:"aggressive"` // Default: 0.95
}

// DefaultThresholds returns the documented bucket boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Kill: 0.45, Standard: 0.70, Aggressive: 0.95}
}

// Valid checks that the boundaries are ordered and partition the domain.
func (t Thresholds) Valid() error {
	if !(t.Kill < t.Standard && t.Standard < t.Aggressive) {
		return &domain.ValidationError{Field: "thresholds", Reason: "boundaries must be strictly increasing"}
	}
	return nil
}

// CohortBaselines supply the fallback values used when a component is sparse.
type CohortBaselines struct {
	Median     map[string]float64
	PriorWeek  map[string]float64
	NewAccount bool // creator consistency falls back to neutral 1.0 on new accounts
}

// Engine turns a feature vector into an opportunity score. Compute is pure
// and deterministic for identical inputs.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a score engine with the given bucket table.
func NewEngine(thresholds Thresholds) (*Engine, error) {
	if err := thresholds.Valid(); err != nil {
		return nil, err
	}
	return &Engine{thresholds: thresholds}, nil
}

// Compute scores a feature vector under the given calibration and cohort
// baselines. Missing required components reject with a validation error
// before any fallback logic runs; sparse components fall back with a
// confidence penalty instead of failing.
func (e *Engine) Compute(fv domain.FeatureVector, cal domain.CalibrationParams, cohort CohortBaselines) (domain.OpportunityScore, error) {
	score := 1.0
	confidenceSum := 0.0
	lowConfidence := false

	for _, name := range domain.FeatureNames {
		component, ok := fv.Component(name)
		if !ok {
			return domain.OpportunityScore{}, &domain.ValidationError{Field: name, Reason: "missing required feature component"}
		}

		if component.Confidence < sparseConfidenceFloor {
			fallback, found := e.fallbackValue(name, cohort)
			if found {
				component = domain.Measure{Value: fallback, Confidence: component.Confidence}
			}
			component = component.WithPenalty(fallbackPenalty)
			lowConfidence = true
		}

		normalized := component.Value
		if baseline, ok := cal.Baselines[name]; ok && baseline > 0 {
			normalized = component.Value / baseline
		}

		score *= clamp(normalized, componentFloor, componentCeil)
		confidenceSum += component.Confidence
	}

	score += cal.BiasCorrection
	if score < 0 {
		score = 0
	}

	confidence := confidenceSum / float64(len(domain.FeatureNames))
	if confidence < lowConfidenceFloor {
		lowConfidence = true
	}

	bucket := e.bucketFor(score)
	out := domain.OpportunityScore{
		Score:          score,
		Bucket:         bucket,
		Confidence:     confidence,
		LowConfidence:  lowConfidence,
		VariantCount:   e.variantCount(score, bucket),
		ShadowRequired: bucket == domain.BucketAggressive,
	}
	return out, nil
}

// fallbackValue resolves the cohort fallback chain for a sparse component:
// cohort median, then prior-week baseline, then neutral 1.0. The neutral
// default only applies to creator consistency on new accounts.
func (e *Engine) fallbackValue(name string, cohort CohortBaselines) (float64, bool) {
	if v, ok := cohort.Median[name]; ok {
		return v, true
	}
	if v, ok := cohort.PriorWeek[name]; ok {
		return v, true
	}
	if name == domain.FeatureCreatorConsistency && cohort.NewAccount {
		return 1.0, true
	}
	return 0, false
}

func (e *Engine) bucketFor(score float64) domain.DecisionBucket {
	switch {
	case score < e.thresholds.Kill:
		return domain.BucketKill
	case score < e.thresholds.Standard:
		return domain.BucketConservative
	case score < e.thresholds.Aggressive:
		return domain.BucketStandard
	default:
		return domain.BucketAggressive
	}
}

// variantCount maps a score to its generation volume. Standard scales 3-5
// across its bucket, aggressive scales 8-10; both are deterministic in the
// score so identical inputs always produce identical volume.
func (e *Engine) variantCount(score float64, bucket domain.DecisionBucket) int {
	switch bucket {
	case domain.BucketKill:
		return 0
	case domain.BucketConservative:
		return 1
	case domain.BucketStandard:
		span := e.thresholds.Aggressive - e.thresholds.Standard
		frac := (score - e.thresholds.Standard) / span
		return 3 + int(math.Round(frac*2))
	default:
		// Aggressive has no upper boundary; scale across one bucket width
		// past the threshold and cap at 10.
		span := e.thresholds.Aggressive - e.thresholds.Standard
		frac := (score - e.thresholds.Aggressive) / span
		n := 8 + int(math.Round(frac*2))
		if n > 10 {
			n = 10
		}
		return n
	}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
