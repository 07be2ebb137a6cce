package score

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/reelpilot/strategycore/internal/domain"
)

// CalibrationSample pairs a component observation with its realized outcome,
// collected across a scoring window for recalibration.
type CalibrationSample struct {
	Component string
	Value     float64
	Outcome   float64
	Niche     string
	SampledAt time.Time
}

// RecalibratorConfig bounds how far calibration may move.
type RecalibratorConfig struct {
	MaxDriftPerFactorWeekly float64 `yaml:"max_drift_per_factor_weekly"` // Default: 0.10
	MinSamplesPerFactor     int     `yaml:"min_samples_per_factor"`      // Default: 30
	MinOutOfSampleLift      float64 `yaml:"min_out_of_sample_lift"`      // Default: 0.01
	MaxDailyBiasStep        float64 `yaml:"max_daily_bias_step"`         // Default: 0.02
}

// DefaultRecalibratorConfig returns the standard calibration bounds.
func DefaultRecalibratorConfig() RecalibratorConfig {
	return RecalibratorConfig{
		MaxDriftPerFactorWeekly: 0.10,
		MinSamplesPerFactor:     30,
		MinOutOfSampleLift:      0.01,
		MaxDailyBiasStep:        0.02,
	}
}

// Recalibrator maintains score engine calibration: a full weekly refit gated
// on out-of-sample lift, and a lightweight daily bias correction. All
// movement freezes while the calibration is flagged for a data-quality
// incident.
type Recalibrator struct {
	config RecalibratorConfig
	buffer []CalibrationSample
}

// NewRecalibrator creates a recalibrator with the given bounds.
func NewRecalibrator(config RecalibratorConfig) *Recalibrator {
	return &Recalibrator{config: config}
}

// AddSample buffers one outcome sample for the next weekly refit.
func (r *Recalibrator) AddSample(sample CalibrationSample) error {
	if sample.Component == "" {
		return &domain.ValidationError{Field: "component", Reason: "empty component name"}
	}
	if sample.Value <= 0 {
		return &domain.ValidationError{Field: "value", Reason: "component value must be positive"}
	}
	r.buffer = append(r.buffer, sample)
	return nil
}

// SampleCount returns the number of buffered samples.
func (r *Recalibrator) SampleCount() int { return len(r.buffer) }

// WeeklyRefit computes candidate baselines from the buffered samples and
// promotes each factor only when it has enough samples, demonstrates
// out-of-sample lift, and moves less than the weekly drift cap. The buffer
// is drained on success. Returns the new params and the per-factor applied
// drift for auditing.
func (r *Recalibrator) WeeklyRefit(current domain.CalibrationParams, now time.Time) (domain.CalibrationParams, map[string]float64, error) {
	if current.Frozen {
		return current, nil, domain.ErrAnomalyFreeze
	}

	byComponent := make(map[string][]CalibrationSample)
	for _, s := range r.buffer {
		byComponent[s.Component] = append(byComponent[s.Component], s)
	}

	next := domain.CalibrationParams{
		Baselines:      make(map[string]float64, len(current.Baselines)),
		BiasCorrection: current.BiasCorrection,
		UpdatedAt:      now,
	}
	for k, v := range current.Baselines {
		next.Baselines[k] = v
	}

	applied := make(map[string]float64)
	for component, samples := range byComponent {
		if len(samples) < r.config.MinSamplesPerFactor {
			continue
		}

		candidate := medianValue(samples)
		prior, ok := current.Baselines[component]
		if !ok {
			prior = 1.0
		}

		lift := r.holdoutLift(samples, prior, candidate)
		if lift < r.config.MinOutOfSampleLift {
			continue
		}

		drift := candidate - prior
		if math.Abs(drift) > r.config.MaxDriftPerFactorWeekly {
			drift = math.Copysign(r.config.MaxDriftPerFactorWeekly, drift)
		}
		next.Baselines[component] = prior + drift
		applied[component] = drift
	}

	if len(applied) == 0 {
		return current, nil, fmt.Errorf("weekly refit promoted no factors: %w", domain.ErrLowConfidenceDefer)
	}

	r.buffer = r.buffer[:0]
	return next, applied, nil
}

// DailyBiasCorrection nudges the additive bias term toward cancelling the
// observed mean error, bounded by the daily step cap. No-op while frozen.
func (r *Recalibrator) DailyBiasCorrection(current domain.CalibrationParams, meanError float64, now time.Time) (domain.CalibrationParams, error) {
	if current.Frozen {
		return current, domain.ErrAnomalyFreeze
	}

	step := clamp(-meanError, -r.config.MaxDailyBiasStep, r.config.MaxDailyBiasStep)
	next := current
	next.BiasCorrection += step
	next.UpdatedAt = now
	return next, nil
}

// holdoutLift measures improvement of the candidate baseline over the prior
// on the most recent third of samples (out-of-sample by recency). Lift is the
// reduction in mean absolute normalization error against realized outcomes.
func (r *Recalibrator) holdoutLift(samples []CalibrationSample, prior, candidate float64) float64 {
	ordered := make([]CalibrationSample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SampledAt.Before(ordered[j].SampledAt) })

	holdout := ordered[len(ordered)*2/3:]
	if len(holdout) == 0 {
		return 0
	}

	var priorErr, candidateErr float64
	for _, s := range holdout {
		priorErr += math.Abs(s.Value/prior - s.Outcome)
		candidateErr += math.Abs(s.Value/candidate - s.Outcome)
	}
	return (priorErr - candidateErr) / float64(len(holdout))
}

func medianValue(samples []CalibrationSample) float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}
