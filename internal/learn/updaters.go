package learn

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelpilot/strategycore/internal/domain"
)

// AuditSink persists immutable audit entries. Both applied and suppressed
// updates go through it; suppression is never silent.
type AuditSink interface {
	Record(ctx context.Context, update domain.StrategyUpdate) error
}

// kpiToWeight maps KPI delta names onto the reward-weight metric they steer.
var kpiToWeight = map[string]string{
	"reach_delta":        "views",
	"engagement_delta":   "likes",
	"conversation_delta": "comments",
	"share_delta":        "shares",
	"save_delta":         "saves",
	"watch_time_delta":   "watch_time",
}

// Config bounds the two update paths.
type Config struct {
	NoisyMAEThreshold  float64 `yaml:"noisy_mae_threshold"`  // Default: 0.15
	StableMAEThreshold float64 `yaml:"stable_mae_threshold"` // Default: 0.05
	EpsilonStepUp      float64 `yaml:"epsilon_step_up"`      // Default: 0.05
	EpsilonStepDown    float64 `yaml:"epsilon_step_down"`    // Default: 0.02
	WeightStep         float64 `yaml:"weight_step"`          // Default: 0.03
	WeightFloor        float64 `yaml:"weight_floor"`         // Default: 0.01
	MaxBiasStep        float64 `yaml:"max_bias_step"`        // Default: 0.02
}

// DefaultConfig returns the documented update bounds.
func DefaultConfig() Config {
	return Config{
		NoisyMAEThreshold:  0.15,
		StableMAEThreshold: 0.05,
		EpsilonStepUp:      0.05,
		EpsilonStepDown:    0.02,
		WeightStep:         0.03,
		WeightFloor:        0.01,
		MaxBiasStep:        0.02,
	}
}

// Updater runs the bounded online update paths that close the loop from
// observed outcomes back into strategy state.
type Updater struct {
	config Config
	sink   AuditSink
	logger zerolog.Logger
	now    func() time.Time
}

// NewUpdater creates an updater writing audit entries to sink.
func NewUpdater(config Config, sink AuditSink, logger zerolog.Logger) *Updater {
	return &Updater{config: config, sink: sink, logger: logger, now: time.Now}
}

// ApplyLearningLoop adjusts the exploration coefficient and, within a bounded
// step, the calibration bias from predicted-vs-actual error. The input config
// is a cycle snapshot; the mutated clone is returned for the config store to
// CAS-apply. Refuses (no-op, audited) under an active anomaly flag or when a
// delta would exceed the per-cycle drift cap.
func (u *Updater) ApplyLearningLoop(ctx context.Context, cycleID string, cfg domain.StrategyConfig, observed, predicted []float64) (domain.StrategyConfig, domain.LearningLoopUpdate, error) {
	n := len(observed)
	if len(predicted) < n {
		n = len(predicted)
	}
	update := domain.LearningLoopUpdate{SampleCount: n, EpsilonAfter: cfg.Epsilon}
	if n == 0 {
		return cfg, update, nil
	}

	var errSum, absSum float64
	for i := 0; i < n; i++ {
		err := observed[i] - predicted[i]
		errSum += err
		absSum += math.Abs(err)
	}
	update.MeanError = errSum / float64(n)
	update.MeanAbsoluteError = absSum / float64(n)

	epsilonDelta := 0.0
	switch {
	case update.MeanAbsoluteError > u.config.NoisyMAEThreshold:
		// Noisy estimates: widen exploration.
		epsilonDelta = u.config.EpsilonStepUp
	case update.MeanAbsoluteError < u.config.StableMAEThreshold:
		epsilonDelta = -u.config.EpsilonStepDown
	}

	next := cfg.Clone()
	if epsilonDelta != 0 {
		target := clamp(cfg.Epsilon+epsilonDelta, cfg.EpsilonMin, cfg.EpsilonMax)
		applied, err := u.applyField(ctx, cycleID, cfg, "epsilon", cfg.Epsilon, target,
			fmt.Sprintf("mae %.4f over %d samples", update.MeanAbsoluteError, n))
		if err != nil {
			return cfg, update, err
		}
		if applied {
			next.Epsilon = target
		}
	}

	biasStep := clamp(-update.MeanError, -u.config.MaxBiasStep, u.config.MaxBiasStep)
	if biasStep != 0 && !cfg.Calibration.Frozen {
		target := cfg.Calibration.BiasCorrection + biasStep
		applied, err := u.applyField(ctx, cycleID, cfg, "calibration.bias_correction", cfg.Calibration.BiasCorrection, target,
			fmt.Sprintf("mean error %.4f over %d samples", update.MeanError, n))
		if err != nil {
			return cfg, update, err
		}
		if applied {
			next.Calibration.BiasCorrection = target
		}
	}

	update.EpsilonAfter = next.Epsilon
	return next, update, nil
}

// ApplyExplorationCoefficient moves epsilon toward an externally computed
// target through the same audit, freeze, and drift-cap path as the learning
// loop. The target clamps into the configured epsilon bounds first; a no-op
// target writes no audit entry.
func (u *Updater) ApplyExplorationCoefficient(ctx context.Context, cycleID string, cfg domain.StrategyConfig, target float64, why string) (domain.StrategyConfig, error) {
	target = clamp(target, cfg.EpsilonMin, cfg.EpsilonMax)
	if target == cfg.Epsilon {
		return cfg, nil
	}

	applied, err := u.applyField(ctx, cycleID, cfg, "epsilon", cfg.Epsilon, target, why)
	if err != nil || !applied {
		return cfg, err
	}
	next := cfg.Clone()
	next.Epsilon = target
	return next, nil
}

// ApplyObjective rebalances reward weights from KPI deltas and renormalizes
// them to sum 1. Same refusal and audit semantics as the learning loop path.
func (u *Updater) ApplyObjective(ctx context.Context, cycleID string, cfg domain.StrategyConfig, kpiDeltas map[string]float64) (domain.StrategyConfig, error) {
	next := cfg.Clone()

	// Deterministic iteration keeps audit ordering stable.
	keys := make([]string, 0, len(kpiDeltas))
	for k := range kpiDeltas {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	touched := false
	for _, deltaKey := range keys {
		metric, known := kpiToWeight[deltaKey]
		if !known {
			u.logger.Debug().Str("kpi", deltaKey).Msg("ignoring unmapped kpi delta")
			continue
		}
		direction := 1.0
		if kpiDeltas[deltaKey] < 0 {
			direction = -1.0
		}
		prior := next.RewardWeights[metric]
		target := math.Max(u.config.WeightFloor, prior+u.config.WeightStep*direction)
		applied, err := u.applyField(ctx, cycleID, cfg, "reward_weights."+metric, prior, target,
			fmt.Sprintf("kpi %s delta %.4f", deltaKey, kpiDeltas[deltaKey]))
		if err != nil {
			return cfg, err
		}
		if applied {
			next.RewardWeights[metric] = target
			touched = true
		}
	}

	if !touched {
		return cfg, nil
	}

	normalizeWeights(next.RewardWeights)
	return next, nil
}

// applyField enforces the anomaly freeze and drift cap for one field change,
// recording an audit entry either way. Returns whether the change may be
// applied.
func (u *Updater) applyField(ctx context.Context, cycleID string, cfg domain.StrategyConfig, field string, prior, target float64, why string) (bool, error) {
	suppressed := false
	justification := why

	switch {
	case cfg.AnomalyFlag:
		suppressed = true
		justification = fmt.Sprintf("%s: %s", domain.ErrAnomalyFreeze, why)
	case cfg.MaxDriftPerCycle > 0 && math.Abs(target-prior) > cfg.MaxDriftPerCycle:
		suppressed = true
		justification = fmt.Sprintf("%s (delta %.4f > cap %.4f): %s", domain.ErrDriftCapExceeded, math.Abs(target-prior), cfg.MaxDriftPerCycle, why)
	}

	entry := domain.StrategyUpdate{
		ID:            uuid.NewString(),
		CycleID:       cycleID,
		ConfigVersion: cfg.Version,
		Field:         field,
		Prior:         prior,
		New:           target,
		Justification: justification,
		Suppressed:    suppressed,
		Timestamp:     u.now(),
	}
	if err := u.sink.Record(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to record audit entry for %s: %w", field, err)
	}

	if suppressed {
		u.logger.Warn().Str("field", field).Str("cycle", cycleID).Msg("strategy update suppressed")
	}
	return !suppressed, nil
}

func normalizeWeights(weights map[string]float64) {
	total := 0.0
	for _, v := range weights {
		total += v
	}
	if total <= 0 {
		return
	}
	for k, v := range weights {
		weights[k] = v / total
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
