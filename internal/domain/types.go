package domain

import (
	"fmt"
	"time"
)

// Measure pairs a value with the confidence the system has in it.
// Every feature and score in the core carries its confidence explicitly
// instead of relying on scattered penalty constants.
type Measure struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"` // 0.0-1.0
}

// WithPenalty returns a copy with confidence reduced by the given fraction,
// floored at zero.
func (m Measure) WithPenalty(fraction float64) Measure {
	c := m.Confidence * (1.0 - fraction)
	if c < 0 {
		c = 0
	}
	return Measure{Value: m.Value, Confidence: c}
}

// Observation is an append-only raw metric snapshot for one piece of content.
// Absent raw fields are recorded in Missing and never zero-filled; imputation
// happens only in the derived feature layer.
type Observation struct {
	ID              string             `json:"id"`
	ContentID       string             `json:"content_id"`
	ArchetypeID     string             `json:"archetype_id"`
	Niche           string             `json:"niche"`
	TimestampBucket time.Time          `json:"timestamp_bucket"`
	Metrics         map[string]float64 `json:"metrics"`
	Missing         map[string]bool    `json:"missing,omitempty"`
}

// Feature component names, in the fixed order the score engine multiplies them.
const (
	FeatureNovelty            = "novelty"
	FeaturePatternStrength    = "pattern_strength"
	FeatureEmotionalPull      = "emotional_pull"
	FeaturePlatformBias       = "platform_bias"
	FeatureCreatorConsistency = "creator_consistency"
)

// FeatureNames lists all score components in evaluation order.
var FeatureNames = []string{
	FeatureNovelty,
	FeaturePatternStrength,
	FeatureEmotionalPull,
	FeaturePlatformBias,
	FeatureCreatorConsistency,
}

// Imputation records how a missing derived value was filled in.
type Imputation struct {
	Method     string  `json:"method"` // "niche_median", "prior_week", "neutral"
	Confidence float64 `json:"confidence"`
}

// FeatureVector is the derived, ephemeral input to the score engine.
// Component values are normalized to [0.2, 1.2] by the aggregator.
type FeatureVector struct {
	Niche       string                `json:"niche"`
	ArchetypeID string                `json:"archetype_id"`
	Components  map[string]Measure    `json:"components"`
	Imputations map[string]Imputation `json:"imputations,omitempty"`
	ComputedAt  time.Time             `json:"computed_at"`
}

// Component returns the named component, reporting whether it was present.
func (fv FeatureVector) Component(name string) (Measure, bool) {
	m, ok := fv.Components[name]
	return m, ok
}

// DecisionBucket partitions the opportunity score domain.
type DecisionBucket int

const (
	BucketKill DecisionBucket = iota
	BucketConservative
	BucketStandard
	BucketAggressive
)

func (b DecisionBucket) String() string {
	switch b {
	case BucketKill:
		return "kill"
	case BucketConservative:
		return "conservative"
	case BucketStandard:
		return "standard"
	case BucketAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// OpportunityScore is the score engine output: a scalar, its decision bucket,
// and the generation volume that bucket allows.
type OpportunityScore struct {
	Score          float64        `json:"score"`
	Bucket         DecisionBucket `json:"bucket"`
	Confidence     float64        `json:"confidence"`
	LowConfidence  bool           `json:"low_confidence"`
	VariantCount   int            `json:"variant_count"`
	ShadowRequired bool           `json:"shadow_required"`
}

// Archetype is one bandit arm: a reusable content format tracked across cycles.
// Mutated only by the experiment optimizer's reward registration.
type Archetype struct {
	ID          string  `json:"id" db:"id"`
	Pulls       int64   `json:"pulls" db:"pulls"`
	TotalReward float64 `json:"total_reward" db:"total_reward"`
	MeanReward  float64 `json:"mean_reward" db:"mean_reward"`
}

// Mode is the exploration policy state.
type Mode int

const (
	ModeExploit Mode = iota
	ModeExplore
	ModeMutation
	ModeChaos
)

func (m Mode) String() string {
	switch m {
	case ModeExploit:
		return "exploit"
	case ModeExplore:
		return "explore"
	case ModeMutation:
		return "mutation"
	case ModeChaos:
		return "chaos"
	default:
		return "unknown"
	}
}

// ParseMode converts a stored mode name back to its enum value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "exploit":
		return ModeExploit, nil
	case "explore":
		return ModeExplore, nil
	case "mutation":
		return ModeMutation, nil
	case "chaos":
		return ModeChaos, nil
	}
	return ModeExploit, fmt.Errorf("unknown mode: %q", s)
}

// ModeState tracks the controller's current mode and switch history.
type ModeState struct {
	Current              Mode      `json:"current"`
	EnteredAt            time.Time `json:"entered_at"`
	LastSwitchAt         time.Time `json:"last_switch_at"`
	LastChaosExitAt      time.Time `json:"last_chaos_exit_at"`
	ConsecutiveLowSignal int       `json:"consecutive_low_signal"`
	ConsecutiveWins      int       `json:"consecutive_wins"`
	MutationIterations   int       `json:"mutation_iterations"`
	CooldownUntil        time.Time `json:"cooldown_until"`
}

// ShadowVariantResult is the per-variant input to the shadow test evaluator.
type ShadowVariantResult struct {
	VariantID      string    `json:"variant_id"`
	Views          int64     `json:"views"`
	Saves          int64     `json:"saves"`
	Shares         int64     `json:"shares"`
	Comments       int64     `json:"comments"`
	ProfileActions int64     `json:"profile_actions"`
	ViewVelocity   float64   `json:"view_velocity"` // views per hour, normalized upstream
	CommentQuality float64   `json:"comment_quality"`
	RetentionProxy float64   `json:"retention_proxy"`
	Confidence     float64   `json:"confidence"`
	ObservedAt     time.Time `json:"observed_at"`
}

// RankedVariant is one row of the evaluator's explanation output.
type RankedVariant struct {
	VariantID     string  `json:"variant_id"`
	Views         int64   `json:"views"`
	PrimaryScore  float64 `json:"primary_score"`
	ShrunkScore   float64 `json:"shrunk_score"`
	Confidence    float64 `json:"confidence"`
	BelowViewGate bool    `json:"below_view_gate"`
}

// ShadowWinner is the evaluator decision. Deferred winners carry an empty
// WinnerID and the rationale explains why no decision was forced.
type ShadowWinner struct {
	WinnerID   string          `json:"winner_id,omitempty"`
	Deferred   bool            `json:"deferred"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
	Ranked     []RankedVariant `json:"ranked"`
	Checkpoint string          `json:"checkpoint"` // "30m", "60m", "3h"
}

// ObjectiveWeights split reward emphasis between growth and monetization.
// They renormalize to sum 1 after every update.
type ObjectiveWeights struct {
	Growth       float64 `json:"growth" yaml:"growth"`
	Monetization float64 `json:"monetization" yaml:"monetization"`
}

// CalibrationParams are the score engine normalization parameters carried on
// the strategy config so updaters can nudge them under a drift cap.
type CalibrationParams struct {
	Baselines      map[string]float64 `json:"baselines" yaml:"baselines"` // per-component
	BiasCorrection float64            `json:"bias_correction" yaml:"bias_correction"`
	Frozen         bool               `json:"frozen" yaml:"frozen"` // data-quality incident freeze
	UpdatedAt      time.Time          `json:"updated_at" yaml:"-"`
}

// StrategyConfig is the versioned process-wide strategy state. Components
// read a snapshot taken at cycle start; mutation is serialized per version.
type StrategyConfig struct {
	Version          int64              `json:"version" yaml:"version"`
	RewardWeights    map[string]float64 `json:"reward_weights" yaml:"reward_weights"`
	Objective        ObjectiveWeights   `json:"objective" yaml:"objective"`
	EpsilonMin       float64            `json:"epsilon_min" yaml:"epsilon_min"`
	EpsilonMax       float64            `json:"epsilon_max" yaml:"epsilon_max"`
	Epsilon          float64            `json:"epsilon" yaml:"epsilon"`
	MaxDriftPerCycle float64            `json:"max_drift_per_cycle" yaml:"max_drift_per_cycle"`
	Calibration      CalibrationParams  `json:"calibration" yaml:"calibration"`
	AnomalyFlag      bool               `json:"anomaly_flag" yaml:"anomaly_flag"`
}

// Clone deep-copies the config so a cycle snapshot is isolated from later
// writer updates.
func (c StrategyConfig) Clone() StrategyConfig {
	out := c
	out.RewardWeights = make(map[string]float64, len(c.RewardWeights))
	for k, v := range c.RewardWeights {
		out.RewardWeights[k] = v
	}
	out.Calibration.Baselines = make(map[string]float64, len(c.Calibration.Baselines))
	for k, v := range c.Calibration.Baselines {
		out.Calibration.Baselines[k] = v
	}
	return out
}

// StrategyUpdate is one immutable audit entry for an applied or suppressed
// strategy mutation. Suppression is never silent.
type StrategyUpdate struct {
	ID            string    `json:"id" db:"id"`
	CycleID       string    `json:"cycle_id" db:"cycle_id"`
	ConfigVersion int64     `json:"config_version" db:"config_version"`
	Field         string    `json:"field" db:"field"`
	Prior         float64   `json:"prior" db:"prior"`
	New           float64   `json:"new" db:"new_value"`
	Justification string    `json:"justification" db:"justification"`
	Suppressed    bool      `json:"suppressed" db:"suppressed"`
	Timestamp     time.Time `json:"timestamp" db:"ts"`
}

// LearningLoopUpdate summarizes one predicted-vs-actual pass.
type LearningLoopUpdate struct {
	SampleCount       int     `json:"sample_count"`
	MeanError         float64 `json:"mean_error"`
	MeanAbsoluteError float64 `json:"mean_absolute_error"`
	EpsilonAfter      float64 `json:"epsilon_after"`
}
