package monetization

import (
	"github.com/reelpilot/strategycore/internal/domain"
)

// Metrics holds the monetization-relevant signal snapshot for a segment.
// Rates with zero denominators resolve to excluded (zero) terms rather than
// erroring; sparsity is expected.
type Metrics struct {
	Views          float64 `json:"views"`
	Shares         float64 `json:"shares"`
	Saves          float64 `json:"saves"`
	IntentComments float64 `json:"intent_comments"`
	ProfileActions float64 `json:"profile_actions"`
	Followers      float64 `json:"followers"`
	StoryTaps      float64 `json:"story_taps"`
	StoryViews     float64 `json:"story_views"`
	ProfileVisits  float64 `json:"profile_visits"`
	Follows        float64 `json:"follows"`
	Confidence     float64 `json:"confidence"`
}

// Insight is the analyst's advisory output. It never mutates strategy state
// itself; the recommended nudge goes through the objective updater.
type Insight struct {
	MonetizationScore float64                  `json:"monetization_score"`
	GrowthScore       float64                  `json:"growth_score"`
	TotalObjective    float64                  `json:"total_objective"`
	DriftAlert        bool                     `json:"drift_alert"`
	Recommended       *domain.ObjectiveWeights `json:"recommended,omitempty"` // nil when abstaining
	Abstained         bool                     `json:"abstained"`
}

// Config bounds the analyst's blend and abstention behavior.
type Config struct {
	GrowthGain         float64 `yaml:"growth_gain"`          // Default: 8.0
	MonetizationGain   float64 `yaml:"monetization_gain"`    // Default: 12.0
	IntentBaseline     float64 `yaml:"intent_baseline"`      // Default: 0.03
	ConfidenceFloor    float64 `yaml:"confidence_floor"`     // Default: 0.5
	DriftGrowthTrigger float64 `yaml:"drift_growth_trigger"` // Default: 0.4
	NudgeStep          float64 `yaml:"nudge_step"`           // Default: 0.05
}

// DefaultConfig returns the documented analyst constants.
func DefaultConfig() Config {
	return Config{
		GrowthGain:         8.0,
		MonetizationGain:   12.0,
		IntentBaseline:     0.03,
		ConfidenceFloor:    0.5,
		DriftGrowthTrigger: 0.4,
		NudgeStep:          0.05,
	}
}

// Analyst produces monetization opportunity scores and objective-weight
// nudges from monetization signals.
type Analyst struct {
	config Config
}

// NewAnalyst creates an analyst with the given constants.
func NewAnalyst(config Config) *Analyst {
	return &Analyst{config: config}
}

// Evaluate blends intent-comment rate, saves-to-follower ratio, story
// tap-forward ratio, and profile-visit-to-follow rate against the baseline.
// Abstains from a weight recommendation below the confidence floor.
func (a *Analyst) Evaluate(metrics Metrics, weights domain.ObjectiveWeights) Insight {
	growth := capped(rate(metrics.Shares+metrics.Saves, metrics.Views) * a.config.GrowthGain)

	intentRate := rate(metrics.IntentComments, metrics.Views)
	savesToFollowers := rate(metrics.Saves, metrics.Followers)
	tapForward := rate(metrics.StoryTaps, metrics.StoryViews)
	visitToFollow := rate(metrics.Follows, metrics.ProfileVisits)

	monetizationSignal := rate(metrics.IntentComments+metrics.ProfileActions, metrics.Views)*a.config.MonetizationGain +
		savesToFollowers + tapForward + visitToFollow
	monetization := capped(monetizationSignal / 2)

	insight := Insight{
		GrowthScore:       growth,
		MonetizationScore: monetization,
		TotalObjective:    weights.Growth*growth + weights.Monetization*monetization,
		DriftAlert:        intentRate < a.config.IntentBaseline && growth > a.config.DriftGrowthTrigger,
	}

	if metrics.Confidence < a.config.ConfidenceFloor {
		insight.Abstained = true
		return insight
	}

	insight.Recommended = a.nudge(weights, insight)
	return insight
}

// nudge shifts objective mass toward monetization when monetization clearly
// outruns growth (or drift is flagged), and back toward growth in the
// opposite case. The pair always renormalizes to sum 1.
func (a *Analyst) nudge(weights domain.ObjectiveWeights, insight Insight) *domain.ObjectiveWeights {
	next := weights
	switch {
	case insight.DriftAlert || insight.MonetizationScore > insight.GrowthScore+0.1:
		next.Monetization += a.config.NudgeStep
		next.Growth -= a.config.NudgeStep
	case insight.GrowthScore > insight.MonetizationScore+0.1:
		next.Growth += a.config.NudgeStep
		next.Monetization -= a.config.NudgeStep
	}

	if next.Growth < 0 {
		next.Growth = 0
	}
	if next.Monetization < 0 {
		next.Monetization = 0
	}
	total := next.Growth + next.Monetization
	if total > 0 {
		next.Growth /= total
		next.Monetization /= total
	}
	return &next
}

// rate divides guarding the zero denominator: an empty denominator excludes
// the term instead of raising.
func rate(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator
}

func capped(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
