package mode

import (
	"time"

	"github.com/reelpilot/strategycore/internal/domain"
)

// Inputs is the controller's per-cycle signal snapshot. Mode and exploration
// coefficient are computed from the same snapshot by two independent pure
// functions; the outer coordinator composes them.
type Inputs struct {
	HitRate7d                float64 `json:"hit_rate_7d"`
	NoveltyFatigueIndex      float64 `json:"novelty_fatigue_index"`
	AccountVolatility        float64 `json:"account_volatility"`
	ModelConfidenceTrend     float64 `json:"model_confidence_trend"`
	MonetizationQualityDrift float64 `json:"monetization_quality_drift"`
	PlateauCycles            int     `json:"plateau_cycles"`
	RiskBudget               float64 `json:"risk_budget"`
	Drawdown24h              float64 `json:"drawdown_24h"`
	ConsecutiveWinStreak     int     `json:"consecutive_win_streak"`
	LowSignalPosts           int     `json:"low_signal_posts"`
	MutationRoundsNoUplift   int     `json:"mutation_rounds_no_uplift"`
	TopDecileLift            bool    `json:"top_decile_lift"` // observed within the chaos window
	SafetyTrigger            bool    `json:"safety_trigger"`
	SevereDrawdown           bool    `json:"severe_drawdown"`

	// ObservedRegret is the mean reward gap between the optimizer's picks and
	// the best arm in hindsight. Nil means no estimate arrived this cycle and
	// the exploration coefficient is left alone.
	ObservedRegret *float64 `json:"observed_regret,omitempty"`
}

// Thresholds is the externally supplied transition constant table.
type Thresholds struct {
	NoveltyFatigue       float64       `yaml:"novelty_fatigue"`        // Default: 0.65
	WinStreak            int           `yaml:"win_streak"`             // Default: 3
	PlateauCycles        int           `yaml:"plateau_cycles"`         // Default: 3
	RiskBudgetFloor      float64       `yaml:"risk_budget_floor"`      // Default: 0.6
	ExploreDrawdown24h   float64       `yaml:"explore_drawdown_24h"`   // Default: 0.25
	ExploitLowSignal     int           `yaml:"exploit_low_signal"`     // Default: 2
	MutationMaxRounds    int           `yaml:"mutation_max_rounds"`    // Default: 3
	SwitchCooldown       time.Duration `yaml:"switch_cooldown"`        // Default: 6h
	ChaosReentryCooldown time.Duration `yaml:"chaos_reentry_cooldown"` // Default: 12h
	ChaosWindow          time.Duration `yaml:"chaos_window"`           // Default: 48h
}

// DefaultThresholds returns the documented transition constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoveltyFatigue:       0.65,
		WinStreak:            3,
		PlateauCycles:        3,
		RiskBudgetFloor:      0.6,
		ExploreDrawdown24h:   0.25,
		ExploitLowSignal:     2,
		MutationMaxRounds:    3,
		SwitchCooldown:       6 * time.Hour,
		ChaosReentryCooldown: 12 * time.Hour,
		ChaosWindow:          48 * time.Hour,
	}
}

// Budget is the read-only per-mode posting budget. The calling cycle enforces
// it; the controller only exposes it.
type Budget struct {
	MaxDailyPosts      int     `yaml:"max_daily_posts"`
	VariantsPerIdea    int     `yaml:"variants_per_idea"`
	PromotionThreshold float64 `yaml:"promotion_threshold"`
}

// DefaultBudgets returns the per-mode budget table.
func DefaultBudgets() map[domain.Mode]Budget {
	return map[domain.Mode]Budget{
		domain.ModeExploit:  {MaxDailyPosts: 3, VariantsPerIdea: 2, PromotionThreshold: 0.70},
		domain.ModeExplore:  {MaxDailyPosts: 5, VariantsPerIdea: 4, PromotionThreshold: 0.60},
		domain.ModeMutation: {MaxDailyPosts: 4, VariantsPerIdea: 3, PromotionThreshold: 0.65},
		domain.ModeChaos:    {MaxDailyPosts: 2, VariantsPerIdea: 6, PromotionThreshold: 0.80},
	}
}

// allowedEdges is the full transition edge set; autostop edges back to
// Exploit are listed explicitly.
var allowedEdges = map[domain.Mode][]domain.Mode{
	domain.ModeExploit:  {domain.ModeExplore, domain.ModeChaos},
	domain.ModeExplore:  {domain.ModeMutation, domain.ModeChaos, domain.ModeExploit},
	domain.ModeMutation: {domain.ModeChaos, domain.ModeExploit},
	domain.ModeChaos:    {domain.ModeExploit},
}

// EdgeAllowed reports whether from -> to is in the transition edge set.
func EdgeAllowed(from, to domain.Mode) bool {
	for _, m := range allowedEdges[from] {
		if m == to {
			return true
		}
	}
	return false
}

// Decision is one controller verdict.
type Decision struct {
	Next      domain.Mode `json:"next"`
	Changed   bool        `json:"changed"`
	Rationale []string    `json:"rationale"`
}

// Controller is the rule-based mode state machine.
type Controller struct {
	thresholds Thresholds
	budgets    map[domain.Mode]Budget
}

// NewController creates a controller with the given constant table.
func NewController(thresholds Thresholds) *Controller {
	return &Controller{thresholds: thresholds, budgets: DefaultBudgets()}
}

// Budget returns the read-only budget for a mode.
func (c *Controller) Budget(m domain.Mode) Budget {
	return c.budgets[m]
}

// Decide evaluates auto-stop rules, then the transition rules in priority
// order. Normal transitions require the switch cooldown to have elapsed;
// auto-stops force an early return regardless of cooldown.
func (c *Controller) Decide(state domain.ModeState, inputs Inputs, now time.Time) Decision {
	if stop, why := c.autoStop(state, inputs); stop {
		if state.Current == domain.ModeExploit {
			return Decision{Next: domain.ModeExploit, Changed: false, Rationale: []string{why}}
		}
		return Decision{Next: domain.ModeExploit, Changed: true, Rationale: []string{why}}
	}

	inCooldown := !state.LastSwitchAt.IsZero() && now.Sub(state.LastSwitchAt) < c.thresholds.SwitchCooldown
	if inCooldown || now.Before(state.CooldownUntil) {
		return Decision{Next: state.Current, Rationale: []string{"switch_cooldown_active"}}
	}

	// Transition rules in priority order.
	switch {
	case state.Current == domain.ModeExploit && inputs.NoveltyFatigueIndex >= c.thresholds.NoveltyFatigue:
		return Decision{Next: domain.ModeExplore, Changed: true, Rationale: []string{"novelty_fatigue_exceeded"}}

	case state.Current == domain.ModeExplore && inputs.ConsecutiveWinStreak >= c.thresholds.WinStreak:
		return Decision{Next: domain.ModeMutation, Changed: true, Rationale: []string{"repeated_archetype_wins"}}

	case c.chaosPermitted(state, inputs, now):
		return Decision{Next: domain.ModeChaos, Changed: true, Rationale: []string{"performance_plateau_with_risk_budget"}}

	case state.Current == domain.ModeChaos && !inputs.TopDecileLift && now.Sub(state.EnteredAt) >= c.thresholds.ChaosWindow:
		return Decision{Next: domain.ModeExploit, Changed: true, Rationale: []string{"chaos_no_top_decile_lift"}}
	}

	return Decision{Next: state.Current, Rationale: []string{"stay"}}
}

// autoStop applies the per-mode early-exit rules.
func (c *Controller) autoStop(state domain.ModeState, inputs Inputs) (bool, string) {
	switch state.Current {
	case domain.ModeExploit:
		if inputs.LowSignalPosts >= c.thresholds.ExploitLowSignal {
			return true, "exploit_low_signal_pause"
		}
	case domain.ModeExplore:
		if inputs.Drawdown24h > c.thresholds.ExploreDrawdown24h {
			return true, "explore_drawdown_stop"
		}
	case domain.ModeMutation:
		if inputs.MutationRoundsNoUplift >= c.thresholds.MutationMaxRounds {
			return true, "mutation_no_uplift_stop"
		}
	case domain.ModeChaos:
		if inputs.SafetyTrigger || inputs.SevereDrawdown {
			return true, "chaos_safety_stop"
		}
	}
	return false, ""
}

// chaosPermitted gates entry to Chaos: a persistent plateau, available risk
// budget, and the 12h re-entry cooldown satisfied.
func (c *Controller) chaosPermitted(state domain.ModeState, inputs Inputs, now time.Time) bool {
	if state.Current == domain.ModeChaos {
		return false
	}
	if inputs.PlateauCycles < c.thresholds.PlateauCycles {
		return false
	}
	if inputs.RiskBudget < c.thresholds.RiskBudgetFloor {
		return false
	}
	if !state.LastChaosExitAt.IsZero() && now.Sub(state.LastChaosExitAt) < c.thresholds.ChaosReentryCooldown {
		return false
	}
	return true
}

// Apply folds a decision into the mode state. Streak counters mirror the
// per-cycle input signals so the persisted state carries them; a switch
// resets them and starts the cooldown window.
func (c *Controller) Apply(state domain.ModeState, decision Decision, inputs Inputs, now time.Time) domain.ModeState {
	next := state
	next.ConsecutiveWins = inputs.ConsecutiveWinStreak
	next.ConsecutiveLowSignal = inputs.LowSignalPosts
	next.MutationIterations = inputs.MutationRoundsNoUplift

	if decision.Changed {
		if state.Current == domain.ModeChaos {
			next.LastChaosExitAt = now
		}
		next.Current = decision.Next
		next.EnteredAt = now
		next.LastSwitchAt = now
		next.CooldownUntil = now.Add(c.thresholds.SwitchCooldown)
		next.ConsecutiveWins = 0
		next.ConsecutiveLowSignal = 0
		next.MutationIterations = 0
	}
	return next
}
