package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelpilot/strategycore/internal/bandit"
	"github.com/reelpilot/strategycore/internal/config"
	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/features"
	"github.com/reelpilot/strategycore/internal/ingest"
	"github.com/reelpilot/strategycore/internal/learn"
	"github.com/reelpilot/strategycore/internal/mode"
	"github.com/reelpilot/strategycore/internal/monetization"
	"github.com/reelpilot/strategycore/internal/persistence"
	"github.com/reelpilot/strategycore/internal/platform"
	"github.com/reelpilot/strategycore/internal/score"
	"github.com/reelpilot/strategycore/internal/shadow"
	"github.com/reelpilot/strategycore/internal/telemetry"
	"github.com/reelpilot/strategycore/internal/trends"
)

// StageFlags turn individual cycle stages on and off. A disabled stage is
// skipped entirely; downstream stages see its zero output.
type StageFlags struct {
	Ingest       bool `yaml:"ingest"`
	Scoring      bool `yaml:"scoring"`
	Generation   bool `yaml:"generation"`
	Shadow       bool `yaml:"shadow"`
	Rewards      bool `yaml:"rewards"`
	Updaters     bool `yaml:"updaters"`
	Monetization bool `yaml:"monetization"`
	ModeControl  bool `yaml:"mode_control"`
}

// DefaultStageFlags enables every stage.
func DefaultStageFlags() StageFlags {
	return StageFlags{
		Ingest:       true,
		Scoring:      true,
		Generation:   true,
		Shadow:       true,
		Rewards:      true,
		Updaters:     true,
		Monetization: true,
		ModeControl:  true,
	}
}

// RewardEvent carries the settled metrics of one published post back to the
// optimizer. ContentID doubles as the idempotency key.
type RewardEvent struct {
	ArchetypeID string             `json:"archetype_id"`
	ContentID   string             `json:"content_id"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Input is everything one cycle run consumes. Raw snapshots and settled
// reward events arrive from outside; the rest is cohort and signal context.
type Input struct {
	Niche            string                       `json:"niche"`
	Snapshots        []ingest.Snapshot            `json:"snapshots,omitempty"`
	TrendSignals     []trends.ReelSignal          `json:"trend_signals,omitempty"`
	Cohort           score.CohortBaselines        `json:"cohort"`
	ModeInputs       mode.Inputs                  `json:"mode_inputs"`
	ShadowCheckpoint shadow.Checkpoint            `json:"shadow_checkpoint,omitempty"`
	ShadowResults    []domain.ShadowVariantResult `json:"shadow_results,omitempty"`
	ShadowBaseline   float64                      `json:"shadow_baseline,omitempty"`
	Observed         []float64                    `json:"observed,omitempty"`
	Predicted        []float64                    `json:"predicted,omitempty"`
	KPIDeltas        map[string]float64           `json:"kpi_deltas,omitempty"`
	Monetization     *monetization.Metrics        `json:"monetization,omitempty"`
	RewardEvents     []RewardEvent                `json:"reward_events,omitempty"`
}

// Output is the full cycle record: every stage's result, suitable for
// logging, audit, and the ops surface.
type Output struct {
	CycleID       string                     `json:"cycle_id"`
	StartedAt     time.Time                  `json:"started_at"`
	FinishedAt    time.Time                  `json:"finished_at"`
	ConfigVersion int64                      `json:"config_version"`
	Ingested      ingest.Result              `json:"ingested"`
	Selected      string                     `json:"selected_archetype,omitempty"`
	Vector        *domain.FeatureVector      `json:"vector,omitempty"`
	Score         *domain.OpportunityScore   `json:"score,omitempty"`
	ScoreDeferred bool                       `json:"score_deferred"`
	Drafts        []platform.ContentDraft    `json:"drafts,omitempty"`
	Rejected      []string                   `json:"rejected_drafts,omitempty"`
	Published     []platform.PublishReceipt  `json:"published,omitempty"`
	Shadow        *domain.ShadowWinner       `json:"shadow,omitempty"`
	Rewards       map[string]float64         `json:"rewards,omitempty"`
	Learning      *domain.LearningLoopUpdate `json:"learning,omitempty"`
	Monetization  *monetization.Insight      `json:"monetization,omitempty"`
	ModeDecision  *mode.Decision             `json:"mode_decision,omitempty"`
	ModeState     domain.ModeState           `json:"mode_state"`
	TopPatterns   []trends.Insight           `json:"top_patterns,omitempty"`
}

// Coordinator drives one strategy cycle end to end. It owns the mode state
// and is the only writer of strategy config updates; all heavy stage logic
// lives in the stage packages.
type Coordinator struct {
	store       *config.Store
	flags       StageFlags
	ingester    *ingest.Service
	aggregator  *features.Aggregator
	engine      *score.Engine
	optimizer   *bandit.Optimizer
	evaluator   *shadow.Evaluator
	controller  *mode.Controller
	coefficient mode.CoefficientParams
	updater     *learn.Updater
	analyst     *monetization.Analyst
	gateway     *platform.Gateway
	repos       *persistence.Repository
	metrics     *telemetry.MetricsRegistry
	logger      zerolog.Logger
	now         func() time.Time

	stateMu   sync.RWMutex
	modeState domain.ModeState

	postsMu    sync.Mutex
	postsDay   time.Time
	postsToday int
}

// Deps bundles the coordinator's collaborators. Repos and Metrics may be nil;
// the coordinator then skips persistence and telemetry.
type Deps struct {
	Store       *config.Store
	Flags       StageFlags
	Ingester    *ingest.Service
	Aggregator  *features.Aggregator
	Engine      *score.Engine
	Optimizer   *bandit.Optimizer
	Evaluator   *shadow.Evaluator
	Controller  *mode.Controller
	Coefficient mode.CoefficientParams
	Updater     *learn.Updater
	Analyst     *monetization.Analyst
	Gateway     *platform.Gateway
	Repos       *persistence.Repository
	Metrics     *telemetry.MetricsRegistry
	Logger      zerolog.Logger
}

// NewCoordinator wires a coordinator from its dependencies.
func NewCoordinator(deps Deps) (*Coordinator, error) {
	switch {
	case deps.Store == nil:
		return nil, &domain.ValidationError{Field: "store", Reason: "required"}
	case deps.Ingester == nil, deps.Aggregator == nil, deps.Engine == nil,
		deps.Optimizer == nil, deps.Evaluator == nil, deps.Controller == nil,
		deps.Updater == nil, deps.Analyst == nil:
		return nil, &domain.ValidationError{Field: "deps", Reason: "stage dependency missing"}
	}

	coefficient := deps.Coefficient
	if coefficient == (mode.CoefficientParams{}) {
		coefficient = mode.DefaultCoefficientParams()
	}

	now := time.Now
	return &Coordinator{
		store:       deps.Store,
		flags:       deps.Flags,
		ingester:    deps.Ingester,
		aggregator:  deps.Aggregator,
		engine:      deps.Engine,
		optimizer:   deps.Optimizer,
		evaluator:   deps.Evaluator,
		controller:  deps.Controller,
		coefficient: coefficient,
		updater:     deps.Updater,
		analyst:     deps.Analyst,
		gateway:     deps.Gateway,
		repos:       deps.Repos,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With().Str("component", "cycle").Logger(),
		now:         now,
		modeState: domain.ModeState{
			Current:      domain.ModeExploit,
			EnteredAt:    now(),
			LastSwitchAt: now(),
		},
	}, nil
}

// ModeState returns the current mode-controller state.
func (c *Coordinator) ModeState() domain.ModeState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.modeState
}

// RestoreModeState seeds the controller state, typically from persistence at
// boot.
func (c *Coordinator) RestoreModeState(state domain.ModeState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.modeState = state
}

// Arms exposes the optimizer's arm snapshot for the ops surface.
func (c *Coordinator) Arms() []domain.Archetype {
	return c.optimizer.Arms()
}

// RunCycle executes one full strategy cycle. The strategy config is
// snapshotted once at the start; later store updates never bleed into a
// running cycle. Stage errors in ingest, shadow, and monetization degrade
// to partial output; scoring and selection errors abort the cycle.
func (c *Coordinator) RunCycle(ctx context.Context, in Input) (*Output, error) {
	cfg := c.store.Snapshot()
	out := &Output{
		CycleID:       uuid.New().String(),
		StartedAt:     c.now(),
		ConfigVersion: cfg.Version,
		ModeState:     c.ModeState(),
	}

	logger := c.logger.With().Str("cycle_id", out.CycleID).Str("niche", in.Niche).Logger()
	logger.Info().Int64("config_version", cfg.Version).Msg("cycle started")

	if c.metrics != nil {
		c.metrics.CycleStarted()
		defer c.metrics.CycleFinished()
	}

	c.runIngest(in, out, logger)

	if err := c.runSelectionAndScoring(ctx, in, out, cfg, logger); err != nil {
		return out, err
	}

	if err := c.runGeneration(ctx, in, out, logger); err != nil {
		return out, err
	}

	c.runShadow(in, out, logger)
	c.runRewards(in, out, cfg, logger)
	cfg = c.runUpdaters(ctx, in, out, cfg, logger)
	c.runMonetization(in, out, cfg, logger)
	c.runModeControl(ctx, in, out, cfg, logger)

	if len(in.TrendSignals) > 0 {
		out.TopPatterns = trends.TopPatterns(in.TrendSignals, 5)
	}

	c.persistCycle(ctx, logger)

	out.FinishedAt = c.now()
	logger.Info().
		Str("selected", out.Selected).
		Int("published", len(out.Published)).
		Str("mode", out.ModeState.Current.String()).
		Msg("cycle finished")
	return out, nil
}

func (c *Coordinator) runIngest(in Input, out *Output, logger zerolog.Logger) {
	if !c.flags.Ingest || len(in.Snapshots) == 0 {
		return
	}

	timer := c.stageTimer("ingest")
	out.Ingested = c.ingester.IngestBatch(in.Snapshots)
	for _, obs := range out.Ingested.Observations {
		if err := c.aggregator.Ingest(obs, c.now()); err != nil {
			logger.Warn().Str("observation_id", obs.ID).Err(err).Msg("observation dropped by aggregator")
		}
	}
	timer.stop("success")

	logger.Info().
		Int("processed", out.Ingested.Processed).
		Int("succeeded", out.Ingested.Succeeded).
		Int("rejected", len(out.Ingested.Errors)).
		Msg("ingest complete")
}

// runSelectionAndScoring picks the arm first because feature vectors are
// archetype-scoped; the resulting score then controls generation volume.
func (c *Coordinator) runSelectionAndScoring(ctx context.Context, in Input, out *Output, cfg domain.StrategyConfig, logger zerolog.Logger) error {
	if !c.flags.Scoring {
		return nil
	}

	timer := c.stageTimer("scoring")

	selected, err := c.optimizer.Select(cfg.Epsilon)
	if err != nil {
		timer.stop("error")
		c.recordStageError("scoring", "selection")
		return fmt.Errorf("archetype selection: %w", err)
	}
	out.Selected = selected
	if c.metrics != nil {
		c.metrics.RecordArmSelection(selected, c.selectionBranch(selected))
	}

	vector, err := c.aggregator.ComputeVector(ctx, in.Niche, selected, c.now())
	if err != nil {
		if errors.Is(err, domain.ErrLowConfidenceDefer) {
			timer.stop("deferred")
			out.ScoreDeferred = true
			logger.Info().Str("archetype", selected).Msg("scoring deferred: insufficient observation history")
			return nil
		}
		timer.stop("error")
		c.recordStageError("scoring", "aggregation")
		return fmt.Errorf("feature vector for %s: %w", selected, err)
	}
	out.Vector = &vector

	opp, err := c.engine.Compute(vector, cfg.Calibration, in.Cohort)
	if err != nil {
		timer.stop("error")
		c.recordStageError("scoring", "engine")
		return fmt.Errorf("opportunity score: %w", err)
	}
	out.Score = &opp
	timer.stop("success")

	logger.Info().
		Str("archetype", selected).
		Float64("score", opp.Score).
		Str("bucket", opp.Bucket.String()).
		Int("variants", opp.VariantCount).
		Bool("low_confidence", opp.LowConfidence).
		Msg("opportunity scored")
	return nil
}

// selectionBranch labels a pick greedy or exploratory by re-deriving the
// greedy arm from the public snapshot.
func (c *Coordinator) selectionBranch(selected string) string {
	arms := c.optimizer.Arms()
	if len(arms) == 0 {
		return "greedy"
	}
	best := arms[0]
	for _, arm := range arms[1:] {
		if arm.MeanReward > best.MeanReward ||
			(arm.MeanReward == best.MeanReward && arm.Pulls < best.Pulls) {
			best = arm
		}
	}
	if best.ID == selected {
		return "greedy"
	}
	return "explore"
}

func (c *Coordinator) runGeneration(ctx context.Context, in Input, out *Output, logger zerolog.Logger) error {
	if !c.flags.Generation || c.gateway == nil || out.Score == nil {
		return nil
	}
	if out.Score.Bucket == domain.BucketKill {
		logger.Info().Msg("kill bucket: no variants generated")
		return nil
	}

	budget := c.controller.Budget(out.ModeState.Current)
	variants := out.Score.VariantCount
	if budget.VariantsPerIdea > 0 && variants > budget.VariantsPerIdea {
		logger.Info().
			Int("requested", variants).
			Int("budget", budget.VariantsPerIdea).
			Str("mode", out.ModeState.Current.String()).
			Msg("variant count clamped to mode budget")
		variants = budget.VariantsPerIdea
	}
	remaining := c.publishAllowance(budget.MaxDailyPosts)
	if remaining == 0 {
		logger.Info().Str("mode", out.ModeState.Current.String()).Msg("daily post budget exhausted, generation skipped")
		return nil
	}

	timer := c.stageTimer("generation")
	defer func() { c.notePublished(len(out.Published)) }()

	drafts, err := c.gateway.Generate(ctx, platform.GenerationRequest{
		ArchetypeID:  out.Selected,
		Niche:        in.Niche,
		VariantCount: variants,
		Mode:         out.ModeState.Current.String(),
	})
	if err != nil {
		timer.stop("error")
		c.recordStageError("generation", "generator")
		return fmt.Errorf("variant generation: %w", err)
	}
	out.Drafts = drafts

	for _, draft := range drafts {
		if remaining > 0 && len(out.Published) >= remaining {
			out.Rejected = append(out.Rejected, draft.ID)
			logger.Info().Str("draft_id", draft.ID).Msg("daily post budget reached, draft withheld")
			continue
		}

		verdict, err := c.gateway.Verdict(ctx, draft)
		if err != nil {
			c.recordStageError("generation", "compliance")
			out.Rejected = append(out.Rejected, draft.ID)
			logger.Warn().Str("draft_id", draft.ID).Err(err).Msg("compliance check failed, draft withheld")
			continue
		}
		if !verdict.Approved {
			out.Rejected = append(out.Rejected, draft.ID)
			logger.Info().Str("draft_id", draft.ID).Str("reason", verdict.Reason).Msg("draft rejected by compliance")
			continue
		}

		receipt, err := c.gateway.Publish(ctx, draft)
		if err != nil {
			// A cancelled or failed publish leaves no receipt; the draft
			// produces no observation and no reward.
			c.recordStageError("generation", "publish")
			logger.Warn().Str("draft_id", draft.ID).Err(err).Msg("publish failed, draft discarded")
			if ctx.Err() != nil {
				timer.stop("timeout")
				return fmt.Errorf("publish aborted: %w", ctx.Err())
			}
			continue
		}
		out.Published = append(out.Published, *receipt)
	}

	timer.stop("success")
	return nil
}

// publishAllowance returns how many more posts may go out today, resetting
// the counter on the first call of each UTC day. -1 means unlimited.
func (c *Coordinator) publishAllowance(maxDaily int) int {
	if maxDaily <= 0 {
		return -1
	}

	c.postsMu.Lock()
	defer c.postsMu.Unlock()

	day := c.now().UTC().Truncate(24 * time.Hour)
	if !c.postsDay.Equal(day) {
		c.postsDay = day
		c.postsToday = 0
	}
	remaining := maxDaily - c.postsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Coordinator) notePublished(n int) {
	if n == 0 {
		return
	}
	c.postsMu.Lock()
	defer c.postsMu.Unlock()
	c.postsToday += n
}

func (c *Coordinator) runShadow(in Input, out *Output, logger zerolog.Logger) {
	if !c.flags.Shadow || len(in.ShadowResults) == 0 {
		return
	}

	timer := c.stageTimer("shadow")
	winner := c.evaluator.Evaluate(in.ShadowCheckpoint, in.ShadowResults, in.ShadowBaseline)
	out.Shadow = &winner
	timer.stop("success")

	decision := "winner"
	if winner.Deferred {
		decision = "deferred"
	}
	if c.metrics != nil {
		c.metrics.RecordShadowDecision(winner.Checkpoint, decision)
	}
	logger.Info().
		Str("checkpoint", winner.Checkpoint).
		Bool("deferred", winner.Deferred).
		Str("winner", winner.WinnerID).
		Str("rationale", winner.Rationale).
		Msg("shadow evaluation")
}

func (c *Coordinator) runRewards(in Input, out *Output, cfg domain.StrategyConfig, logger zerolog.Logger) {
	if !c.flags.Rewards || len(in.RewardEvents) == 0 {
		return
	}

	timer := c.stageTimer("rewards")
	out.Rewards = make(map[string]float64, len(in.RewardEvents))
	for _, ev := range in.RewardEvents {
		reward, err := c.optimizer.RegisterReward(ev.ArchetypeID, ev.ContentID, ev.Metrics, cfg.RewardWeights)
		if err != nil {
			c.recordStageError("rewards", "register")
			logger.Warn().
				Str("archetype", ev.ArchetypeID).
				Str("content_id", ev.ContentID).
				Err(err).
				Msg("reward registration failed")
			continue
		}
		out.Rewards[ev.ContentID] = reward
		if c.metrics != nil {
			c.metrics.RecordReward(ev.ArchetypeID, reward)
		}
	}
	timer.stop("success")
}

func (c *Coordinator) runUpdaters(ctx context.Context, in Input, out *Output, cfg domain.StrategyConfig, logger zerolog.Logger) domain.StrategyConfig {
	if !c.flags.Updaters {
		return cfg
	}
	if len(in.Observed) == 0 && len(in.KPIDeltas) == 0 {
		return cfg
	}

	timer := c.stageTimer("updaters")
	next := cfg
	var err error

	if len(in.Observed) > 0 {
		var update domain.LearningLoopUpdate
		next, update, err = c.updater.ApplyLearningLoop(ctx, out.CycleID, next, in.Observed, in.Predicted)
		if err != nil {
			c.recordStageError("updaters", "learning_loop")
			logger.Warn().Err(err).Msg("learning loop update failed")
		} else {
			out.Learning = &update
		}
	}

	if len(in.KPIDeltas) > 0 {
		next, err = c.updater.ApplyObjective(ctx, out.CycleID, next, in.KPIDeltas)
		if err != nil {
			c.recordStageError("updaters", "objective")
			logger.Warn().Err(err).Msg("objective update failed")
		}
	}

	applied, err := c.store.CompareAndSwap(cfg.Version, next)
	if err != nil {
		timer.stop("error")
		c.recordStageError("updaters", "cas")
		logger.Warn().Err(err).Msg("config update lost: concurrent writer or invalid result")
		return cfg
	}
	timer.stop("success")
	out.ConfigVersion = applied.Version

	if c.repos != nil && c.repos.Configs != nil {
		if err := c.repos.Configs.SaveVersion(ctx, applied); err != nil {
			logger.Warn().Err(err).Msg("strategy config persistence failed")
		}
	}
	return applied
}

func (c *Coordinator) runMonetization(in Input, out *Output, cfg domain.StrategyConfig, logger zerolog.Logger) {
	if !c.flags.Monetization || in.Monetization == nil {
		return
	}

	timer := c.stageTimer("monetization")
	insight := c.analyst.Evaluate(*in.Monetization, cfg.Objective)
	out.Monetization = &insight
	timer.stop("success")

	// Advisory only: recommendations surface in the output and logs, the
	// objective itself moves through the audited updater path.
	logger.Info().
		Float64("monetization_score", insight.MonetizationScore).
		Float64("growth_score", insight.GrowthScore).
		Bool("drift_alert", insight.DriftAlert).
		Bool("abstained", insight.Abstained).
		Msg("monetization insight")
}

func (c *Coordinator) runModeControl(ctx context.Context, in Input, out *Output, cfg domain.StrategyConfig, logger zerolog.Logger) {
	if !c.flags.ModeControl {
		return
	}

	timer := c.stageTimer("mode")

	c.stateMu.Lock()
	prior := c.modeState
	decision := c.controller.Decide(prior, in.ModeInputs, c.now())
	c.modeState = c.controller.Apply(prior, decision, in.ModeInputs, c.now())
	next := c.modeState
	c.stateMu.Unlock()

	out.ModeDecision = &decision
	out.ModeState = next
	timer.stop("success")

	if decision.Changed {
		if c.metrics != nil {
			c.metrics.RecordModeSwitch(prior.Current.String(), next.Current.String(), float64(next.Current))
		}
		logger.Info().
			Str("from", prior.Current.String()).
			Str("to", next.Current.String()).
			Strs("rationale", decision.Rationale).
			Msg("mode switch")
	}

	if in.ModeInputs.ObservedRegret != nil {
		c.updateExplorationCoefficient(ctx, in, out, cfg, logger)
	}

	if c.repos != nil && c.repos.Modes != nil {
		snap := persistence.ModeSnapshot{State: next, CycleID: out.CycleID, UpdatedAt: c.now()}
		if err := c.repos.Modes.Save(ctx, snap); err != nil {
			logger.Warn().Err(err).Msg("mode snapshot persistence failed")
		}
	}
}

// updateExplorationCoefficient folds the cycle's regret and drawdown signals
// into epsilon. The target comes from the pure coefficient function over the
// same input snapshot the mode decision read; the change itself moves through
// the audited updater path and the versioned store like every other strategy
// mutation.
func (c *Coordinator) updateExplorationCoefficient(ctx context.Context, in Input, out *Output, cfg domain.StrategyConfig, logger zerolog.Logger) {
	regret := *in.ModeInputs.ObservedRegret
	target := mode.NextExplorationCoefficient(cfg.Epsilon, regret, in.ModeInputs.Drawdown24h, c.coefficient)

	next, err := c.updater.ApplyExplorationCoefficient(ctx, out.CycleID, cfg, target,
		fmt.Sprintf("observed regret %.4f, drawdown %.4f", regret, in.ModeInputs.Drawdown24h))
	if err != nil {
		c.recordStageError("mode", "coefficient")
		logger.Warn().Err(err).Msg("exploration coefficient update failed")
		return
	}
	if next.Epsilon == cfg.Epsilon {
		return
	}

	applied, err := c.store.CompareAndSwap(cfg.Version, next)
	if err != nil {
		c.recordStageError("mode", "cas")
		logger.Warn().Err(err).Msg("exploration coefficient update lost: concurrent writer or invalid result")
		return
	}
	out.ConfigVersion = applied.Version
	logger.Info().
		Float64("from", cfg.Epsilon).
		Float64("to", applied.Epsilon).
		Float64("observed_regret", regret).
		Msg("exploration coefficient updated")

	if c.repos != nil && c.repos.Configs != nil {
		if err := c.repos.Configs.SaveVersion(ctx, applied); err != nil {
			logger.Warn().Err(err).Msg("strategy config persistence failed")
		}
	}
}

func (c *Coordinator) persistCycle(ctx context.Context, logger zerolog.Logger) {
	if c.repos == nil || c.repos.Archetypes == nil {
		return
	}

	if err := c.repos.Archetypes.UpsertBatch(ctx, c.optimizer.Arms()); err != nil {
		logger.Warn().Err(err).Msg("archetype persistence failed")
	}
}

// stageTimer wraps the optional metrics registry so stages don't nil-check.
type stageTimer struct {
	inner *telemetry.StageTimer
}

func (c *Coordinator) stageTimer(stage string) stageTimer {
	if c.metrics == nil {
		return stageTimer{}
	}
	return stageTimer{inner: c.metrics.StartStageTimer(stage)}
}

func (t stageTimer) stop(result string) {
	if t.inner != nil {
		t.inner.Stop(result)
	}
}

func (c *Coordinator) recordStageError(stage, errorType string) {
	if c.metrics != nil {
		c.metrics.RecordStageError(stage, errorType)
	}
}
