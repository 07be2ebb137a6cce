package shadow

import (
	"fmt"
	"sort"

	"github.com/reelpilot/strategycore/internal/domain"
)

// Checkpoint identifies which scheduled read of the shadow cohort this is.
// The evaluator is stateless per call; an external scheduler drives the
// checkpoints.
type Checkpoint string

const (
	CheckpointEarly   Checkpoint = "30m" // non-binding early read
	CheckpointPrimary Checkpoint = "60m" // binding unless deferred
	CheckpointConfirm Checkpoint = "3h"  // optional confirmation for close calls
)

// Config bounds the winner decision.
type Config struct {
	MinViews           int64   `yaml:"min_views"`            // Default: 200
	MinAggregateViews  int64   `yaml:"min_aggregate_views"`  // Default: 800
	DecisionMargin     float64 `yaml:"decision_margin"`      // Default: 0.015
	ShrinkagePrior     float64 `yaml:"shrinkage_prior"`      // pseudo-views pulling toward baseline, Default: 300
	VelocityWeight     float64 `yaml:"velocity_weight"`      // Default: 0.5
	SecondaryTolerance float64 `yaml:"secondary_tolerance"`  // Default: 0.02
}

// DefaultConfig returns the documented evaluator bounds.
func DefaultConfig() Config {
	return Config{
		MinViews:           200,
		MinAggregateViews:  800,
		DecisionMargin:     0.015,
		ShrinkagePrior:     300,
		VelocityWeight:     0.5,
		SecondaryTolerance: 0.02,
	}
}

// Evaluator selects a winning variant among a small shadow cohort before
// broad distribution.
type Evaluator struct {
	config Config
}

// NewEvaluator creates an evaluator with the given bounds.
func NewEvaluator(config Config) *Evaluator {
	return &Evaluator{config: config}
}

// Evaluate ranks the cohort and picks a winner, or defers. cohortBaseline is
// the niche-typical primary metric that small samples shrink toward.
// Confidence depends only on accumulated sample, so it can only hold or rise
// as later checkpoints see more data.
func (e *Evaluator) Evaluate(checkpoint Checkpoint, results []domain.ShadowVariantResult, cohortBaseline float64) domain.ShadowWinner {
	ranked := make([]domain.RankedVariant, 0, len(results))
	eligible := make([]domain.ShadowVariantResult, 0, len(results))
	var aggregateViews int64

	for _, r := range results {
		aggregateViews += r.Views
		row := domain.RankedVariant{
			VariantID:  r.VariantID,
			Views:      r.Views,
			Confidence: r.Confidence,
		}
		if r.Views < e.config.MinViews {
			row.BelowViewGate = true
			ranked = append(ranked, row)
			continue
		}
		row.PrimaryScore = e.primaryScore(r)
		row.ShrunkScore = e.shrink(row.PrimaryScore, r.Views, cohortBaseline)
		ranked = append(ranked, row)
		eligible = append(eligible, r)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].BelowViewGate != ranked[j].BelowViewGate {
			return !ranked[i].BelowViewGate
		}
		if ranked[i].ShrunkScore != ranked[j].ShrunkScore {
			return ranked[i].ShrunkScore > ranked[j].ShrunkScore
		}
		return ranked[i].VariantID < ranked[j].VariantID
	})

	confidence := e.sampleConfidence(aggregateViews)
	winner := domain.ShadowWinner{
		Ranked:     ranked,
		Confidence: confidence,
		Checkpoint: string(checkpoint),
	}

	if len(eligible) == 0 {
		winner.Deferred = true
		winner.Rationale = fmt.Sprintf("no variant reached the %d-view floor", e.config.MinViews)
		return winner
	}
	if aggregateViews < e.config.MinAggregateViews {
		winner.Deferred = true
		winner.Rationale = fmt.Sprintf("aggregate sample %d below threshold %d", aggregateViews, e.config.MinAggregateViews)
		return winner
	}

	top := ranked[0]
	rationale := "clear primary-metric lead"
	if len(eligible) > 1 {
		gap := top.ShrunkScore - ranked[1].ShrunkScore
		if gap < e.config.DecisionMargin {
			resolved, why := e.secondaryTieBreak(results, top.VariantID, ranked[1].VariantID)
			if resolved == "" {
				winner.Deferred = true
				winner.Rationale = fmt.Sprintf("top-two gap %.4f below margin %.4f and secondary metrics tied", gap, e.config.DecisionMargin)
				return winner
			}
			top = findRanked(ranked, resolved)
			rationale = why
		}
	}

	if checkpoint == CheckpointEarly {
		// Early read is advisory only: report the current leader without
		// committing a winner.
		winner.Deferred = true
		winner.Rationale = "non-binding early read, leader " + top.VariantID
		return winner
	}

	winner.WinnerID = top.VariantID
	winner.Rationale = rationale
	return winner
}

// primaryScore is the weighted primary metric: normalized view velocity
// blended with the save+share rate. Zero-view variants never reach here, the
// view floor excludes them first.
func (e *Evaluator) primaryScore(r domain.ShadowVariantResult) float64 {
	saveShareRate := float64(r.Saves+r.Shares) / float64(r.Views)
	return e.config.VelocityWeight*r.ViewVelocity + (1-e.config.VelocityWeight)*saveShareRate
}

// shrink pulls a small-sample score toward the cohort baseline in proportion
// to how few views back it, protecting against small-sample inflation.
func (e *Evaluator) shrink(score float64, views int64, baseline float64) float64 {
	n := float64(views)
	return (n*score + e.config.ShrinkagePrior*baseline) / (n + e.config.ShrinkagePrior)
}

// sampleConfidence grows monotonically with accumulated views and never
// depends on elapsed time.
func (e *Evaluator) sampleConfidence(aggregateViews int64) float64 {
	n := float64(aggregateViews)
	return n / (n + 2*e.config.ShrinkagePrior)
}

// secondaryTieBreak resolves a near-tie using the fixed metric order:
// comment-quality score, retention/loop proxy, profile-action rate.
func (e *Evaluator) secondaryTieBreak(results []domain.ShadowVariantResult, aID, bID string) (string, string) {
	a, b := findResult(results, aID), findResult(results, bID)

	if diff := a.CommentQuality - b.CommentQuality; abs(diff) > e.config.SecondaryTolerance {
		return pick(diff, aID, bID), "near-tie broken by comment quality"
	}
	if diff := a.RetentionProxy - b.RetentionProxy; abs(diff) > e.config.SecondaryTolerance {
		return pick(diff, aID, bID), "near-tie broken by retention proxy"
	}
	aRate := profileActionRate(a)
	bRate := profileActionRate(b)
	if diff := aRate - bRate; abs(diff) > e.config.SecondaryTolerance {
		return pick(diff, aID, bID), "near-tie broken by profile-action rate"
	}
	return "", ""
}

func profileActionRate(r domain.ShadowVariantResult) float64 {
	if r.Views == 0 {
		return 0
	}
	return float64(r.ProfileActions) / float64(r.Views)
}

func findResult(results []domain.ShadowVariantResult, id string) domain.ShadowVariantResult {
	for _, r := range results {
		if r.VariantID == id {
			return r
		}
	}
	return domain.ShadowVariantResult{}
}

func findRanked(ranked []domain.RankedVariant, id string) domain.RankedVariant {
	for _, r := range ranked {
		if r.VariantID == id {
			return r
		}
	}
	return domain.RankedVariant{}
}

func pick(diff float64, aID, bID string) string {
	if diff > 0 {
		return aID
	}
	return bID
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
