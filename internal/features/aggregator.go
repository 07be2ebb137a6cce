package features

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelpilot/strategycore/internal/domain"
)

// Tier classifies components by how fast their signal decays.
type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierWarm:
		return "warm"
	case TierCold:
		return "cold"
	default:
		return "unknown"
	}
}

// TierPolicy is the refresh cadence and staleness bound for one tier.
type TierPolicy struct {
	Refresh time.Duration `yaml:"refresh"`
	TTL     time.Duration `yaml:"ttl"`
}

// tierPolicies: hot refreshes every 15m with a 2h TTL, warm hourly / 24h,
// cold daily / 7d.
var tierPolicies = map[Tier]TierPolicy{
	TierHot:  {Refresh: 15 * time.Minute, TTL: 2 * time.Hour},
	TierWarm: {Refresh: time.Hour, TTL: 24 * time.Hour},
	TierCold: {Refresh: 24 * time.Hour, TTL: 7 * 24 * time.Hour},
}

// componentTiers assigns each score component its freshness tier. Novelty and
// platform bias move with the platform's hour-scale trends; pattern strength
// and emotional pull drift daily; creator consistency moves on a weekly
// horizon.
var componentTiers = map[string]Tier{
	domain.FeatureNovelty:            TierHot,
	domain.FeaturePlatformBias:       TierHot,
	domain.FeaturePatternStrength:    TierWarm,
	domain.FeatureEmotionalPull:      TierWarm,
	domain.FeatureCreatorConsistency: TierCold,
}

// Config bounds aggregation behavior.
type Config struct {
	DecayLambda     float64            `yaml:"decay_lambda"`     // Default: 0.08, per-niche overrides in [0.05, 0.12]
	LatenessWindow  time.Duration      `yaml:"lateness_window"`  // Default: 72h
	StalePenalty    float64            `yaml:"stale_penalty"`    // Default: 0.25
	ConfidencePrior float64            `yaml:"confidence_prior"` // pseudo-weight, Default: 2.0
	NicheLambdas    map[string]float64 `yaml:"niche_lambdas"`
}

// DefaultConfig returns the documented aggregation constants.
func DefaultConfig() Config {
	return Config{
		DecayLambda:     0.08,
		LatenessWindow:  72 * time.Hour,
		StalePenalty:    0.25,
		ConfidencePrior: 2.0,
	}
}

// Validate checks the decay bounds at load time.
func (c Config) Validate() error {
	if c.DecayLambda < 0.05 || c.DecayLambda > 0.12 {
		return &domain.ValidationError{Field: "decay_lambda", Reason: fmt.Sprintf("%.3f outside [0.05, 0.12]", c.DecayLambda)}
	}
	for niche, lambda := range c.NicheLambdas {
		if lambda < 0.05 || lambda > 0.12 {
			return &domain.ValidationError{Field: "niche_lambdas." + niche, Reason: fmt.Sprintf("%.3f outside [0.05, 0.12]", lambda)}
		}
	}
	return nil
}

// Aggregator folds raw observations into feature vectors with exponential
// time decay. Observations are append-only; late arrivals inside the 72h
// window invalidate the affected niche snapshot so the next read recomputes.
type Aggregator struct {
	config Config
	cache  SnapshotCache
	logger zerolog.Logger

	mu           sync.RWMutex
	observations map[string][]domain.Observation // keyed by niche
	computedAt   map[string]time.Time            // last vector compute per niche+archetype
}

// NewAggregator creates an aggregator over the given snapshot cache.
func NewAggregator(config Config, cache SnapshotCache, logger zerolog.Logger) (*Aggregator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		config:       config,
		cache:        cache,
		logger:       logger,
		observations: make(map[string][]domain.Observation),
		computedAt:   make(map[string]time.Time),
	}, nil
}

// Ingest appends one observation. Data older than the lateness window is
// dropped; late data inside it triggers recomputation of the affected niche
// by clearing the compute marker.
func (a *Aggregator) Ingest(obs domain.Observation, now time.Time) error {
	if obs.Niche == "" {
		return &domain.ValidationError{Field: "niche", Reason: "observation has no niche"}
	}
	if obs.TimestampBucket.IsZero() {
		return &domain.ValidationError{Field: "timestamp_bucket", Reason: "observation has no timestamp"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	age := now.Sub(obs.TimestampBucket)
	if age > a.config.LatenessWindow {
		a.logger.Debug().Str("id", obs.ID).Dur("age", age).Msg("dropping observation outside lateness window")
		return nil
	}

	a.observations[obs.Niche] = append(a.observations[obs.Niche], obs)

	// Late arrival for an already-computed window: force recompute.
	for key, at := range a.computedAt {
		if obs.TimestampBucket.Before(at) {
			delete(a.computedAt, key)
		}
	}
	return nil
}

// decayLambda resolves the per-niche decay override.
func (a *Aggregator) decayLambda(niche string) float64 {
	if l, ok := a.config.NicheLambdas[niche]; ok {
		return l
	}
	return a.config.DecayLambda
}

// ComputeVector derives the feature vector for a niche/archetype at now.
// Components whose tier TTL has expired fall back to the cached snapshot
// with a confidence penalty rather than blocking the cycle. Missing raw
// fields impute from the niche median and record the imputation.
func (a *Aggregator) ComputeVector(ctx context.Context, niche, archetypeID string, now time.Time) (domain.FeatureVector, error) {
	a.mu.RLock()
	history := a.observations[niche]
	a.mu.RUnlock()

	if len(history) == 0 {
		return domain.FeatureVector{}, fmt.Errorf("no observations for niche %s: %w", niche, domain.ErrLowConfidenceDefer)
	}

	lambda := a.decayLambda(niche)
	cacheKey := "features:" + niche + ":" + archetypeID
	prior, hasPrior := a.cache.Get(ctx, cacheKey)

	fv := domain.FeatureVector{
		Niche:       niche,
		ArchetypeID: archetypeID,
		Components:  make(map[string]domain.Measure, len(domain.FeatureNames)),
		Imputations: make(map[string]domain.Imputation),
		ComputedAt:  now,
	}

	medians := a.nicheMedians(history)

	for _, name := range domain.FeatureNames {
		tier := componentTiers[name]
		policy := tierPolicies[tier]

		value, weight, newest := a.decayedComponent(history, archetypeID, name, lambda, now)
		switch {
		case weight == 0:
			// No raw data at all for this component: impute from the
			// niche median across all archetypes, recording the method.
			if median, ok := medians[name]; ok {
				confidence := 0.3
				fv.Components[name] = domain.Measure{Value: normalize(median), Confidence: confidence}
				fv.Imputations[name] = domain.Imputation{Method: "niche_median", Confidence: confidence}
			} else if hasPrior {
				m := prior.Components[name].WithPenalty(a.config.StalePenalty)
				fv.Components[name] = m
				fv.Imputations[name] = domain.Imputation{Method: "prior_snapshot", Confidence: m.Confidence}
			} else {
				fv.Components[name] = domain.Measure{Value: 1.0, Confidence: 0}
				fv.Imputations[name] = domain.Imputation{Method: "neutral", Confidence: 0}
			}

		case now.Sub(newest) > policy.TTL:
			// Tier expired: prefer the last valid snapshot, penalized.
			if hasPrior {
				if m, ok := prior.Components[name]; ok {
					fv.Components[name] = m.WithPenalty(a.config.StalePenalty)
					break
				}
			}
			m := domain.Measure{Value: normalize(value), Confidence: a.confidence(weight)}
			fv.Components[name] = m.WithPenalty(a.config.StalePenalty)

		default:
			fv.Components[name] = domain.Measure{Value: normalize(value), Confidence: a.confidence(weight)}
		}
	}

	a.mu.Lock()
	a.computedAt[cacheKey] = now
	a.mu.Unlock()

	// Hot-tier TTL bounds how long this snapshot may serve as a fallback.
	a.cache.Set(ctx, cacheKey, fv, tierPolicies[TierHot].TTL)
	return fv, nil
}

// decayedComponent computes the exp(-lambda*ageDays) weighted mean of one
// raw metric across the archetype's own observations. Null-marked fields
// never contribute; a component with no archetype data imputes upstream.
func (a *Aggregator) decayedComponent(history []domain.Observation, archetypeID, metric string, lambda float64, now time.Time) (value, totalWeight float64, newest time.Time) {
	var weightedSum float64

	accumulate := func(obs domain.Observation) {
		if obs.Missing[metric] {
			return
		}
		raw, ok := obs.Metrics[metric]
		if !ok {
			return
		}
		ageDays := now.Sub(obs.TimestampBucket).Hours() / 24
		w := math.Exp(-lambda * ageDays)
		weightedSum += raw * w
		totalWeight += w
		if obs.TimestampBucket.After(newest) {
			newest = obs.TimestampBucket
		}
	}

	for _, obs := range history {
		if obs.ArchetypeID == archetypeID {
			accumulate(obs)
		}
	}

	if totalWeight == 0 {
		return 0, 0, newest
	}
	return weightedSum / totalWeight, totalWeight, newest
}

// nicheMedians computes the per-metric median across all observations,
// used for derived-layer imputation.
func (a *Aggregator) nicheMedians(history []domain.Observation) map[string]float64 {
	values := make(map[string][]float64)
	for _, obs := range history {
		for _, name := range domain.FeatureNames {
			if obs.Missing[name] {
				continue
			}
			if v, ok := obs.Metrics[name]; ok {
				values[name] = append(values[name], v)
			}
		}
	}

	medians := make(map[string]float64, len(values))
	for name, vs := range values {
		sort.Float64s(vs)
		mid := len(vs) / 2
		if len(vs)%2 == 0 {
			medians[name] = (vs[mid-1] + vs[mid]) / 2
		} else {
			medians[name] = vs[mid]
		}
	}
	return medians
}

// confidence maps accumulated decay weight to [0,1): more (fresher) samples,
// higher confidence.
func (a *Aggregator) confidence(totalWeight float64) float64 {
	return totalWeight / (totalWeight + a.config.ConfidencePrior)
}

// normalize clamps a component value to the documented [0.2, 1.2] band.
func normalize(v float64) float64 {
	if v < 0.2 {
		return 0.2
	}
	if v > 1.2 {
		return 1.2
	}
	return v
}
