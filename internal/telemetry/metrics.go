package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// MetricsRegistry holds all Prometheus metrics for the strategy core.
// Each instance carries its own registry so tests never collide on the
// process-global default.
type MetricsRegistry struct {
	registry *prometheus.Registry

	// Stage duration metrics
	StageDuration *prometheus.HistogramVec

	// Cycle metrics
	ActiveCycles prometheus.Gauge
	TotalCycles  prometheus.Counter
	StageErrors  *prometheus.CounterVec

	// Cache performance metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Bandit metrics
	ArmSelections   *prometheus.CounterVec
	RewardsRecorded *prometheus.CounterVec
	RewardValue     *prometheus.HistogramVec

	// Mode controller metrics
	ModeSwitches *prometheus.CounterVec
	ActiveMode   prometheus.Gauge

	// Shadow test metrics
	ShadowDecisions *prometheus.CounterVec

	// Strategy update metrics
	UpdatesApplied    *prometheus.CounterVec
	UpdatesSuppressed *prometheus.CounterVec
}

// NewMetricsRegistry creates a registry with all strategy core metrics.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strategycore_stage_duration_seconds",
				Help:    "Duration of each cycle stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"stage", "result"},
		),

		ActiveCycles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "strategycore_active_cycles",
				Help: "Number of currently running strategy cycles",
			},
		),

		TotalCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "strategycore_cycles_total",
				Help: "Total number of strategy cycles started",
			},
		),

		StageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_stage_errors_total",
				Help: "Total number of cycle stage errors",
			},
			[]string{"stage", "error_type"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_cache_hits_total",
				Help: "Total number of cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_cache_misses_total",
				Help: "Total number of cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		ArmSelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_arm_selections_total",
				Help: "Total archetype selections by arm and branch",
			},
			[]string{"archetype", "branch"},
		),

		RewardsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_rewards_total",
				Help: "Total reward registrations by archetype",
			},
			[]string{"archetype"},
		),

		RewardValue: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strategycore_reward_value",
				Help:    "Distribution of weighted reward values",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"archetype"},
		),

		ModeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_mode_switches_total",
				Help: "Total mode transitions by from/to mode",
			},
			[]string{"from_mode", "to_mode"},
		),

		ActiveMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "strategycore_active_mode",
				Help: "Current mode (0=exploit, 1=explore, 2=mutation, 3=chaos)",
			},
		),

		ShadowDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_shadow_decisions_total",
				Help: "Shadow test outcomes by checkpoint and decision",
			},
			[]string{"checkpoint", "decision"},
		),

		UpdatesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_updates_applied_total",
				Help: "Strategy config updates applied by field",
			},
			[]string{"field"},
		),

		UpdatesSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strategycore_updates_suppressed_total",
				Help: "Strategy config updates suppressed by field and reason",
			},
			[]string{"field", "reason"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StageDuration,
		m.ActiveCycles,
		m.TotalCycles,
		m.StageErrors,
		m.CacheHits,
		m.CacheMisses,
		m.ArmSelections,
		m.RewardsRecorded,
		m.RewardValue,
		m.ModeSwitches,
		m.ActiveMode,
		m.ShadowDecisions,
		m.UpdatesApplied,
		m.UpdatesSuppressed,
	)

	return m
}

// StageTimer tracks execution time for cycle stages
type StageTimer struct {
	metrics *MetricsRegistry
	stage   string
	start   time.Time
}

// StartStageTimer begins timing a cycle stage
func (m *MetricsRegistry) StartStageTimer(stage string) *StageTimer {
	return &StageTimer{
		metrics: m,
		stage:   stage,
		start:   time.Now(),
	}
}

// Stop completes the stage timing and records the metric
func (st *StageTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.StageDuration.WithLabelValues(st.stage, result).Observe(duration.Seconds())

	log.Debug().
		Str("stage", st.stage).
		Str("result", result).
		Dur("duration", duration).
		Msg("cycle stage completed")
}

// RecordCacheHit records a cache hit for the specified cache type
func (m *MetricsRegistry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the specified cache type
func (m *MetricsRegistry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordStageError records a failed cycle stage
func (m *MetricsRegistry) RecordStageError(stage, errorType string) {
	m.StageErrors.WithLabelValues(stage, errorType).Inc()
	log.Warn().
		Str("stage", stage).
		Str("error_type", errorType).
		Msg("cycle stage error recorded")
}

// CycleStarted marks the beginning of a strategy cycle
func (m *MetricsRegistry) CycleStarted() {
	m.ActiveCycles.Inc()
	m.TotalCycles.Inc()
}

// CycleFinished marks the end of a strategy cycle
func (m *MetricsRegistry) CycleFinished() {
	m.ActiveCycles.Dec()
}

// RecordArmSelection records a bandit selection; branch is "greedy" or "explore"
func (m *MetricsRegistry) RecordArmSelection(archetypeID, branch string) {
	m.ArmSelections.WithLabelValues(archetypeID, branch).Inc()
}

// RecordReward records a registered reward and its value
func (m *MetricsRegistry) RecordReward(archetypeID string, reward float64) {
	m.RewardsRecorded.WithLabelValues(archetypeID).Inc()
	m.RewardValue.WithLabelValues(archetypeID).Observe(reward)
}

// RecordModeSwitch records a mode transition and updates the active mode gauge
func (m *MetricsRegistry) RecordModeSwitch(fromMode, toMode string, toValue float64) {
	m.ModeSwitches.WithLabelValues(fromMode, toMode).Inc()
	m.ActiveMode.Set(toValue)
}

// RecordShadowDecision records a shadow evaluation outcome;
// decision is "winner" or "deferred"
func (m *MetricsRegistry) RecordShadowDecision(checkpoint, decision string) {
	m.ShadowDecisions.WithLabelValues(checkpoint, decision).Inc()
}

// RecordUpdateApplied records an applied strategy config mutation
func (m *MetricsRegistry) RecordUpdateApplied(field string) {
	m.UpdatesApplied.WithLabelValues(field).Inc()
}

// RecordUpdateSuppressed records a suppressed strategy config mutation
func (m *MetricsRegistry) RecordUpdateSuppressed(field, reason string) {
	m.UpdatesSuppressed.WithLabelValues(field, reason).Inc()
}

// MetricsHandler returns an HTTP handler serving this registry
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
