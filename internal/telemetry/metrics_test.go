package telemetry

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry_IndependentInstances(t *testing.T) {
	// Two registries must not collide on registration.
	m1 := NewMetricsRegistry()
	m2 := NewMetricsRegistry()

	m1.CycleStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m1.TotalCycles))
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.TotalCycles))
}

func TestMetricsRegistry_RecordersIncrementCounters(t *testing.T) {
	m := NewMetricsRegistry()

	m.RecordArmSelection("pov_story", "greedy")
	m.RecordArmSelection("pov_story", "explore")
	m.RecordReward("pov_story", 0.42)
	m.RecordModeSwitch("exploit", "explore", 1)
	m.RecordShadowDecision("60m", "deferred")
	m.RecordUpdateApplied("epsilon")
	m.RecordUpdateSuppressed("reward_weights.saves", "anomaly_freeze")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArmSelections.WithLabelValues("pov_story", "greedy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RewardsRecorded.WithLabelValues("pov_story")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeSwitches.WithLabelValues("exploit", "explore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveMode))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShadowDecisions.WithLabelValues("60m", "deferred")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesApplied.WithLabelValues("epsilon")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesSuppressed.WithLabelValues("reward_weights.saves", "anomaly_freeze")))
}

func TestMetricsRegistry_HandlerServesMetrics(t *testing.T) {
	m := NewMetricsRegistry()
	m.CycleStarted()
	m.CycleFinished()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.MetricsHandler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "strategycore_cycles_total")
}
