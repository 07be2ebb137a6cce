package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/persistence"
	"github.com/reelpilot/strategycore/internal/platform"
)

// ArmsSource exposes the current bandit arm snapshot.
type ArmsSource interface {
	Arms() []domain.Archetype
}

// ModeSource exposes the current mode-controller state.
type ModeSource interface {
	ModeState() domain.ModeState
}

// StrategySource exposes the current strategy config snapshot.
type StrategySource interface {
	Snapshot() domain.StrategyConfig
}

// BreakerSource exposes downstream circuit breaker status.
type BreakerSource interface {
	StatusAll() map[string]*platform.BreakerStatus
}

// Handlers serves the read-only ops endpoints. Any nil source degrades its
// endpoint to 503 instead of failing server construction.
type Handlers struct {
	arms     ArmsSource
	mode     ModeSource
	strategy StrategySource
	breakers BreakerSource
	health   persistence.RepositoryHealth
	metrics  http.Handler
	started  time.Time
}

// NewHandlers wires the ops endpoint data sources.
func NewHandlers(arms ArmsSource, mode ModeSource, strategy StrategySource, breakers BreakerSource, health persistence.RepositoryHealth, metrics http.Handler) *Handlers {
	return &Handlers{
		arms:     arms,
		mode:     mode,
		strategy: strategy,
		breakers: breakers,
		health:   health,
		metrics:  metrics,
		started:  time.Now(),
	}
}

// Metrics returns the Prometheus handler, or 503 when telemetry is disabled.
func (h *Handlers) Metrics() http.Handler {
	if h.metrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return h.metrics
}

type healthResponse struct {
	Status        string                   `json:"status"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
	Timestamp     time.Time                `json:"timestamp"`
	Database      *persistence.HealthCheck `json:"database,omitempty"`
}

// Health reports process liveness and database health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().UTC(),
	}

	if h.health != nil {
		check := h.health.Health(r.Context())
		resp.Database = &check
		if !check.Healthy {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Mode reports the current mode-controller state.
func (h *Handlers) Mode(w http.ResponseWriter, _ *http.Request) {
	if h.mode == nil {
		writeError(w, http.StatusServiceUnavailable, "mode controller not running")
		return
	}

	state := h.mode.ModeState()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":  state.Current.String(),
		"state": state,
	})
}

// Arms reports the current bandit arm statistics.
func (h *Handlers) Arms(w http.ResponseWriter, _ *http.Request) {
	if h.arms == nil {
		writeError(w, http.StatusServiceUnavailable, "optimizer not running")
		return
	}

	arms := h.arms.Arms()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(arms),
		"arms":  arms,
	})
}

// Strategy reports the active strategy config snapshot.
func (h *Handlers) Strategy(w http.ResponseWriter, _ *http.Request) {
	if h.strategy == nil {
		writeError(w, http.StatusServiceUnavailable, "strategy store not running")
		return
	}

	writeJSON(w, http.StatusOK, h.strategy.Snapshot())
}

// Breakers reports downstream circuit breaker status.
func (h *Handlers) Breakers(w http.ResponseWriter, _ *http.Request) {
	if h.breakers == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway not running")
		return
	}

	writeJSON(w, http.StatusOK, h.breakers.StatusAll())
}

// NotFound is the JSON 404 handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
