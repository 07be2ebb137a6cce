package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/platform"
	"github.com/reelpilot/strategycore/internal/telemetry"
)

type fakeArms struct{ arms []domain.Archetype }

func (f fakeArms) Arms() []domain.Archetype { return f.arms }

type fakeMode struct{ state domain.ModeState }

func (f fakeMode) ModeState() domain.ModeState { return f.state }

type fakeStrategy struct{ cfg domain.StrategyConfig }

func (f fakeStrategy) Snapshot() domain.StrategyConfig { return f.cfg }

type fakeBreakers struct{}

func (fakeBreakers) StatusAll() map[string]*platform.BreakerStatus {
	return map[string]*platform.BreakerStatus{
		"publisher": {Name: "Publisher", State: "closed"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	metrics := telemetry.NewMetricsRegistry()
	handlers := NewHandlers(
		fakeArms{arms: []domain.Archetype{{ID: "pov_story", Pulls: 12, MeanReward: 0.4}}},
		fakeMode{state: domain.ModeState{Current: domain.ModeExplore, EnteredAt: time.Now()}},
		fakeStrategy{cfg: domain.StrategyConfig{Version: 3, Epsilon: 0.2}},
		fakeBreakers{},
		nil,
		metrics.MetricsHandler(),
	)

	srv, err := NewServer(ServerConfig{
		Host:         "127.0.0.1",
		Port:         0, // any free port
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}, handlers, zerolog.Nop())
	require.NoError(t, err)
	return srv
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Mode(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/mode")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "explore", resp["mode"])
}

func TestServer_Arms(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/arms")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int                `json:"count"`
		Arms  []domain.Archetype `json:"arms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "pov_story", resp.Arms[0].ID)
}

func TestServer_Strategy(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/strategy")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg domain.StrategyConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, int64(3), cfg.Version)
}

func TestServer_BreakersAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/breakers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Publisher")

	rec = doGet(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "strategycore_")
}

func TestServer_NotFoundIsJSON(t *testing.T) {
	srv := newTestServer(t)

	rec := doGet(t, srv, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestHandlers_NilSourcesDegrade(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Mode(rec, httptest.NewRequest("GET", "/mode", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.Metrics().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
