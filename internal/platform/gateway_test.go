package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	drafts []ContentDraft
	err    error
	calls  int
}

func (s *stubGenerator) Generate(_ context.Context, req GenerationRequest) ([]ContentDraft, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.drafts, nil
}

type stubPublisher struct {
	receipt *PublishReceipt
	metrics map[string]float64
	err     error
	calls   int
}

func (s *stubPublisher) Publish(ctx context.Context, draft ContentDraft) (*PublishReceipt, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.receipt, nil
}

func (s *stubPublisher) PullMetrics(_ context.Context, contentID string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.metrics, nil
}

type stubCompliance struct {
	verdict *ComplianceVerdict
	err     error
}

func (s *stubCompliance) Verdict(_ context.Context, draft ContentDraft) (*ComplianceVerdict, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.verdict, nil
}

func newTestGateway(gen *stubGenerator, pub *stubPublisher, comp *stubCompliance) *Gateway {
	cfg := GatewayConfig{PublishRPS: 1000, PublishBurst: 100}
	return NewGateway(gen, pub, comp, cfg, zerolog.Nop())
}

func TestGateway_GenerateAndVerdict(t *testing.T) {
	gen := &stubGenerator{drafts: []ContentDraft{{ID: "d1", ArchetypeID: "pov_story"}}}
	pub := &stubPublisher{receipt: &PublishReceipt{ContentID: "c1", PublishedAt: time.Now()}}
	comp := &stubCompliance{verdict: &ComplianceVerdict{Approved: true}}
	gw := newTestGateway(gen, pub, comp)

	drafts, err := gw.Generate(context.Background(), GenerationRequest{ArchetypeID: "pov_story", VariantCount: 1})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "d1", drafts[0].ID)

	verdict, err := gw.Verdict(context.Background(), drafts[0])
	require.NoError(t, err)
	assert.True(t, verdict.Approved)
}

func TestGateway_PublishCancelledContextReturnsError(t *testing.T) {
	pub := &stubPublisher{receipt: &PublishReceipt{ContentID: "c1"}}
	gw := newTestGateway(&stubGenerator{}, pub, &stubCompliance{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	receipt, err := gw.Publish(ctx, ContentDraft{ID: "d1"})
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGateway_PublishRateLimiterHonorsDeadline(t *testing.T) {
	pub := &stubPublisher{receipt: &PublishReceipt{ContentID: "c1"}}
	// Zero-burst limiter can never admit a publish.
	gw := NewGateway(&stubGenerator{}, pub, &stubCompliance{}, GatewayConfig{PublishRPS: 0.001, PublishBurst: 0}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.Publish(ctx, ContentDraft{ID: "d1"})
	require.Error(t, err)
	assert.Equal(t, 0, pub.calls, "publish must not dispatch after limiter rejection")
}

func TestGateway_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	gen := &stubGenerator{err: errors.New("generator down")}
	gw := newTestGateway(gen, &stubPublisher{}, &stubCompliance{})

	for i := 0; i < 3; i++ {
		_, err := gw.Generate(context.Background(), GenerationRequest{ArchetypeID: "a"})
		require.Error(t, err)
	}

	status := gw.Breakers().Status("generator")
	require.NotNil(t, status)
	assert.Equal(t, "open", status.State)

	// Open breaker sheds load without touching the client.
	callsBefore := gen.calls
	_, err := gw.Generate(context.Background(), GenerationRequest{ArchetypeID: "a"})
	require.Error(t, err)
	assert.Equal(t, callsBefore, gen.calls)
}

func TestGateway_PullMetrics(t *testing.T) {
	pub := &stubPublisher{metrics: map[string]float64{"impressions": 1200, "saves": 40}}
	gw := newTestGateway(&stubGenerator{}, pub, &stubCompliance{})

	metrics, err := gw.PullMetrics(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1200.0, metrics["impressions"])
}
