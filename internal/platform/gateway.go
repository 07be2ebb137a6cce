package platform

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// GatewayConfig tunes the downstream gateway.
type GatewayConfig struct {
	// PublishRPS caps publish calls; bursts allow catching up after a stall.
	PublishRPS   float64 `yaml:"publish_rps"`   // Default: 0.5
	PublishBurst int     `yaml:"publish_burst"` // Default: 3
}

// DefaultGatewayConfig returns conservative publish pacing.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		PublishRPS:   0.5,
		PublishBurst: 3,
	}
}

// Gateway fronts all external collaborators with circuit breakers and a
// publish rate limiter. A cancelled or timed-out publish returns the context
// error; the caller must discard the pending observation rather than record
// a partial result.
type Gateway struct {
	generator  Generator
	publisher  Publisher
	compliance ComplianceChecker
	breakers   *BreakerManager
	publishLim *rate.Limiter
	logger     zerolog.Logger
}

// NewGateway wires the raw clients behind breakers and publish pacing.
func NewGateway(gen Generator, pub Publisher, comp ComplianceChecker, config GatewayConfig, logger zerolog.Logger) *Gateway {
	breakers := NewBreakerManager(logger)
	for name, bc := range DefaultBreakerConfigs() {
		breakers.Register(name, bc)
	}

	return &Gateway{
		generator:  gen,
		publisher:  pub,
		compliance: comp,
		breakers:   breakers,
		publishLim: rate.NewLimiter(rate.Limit(config.PublishRPS), config.PublishBurst),
		logger:     logger.With().Str("component", "gateway").Logger(),
	}
}

// Breakers exposes breaker status for ops endpoints.
func (g *Gateway) Breakers() *BreakerManager {
	return g.breakers
}

// Generate requests variant drafts through the generator breaker.
func (g *Gateway) Generate(ctx context.Context, req GenerationRequest) ([]ContentDraft, error) {
	result, err := g.breakers.Execute("generator", func() (interface{}, error) {
		return g.generator.Generate(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.ArchetypeID, err)
	}
	return result.([]ContentDraft), nil
}

// Verdict runs the compliance gate through its breaker.
func (g *Gateway) Verdict(ctx context.Context, draft ContentDraft) (*ComplianceVerdict, error) {
	result, err := g.breakers.Execute("compliance", func() (interface{}, error) {
		return g.compliance.Verdict(ctx, draft)
	})
	if err != nil {
		return nil, fmt.Errorf("compliance verdict for %s: %w", draft.ID, err)
	}
	return result.(*ComplianceVerdict), nil
}

// Publish pushes one draft live, waiting on the rate limiter first. Context
// cancellation while waiting or publishing aborts the draft entirely.
func (g *Gateway) Publish(ctx context.Context, draft ContentDraft) (*PublishReceipt, error) {
	if err := g.publishLim.Wait(ctx); err != nil {
		g.logger.Warn().Str("draft_id", draft.ID).Err(err).Msg("publish abandoned before dispatch")
		return nil, fmt.Errorf("publish %s: %w", draft.ID, err)
	}

	result, err := g.breakers.Execute("publisher", func() (interface{}, error) {
		return g.publisher.Publish(ctx, draft)
	})
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", draft.ID, err)
	}
	return result.(*PublishReceipt), nil
}

// PullMetrics fetches raw engagement counters for published content.
func (g *Gateway) PullMetrics(ctx context.Context, contentID string) (map[string]float64, error) {
	result, err := g.breakers.Execute("publisher", func() (interface{}, error) {
		return g.publisher.PullMetrics(ctx, contentID)
	})
	if err != nil {
		return nil, fmt.Errorf("pull metrics for %s: %w", contentID, err)
	}
	return result.(map[string]float64), nil
}
