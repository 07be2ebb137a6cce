package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClientConfig configures the JSON clients for the external collaborators.
type HTTPClientConfig struct {
	GeneratorURL  string        `yaml:"generator_url"`
	PublisherURL  string        `yaml:"publisher_url"`
	ComplianceURL string        `yaml:"compliance_url"`
	Timeout       time.Duration `yaml:"timeout"` // Default: 30s
}

// DefaultHTTPClientConfig returns the client defaults with no endpoints set.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{Timeout: 30 * time.Second}
}

// Configured reports whether all three collaborator endpoints are set.
func (c HTTPClientConfig) Configured() bool {
	return c.GeneratorURL != "" && c.PublisherURL != "" && c.ComplianceURL != ""
}

// HTTPGenerator calls a remote content-generation service.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPGenerator creates a generator client against baseURL.
func NewHTTPGenerator(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "generator_client").Logger(),
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, req GenerationRequest) ([]ContentDraft, error) {
	var drafts []ContentDraft
	if err := postJSON(ctx, g.client, g.baseURL+"/v1/generate", req, &drafts); err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	g.logger.Debug().Str("archetype", req.ArchetypeID).Int("drafts", len(drafts)).Msg("variants generated")
	return drafts, nil
}

// HTTPPublisher calls a remote publish/analytics service.
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPPublisher creates a publisher client against baseURL.
func NewHTTPPublisher(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPPublisher {
	return &HTTPPublisher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "publisher_client").Logger(),
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, draft ContentDraft) (*PublishReceipt, error) {
	var receipt PublishReceipt
	if err := postJSON(ctx, p.client, p.baseURL+"/v1/publish", draft, &receipt); err != nil {
		return nil, fmt.Errorf("publish request: %w", err)
	}
	return &receipt, nil
}

func (p *HTTPPublisher) PullMetrics(ctx context.Context, contentID string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/v1/metrics/%s", p.baseURL, contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metrics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics request: HTTP %d", resp.StatusCode)
	}

	var metrics map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return nil, fmt.Errorf("metrics decode: %w", err)
	}
	return metrics, nil
}

// HTTPCompliance calls a remote policy-review service.
type HTTPCompliance struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCompliance creates a compliance client against baseURL.
func NewHTTPCompliance(baseURL string, timeout time.Duration) *HTTPCompliance {
	return &HTTPCompliance{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCompliance) Verdict(ctx context.Context, draft ContentDraft) (*ComplianceVerdict, error) {
	var verdict ComplianceVerdict
	if err := postJSON(ctx, c.client, c.baseURL+"/v1/review", draft, &verdict); err != nil {
		return nil, fmt.Errorf("compliance request: %w", err)
	}
	return &verdict, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
