package platform

import (
	"context"
	"time"
)

// GenerationRequest asks the content generator for variant drafts of one
// archetype. VariantCount comes from the opportunity score bucket.
type GenerationRequest struct {
	ArchetypeID  string `json:"archetype_id"`
	Niche        string `json:"niche"`
	VariantCount int    `json:"variant_count"`
	Mode         string `json:"mode"`
}

// ContentDraft is one generated variant awaiting compliance review and publish.
type ContentDraft struct {
	ID          string `json:"id"`
	ArchetypeID string `json:"archetype_id"`
	Niche       string `json:"niche"`
	Hook        string `json:"hook"`
	DurationSec int    `json:"duration_sec"`
}

// PublishReceipt confirms a draft went live on the platform.
type PublishReceipt struct {
	ContentID   string    `json:"content_id"`
	PublishedAt time.Time `json:"published_at"`
}

// ComplianceVerdict is the policy gate result for a draft. Rejected drafts
// never reach publish.
type ComplianceVerdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Generator produces content variant drafts for a selected archetype.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]ContentDraft, error)
}

// Publisher pushes drafts live and pulls their raw engagement metrics back.
type Publisher interface {
	Publish(ctx context.Context, draft ContentDraft) (*PublishReceipt, error)
	PullMetrics(ctx context.Context, contentID string) (map[string]float64, error)
}

// ComplianceChecker renders policy verdicts on drafts before publish.
type ComplianceChecker interface {
	Verdict(ctx context.Context, draft ContentDraft) (*ComplianceVerdict, error)
}
