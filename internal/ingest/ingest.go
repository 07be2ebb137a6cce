package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelpilot/strategycore/internal/domain"
)

// Snapshot is one raw metric pull from the analytics collaborator.
type Snapshot struct {
	PostID      string             `json:"post_id"`
	ArchetypeID string             `json:"archetype_id"`
	Niche       string             `json:"niche"`
	Window      string             `json:"window"` // "1h", "24h", "7d"
	ObservedAt  time.Time          `json:"observed_at"`
	Metrics     map[string]float64 `json:"metrics"`
}

// requiredFields must be present on every snapshot; all other metrics are
// optional and stay null-marked when absent.
var requiredFields = []string{"impressions", "plays"}

// derivedRateFields are computed from raw counts; zero-play snapshots keep
// them null rather than dividing by zero.
var derivedRateFields = []string{"likes", "comments", "shares", "saves"}

// RowError reports one rejected snapshot without stopping the batch.
type RowError struct {
	Row    int    `json:"row"`
	PostID string `json:"post_id"`
	Err    string `json:"error"`
}

// Result summarizes one ingestion batch.
type Result struct {
	Observations []domain.Observation `json:"observations"`
	Errors       []RowError           `json:"errors"`
	Processed    int                  `json:"processed"`
	Succeeded    int                  `json:"succeeded"`
}

// Service validates and normalizes metric snapshots into observations.
type Service struct {
	logger zerolog.Logger
}

// NewService creates an ingestion service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger}
}

// IngestBatch validates each snapshot independently, collecting per-row
// errors instead of failing the batch. Sparsity is expected: optional
// metrics missing from a snapshot become null markers, never zeros.
func (s *Service) IngestBatch(snapshots []Snapshot) Result {
	result := Result{Processed: len(snapshots)}

	for i, snap := range snapshots {
		obs, err := s.normalize(snap)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, PostID: snap.PostID, Err: err.Error()})
			continue
		}
		result.Observations = append(result.Observations, obs)
		result.Succeeded++
	}

	if len(result.Errors) > 0 {
		s.logger.Warn().Int("failed", len(result.Errors)).Int("processed", result.Processed).Msg("ingestion batch had rejects")
	}
	return result
}

func (s *Service) normalize(snap Snapshot) (domain.Observation, error) {
	if snap.PostID == "" {
		return domain.Observation{}, &domain.ValidationError{Field: "post_id", Reason: "empty"}
	}
	if snap.ArchetypeID == "" {
		return domain.Observation{}, &domain.ValidationError{Field: "archetype_id", Reason: "empty"}
	}
	if snap.Niche == "" {
		return domain.Observation{}, &domain.ValidationError{Field: "niche", Reason: "empty"}
	}
	if snap.ObservedAt.IsZero() {
		return domain.Observation{}, &domain.ValidationError{Field: "observed_at", Reason: "zero timestamp"}
	}
	for _, field := range requiredFields {
		if _, ok := snap.Metrics[field]; !ok {
			return domain.Observation{}, &domain.ValidationError{Field: field, Reason: "missing required metric"}
		}
	}

	metrics := make(map[string]float64, len(snap.Metrics)+len(derivedRateFields))
	missing := make(map[string]bool)
	for k, v := range snap.Metrics {
		if v < 0 {
			return domain.Observation{}, &domain.ValidationError{Field: k, Reason: fmt.Sprintf("negative value %f", v)}
		}
		metrics[k] = v
	}

	plays := metrics["plays"]
	for _, field := range derivedRateFields {
		rateKey := field + "_rate"
		count, ok := metrics[field]
		if !ok {
			missing[field] = true
			missing[rateKey] = true
			continue
		}
		if plays > 0 {
			metrics[rateKey] = count / plays
		} else {
			// Zero-play snapshot: the rate is unknowable, not zero.
			missing[rateKey] = true
		}
	}

	return domain.Observation{
		ID:              uuid.NewString(),
		ContentID:       snap.PostID,
		ArchetypeID:     snap.ArchetypeID,
		Niche:           snap.Niche,
		TimestampBucket: snap.ObservedAt.Truncate(time.Hour),
		Metrics:         metrics,
		Missing:         missing,
	}, nil
}
