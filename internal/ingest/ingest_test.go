package ingest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var observedAt = time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

func validSnapshot(postID string) Snapshot {
	return Snapshot{
		PostID:      postID,
		ArchetypeID: "teardown",
		Niche:       "ai_tools",
		Window:      "24h",
		ObservedAt:  observedAt,
		Metrics: map[string]float64{
			"impressions": 12000,
			"plays":       10000,
			"likes":       800,
			"comments":    120,
			"shares":      200,
			"saves":       300,
		},
	}
}

func TestIngestBatch_DerivedRates(t *testing.T) {
	s := NewService(zerolog.Nop())

	result := s.IngestBatch([]Snapshot{validSnapshot("p1")})
	if result.Succeeded != 1 {
		t.Fatalf("expected 1 success, errors: %+v", result.Errors)
	}

	obs := result.Observations[0]
	if obs.Metrics["share_rate"] != 0.02 {
		t.Errorf("expected share_rate 0.02, got %f", obs.Metrics["share_rate"])
	}
	if obs.Metrics["saves_rate"] != 0.03 {
		t.Errorf("expected saves_rate 0.03, got %f", obs.Metrics["saves_rate"])
	}
	if !obs.TimestampBucket.Equal(observedAt.Truncate(time.Hour)) {
		t.Errorf("expected hourly bucket, got %v", obs.TimestampBucket)
	}
}

func TestIngestBatch_ZeroPlaysKeepsRatesNull(t *testing.T) {
	s := NewService(zerolog.Nop())

	snap := validSnapshot("p1")
	snap.Metrics["plays"] = 0

	result := s.IngestBatch([]Snapshot{snap})
	if result.Succeeded != 1 {
		t.Fatalf("zero plays must not reject the row, errors: %+v", result.Errors)
	}

	obs := result.Observations[0]
	if !obs.Missing["share_rate"] {
		t.Error("zero-play share_rate must stay null, not zero")
	}
	if _, present := obs.Metrics["share_rate"]; present {
		t.Error("null rate must not be materialized in metrics")
	}
}

func TestIngestBatch_MissingOptionalMetricStaysNull(t *testing.T) {
	s := NewService(zerolog.Nop())

	snap := validSnapshot("p1")
	delete(snap.Metrics, "saves")

	result := s.IngestBatch([]Snapshot{snap})
	if result.Succeeded != 1 {
		t.Fatalf("optional metric absence must not reject, errors: %+v", result.Errors)
	}
	obs := result.Observations[0]
	if !obs.Missing["saves"] || !obs.Missing["saves_rate"] {
		t.Error("absent saves must be null-marked")
	}
}

func TestIngestBatch_PerRowErrors(t *testing.T) {
	s := NewService(zerolog.Nop())

	bad := validSnapshot("p2")
	delete(bad.Metrics, "plays")

	negative := validSnapshot("p3")
	negative.Metrics["likes"] = -5

	result := s.IngestBatch([]Snapshot{validSnapshot("p1"), bad, negative})
	if result.Succeeded != 1 {
		t.Errorf("expected 1 success, got %d", result.Succeeded)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %+v", result.Errors)
	}
	if result.Errors[0].Row != 2 || result.Errors[1].Row != 3 {
		t.Errorf("row numbers wrong: %+v", result.Errors)
	}
}
