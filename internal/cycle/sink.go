package cycle

import (
	"context"
	"strings"

	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/learn"
	"github.com/reelpilot/strategycore/internal/persistence"
	"github.com/reelpilot/strategycore/internal/telemetry"
)

// RepoAuditSink adapts the audit repository to the updater's sink interface.
type RepoAuditSink struct {
	Repo persistence.AuditRepo
}

func (s RepoAuditSink) Record(ctx context.Context, update domain.StrategyUpdate) error {
	return s.Repo.Append(ctx, update)
}

// NopAuditSink discards audit entries; used when persistence is disabled.
type NopAuditSink struct{}

func (NopAuditSink) Record(context.Context, domain.StrategyUpdate) error { return nil }

// MeteredAuditSink counts applied and suppressed updates before delegating to
// the underlying sink.
type MeteredAuditSink struct {
	Next    learn.AuditSink
	Metrics *telemetry.MetricsRegistry
}

func (s MeteredAuditSink) Record(ctx context.Context, update domain.StrategyUpdate) error {
	if s.Metrics != nil {
		if update.Suppressed {
			s.Metrics.RecordUpdateSuppressed(update.Field, suppressionReason(update))
		} else {
			s.Metrics.RecordUpdateApplied(update.Field)
		}
	}
	if s.Next == nil {
		return nil
	}
	return s.Next.Record(ctx, update)
}

// suppressionReason reduces the free-text justification to a bounded label.
func suppressionReason(update domain.StrategyUpdate) string {
	switch {
	case strings.Contains(update.Justification, domain.ErrAnomalyFreeze.Error()):
		return "anomaly_freeze"
	case strings.Contains(update.Justification, domain.ErrDriftCapExceeded.Error()):
		return "drift_cap"
	default:
		return "other"
	}
}
