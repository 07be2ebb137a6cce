package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/persistence"
)

// auditRepo implements AuditRepo for PostgreSQL. The table is append-only;
// entries are never updated or deleted.
type auditRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAuditRepo creates a new PostgreSQL strategy update audit repository
func NewAuditRepo(db *sqlx.DB, timeout time.Duration) persistence.AuditRepo {
	return &auditRepo{
		db:      db,
		timeout: timeout,
	}
}

// Append records a single applied or suppressed update
func (r *auditRepo) Append(ctx context.Context, update domain.StrategyUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if update.ID == "" {
		return &domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if update.Field == "" {
		return &domain.ValidationError{Field: "field", Reason: "must not be empty"}
	}

	query := `
		INSERT INTO strategy_updates
		(id, cycle_id, config_version, field, prior, new_value, justification, suppressed, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		update.ID, update.CycleID, update.ConfigVersion, update.Field,
		update.Prior, update.New, update.Justification, update.Suppressed,
		update.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append strategy update %s: %w", update.ID, err)
	}

	return nil
}

// ListByCycle retrieves all updates recorded for a cycle
func (r *auditRepo) ListByCycle(ctx context.Context, cycleID string) ([]domain.StrategyUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, cycle_id, config_version, field, prior, new_value, justification, suppressed, ts
		FROM strategy_updates
		WHERE cycle_id = $1
		ORDER BY ts ASC, id ASC`

	var updates []domain.StrategyUpdate
	if err := r.db.SelectContext(ctx, &updates, query, cycleID); err != nil {
		return nil, fmt.Errorf("failed to list strategy updates for cycle %s: %w", cycleID, err)
	}

	return updates, nil
}

// ListRange retrieves updates within a time window
func (r *auditRepo) ListRange(ctx context.Context, tr persistence.TimeRange) ([]domain.StrategyUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, cycle_id, config_version, field, prior, new_value, justification, suppressed, ts
		FROM strategy_updates
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC, id ASC`

	var updates []domain.StrategyUpdate
	if err := r.db.SelectContext(ctx, &updates, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list strategy updates in range: %w", err)
	}

	return updates, nil
}
