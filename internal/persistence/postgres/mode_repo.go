package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/persistence"
)

// modeRepo implements ModeRepo for PostgreSQL
type modeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewModeRepo creates a new PostgreSQL mode repository
func NewModeRepo(db *sqlx.DB, timeout time.Duration) persistence.ModeRepo {
	return &modeRepo{
		db:      db,
		timeout: timeout,
	}
}

// Save records the mode state produced by a cycle
func (r *modeRepo) Save(ctx context.Context, snap persistence.ModeSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if snap.CycleID == "" {
		return &domain.ValidationError{Field: "cycle_id", Reason: "must not be empty"}
	}

	query := `
		INSERT INTO mode_snapshots
		(cycle_id, mode, entered_at, last_switch_at, last_chaos_exit_at,
		 consecutive_low_signal, consecutive_wins, mutation_iterations,
		 cooldown_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (cycle_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			entered_at = EXCLUDED.entered_at,
			last_switch_at = EXCLUDED.last_switch_at,
			last_chaos_exit_at = EXCLUDED.last_chaos_exit_at,
			consecutive_low_signal = EXCLUDED.consecutive_low_signal,
			consecutive_wins = EXCLUDED.consecutive_wins,
			mutation_iterations = EXCLUDED.mutation_iterations,
			cooldown_until = EXCLUDED.cooldown_until,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		snap.CycleID, snap.State.Current.String(), snap.State.EnteredAt,
		snap.State.LastSwitchAt, snap.State.LastChaosExitAt,
		snap.State.ConsecutiveLowSignal, snap.State.ConsecutiveWins,
		snap.State.MutationIterations, snap.State.CooldownUntil, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save mode snapshot for cycle %s: %w", snap.CycleID, err)
	}

	return nil
}

// Latest returns the most recent mode snapshot
func (r *modeRepo) Latest(ctx context.Context) (*persistence.ModeSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT cycle_id, mode, entered_at, last_switch_at, last_chaos_exit_at,
		       consecutive_low_signal, consecutive_wins, mutation_iterations,
		       cooldown_until, updated_at
		FROM mode_snapshots
		ORDER BY updated_at DESC
		LIMIT 1`

	row := r.db.QueryRowxContext(ctx, query)
	snap, err := scanModeSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest mode snapshot: %w", err)
	}

	return snap, nil
}

// ListRange retrieves mode history within a time window
func (r *modeRepo) ListRange(ctx context.Context, tr persistence.TimeRange) ([]persistence.ModeSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT cycle_id, mode, entered_at, last_switch_at, last_chaos_exit_at,
		       consecutive_low_signal, consecutive_wins, mutation_iterations,
		       cooldown_until, updated_at
		FROM mode_snapshots
		WHERE updated_at >= $1 AND updated_at <= $2
		ORDER BY updated_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query mode history: %w", err)
	}
	defer rows.Close()

	var snaps []persistence.ModeSnapshot
	for rows.Next() {
		snap, err := scanModeSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mode snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mode snapshots: %w", err)
	}

	return snaps, nil
}

// rowScanner covers both sqlx.Row and sqlx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanModeSnapshot(row rowScanner) (*persistence.ModeSnapshot, error) {
	var snap persistence.ModeSnapshot
	var modeName string

	err := row.Scan(
		&snap.CycleID, &modeName, &snap.State.EnteredAt, &snap.State.LastSwitchAt,
		&snap.State.LastChaosExitAt, &snap.State.ConsecutiveLowSignal,
		&snap.State.ConsecutiveWins, &snap.State.MutationIterations,
		&snap.State.CooldownUntil, &snap.UpdatedAt)
	if err != nil {
		return nil, err
	}

	mode, err := domain.ParseMode(modeName)
	if err != nil {
		return nil, fmt.Errorf("stored mode snapshot is corrupt: %w", err)
	}
	snap.State.Current = mode

	return &snap, nil
}
