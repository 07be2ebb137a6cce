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

// archetypeRepo implements ArchetypeRepo for PostgreSQL
type archetypeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewArchetypeRepo creates a new PostgreSQL archetype repository
func NewArchetypeRepo(db *sqlx.DB, timeout time.Duration) persistence.ArchetypeRepo {
	return &archetypeRepo{
		db:      db,
		timeout: timeout,
	}
}

// Upsert inserts or updates an archetype's pull and reward statistics
func (r *archetypeRepo) Upsert(ctx context.Context, arm domain.Archetype) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if arm.ID == "" {
		return &domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}

	query := `
		INSERT INTO archetypes (id, pulls, total_reward, mean_reward, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			pulls = EXCLUDED.pulls,
			total_reward = EXCLUDED.total_reward,
			mean_reward = EXCLUDED.mean_reward,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, arm.ID, arm.Pulls, arm.TotalReward, arm.MeanReward); err != nil {
		return fmt.Errorf("failed to upsert archetype %s: %w", arm.ID, err)
	}

	return nil
}

// UpsertBatch persists a full arm snapshot atomically
func (r *archetypeRepo) UpsertBatch(ctx context.Context, arms []domain.Archetype) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archetype batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO archetypes (id, pulls, total_reward, mean_reward, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			pulls = EXCLUDED.pulls,
			total_reward = EXCLUDED.total_reward,
			mean_reward = EXCLUDED.mean_reward,
			updated_at = NOW()`

	for _, arm := range arms {
		if arm.ID == "" {
			return &domain.ValidationError{Field: "id", Reason: "must not be empty"}
		}
		if _, err := tx.ExecContext(ctx, query, arm.ID, arm.Pulls, arm.TotalReward, arm.MeanReward); err != nil {
			return fmt.Errorf("failed to upsert archetype %s in batch: %w", arm.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archetype batch: %w", err)
	}

	return nil
}

// Get retrieves a single archetype by id
func (r *archetypeRepo) Get(ctx context.Context, id string) (*domain.Archetype, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, pulls, total_reward, mean_reward
		FROM archetypes
		WHERE id = $1`

	var arm domain.Archetype
	if err := r.db.GetContext(ctx, &arm, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, &domain.NotFoundError{Kind: "archetype", ID: id}
		}
		return nil, fmt.Errorf("failed to get archetype %s: %w", id, err)
	}

	return &arm, nil
}

// List returns all known archetypes ordered by id
func (r *archetypeRepo) List(ctx context.Context) ([]domain.Archetype, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, pulls, total_reward, mean_reward
		FROM archetypes
		ORDER BY id ASC`

	var arms []domain.Archetype
	if err := r.db.SelectContext(ctx, &arms, query); err != nil {
		return nil, fmt.Errorf("failed to list archetypes: %w", err)
	}

	return arms, nil
}
