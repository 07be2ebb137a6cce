package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/persistence"
)

// configRepo implements ConfigRepo for PostgreSQL. Full configs are stored
// as JSON per version; the version column is the only relational key needed.
type configRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewConfigRepo creates a new PostgreSQL strategy config repository
func NewConfigRepo(db *sqlx.DB, timeout time.Duration) persistence.ConfigRepo {
	return &configRepo{
		db:      db,
		timeout: timeout,
	}
}

// SaveVersion stores a strategy config under its version number
func (r *configRepo) SaveVersion(ctx context.Context, cfg domain.StrategyConfig) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if cfg.Version <= 0 {
		return &domain.ValidationError{Field: "version", Reason: "must be positive"}
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy config: %w", err)
	}

	// Versions are immutable once written; a conflicting insert is a bug
	// upstream, so surface it instead of overwriting.
	query := `
		INSERT INTO strategy_configs (version, config, created_at)
		VALUES ($1, $2, NOW())`

	if _, err := r.db.ExecContext(ctx, query, cfg.Version, payload); err != nil {
		return fmt.Errorf("failed to save strategy config version %d: %w", cfg.Version, err)
	}

	return nil
}

// Latest returns the highest-version strategy config
func (r *configRepo) Latest(ctx context.Context) (*domain.StrategyConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT config
		FROM strategy_configs
		ORDER BY version DESC
		LIMIT 1`

	return r.scanConfig(r.db.QueryRowxContext(ctx, query))
}

// GetVersion retrieves a specific historical config version
func (r *configRepo) GetVersion(ctx context.Context, version int64) (*domain.StrategyConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT config
		FROM strategy_configs
		WHERE version = $1`

	return r.scanConfig(r.db.QueryRowxContext(ctx, query, version))
}

func (r *configRepo) scanConfig(row *sqlx.Row) (*domain.StrategyConfig, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read strategy config: %w", err)
	}

	var cfg domain.StrategyConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal strategy config: %w", err)
	}

	return &cfg, nil
}
