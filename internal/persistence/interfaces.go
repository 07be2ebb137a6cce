package persistence

import (
	"context"
	"time"

	"github.com/reelpilot/strategycore/internal/domain"
)

// TimeRange represents a time window for history queries
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ModeSnapshot represents a persisted mode-controller state tied to a cycle
type ModeSnapshot struct {
	State     domain.ModeState `json:"state" db:"-"`
	CycleID   string           `json:"cycle_id" db:"cycle_id"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// ArchetypeRepo provides bandit arm persistence across restarts
type ArchetypeRepo interface {
	// Upsert inserts or updates an archetype's pull and reward statistics
	Upsert(ctx context.Context, arm domain.Archetype) error

	// UpsertBatch persists a full arm snapshot atomically
	UpsertBatch(ctx context.Context, arms []domain.Archetype) error

	// Get retrieves a single archetype by id
	Get(ctx context.Context, id string) (*domain.Archetype, error)

	// List returns all known archetypes ordered by id
	List(ctx context.Context) ([]domain.Archetype, error)
}

// ModeRepo provides mode-controller state persistence
type ModeRepo interface {
	// Save records the mode state produced by a cycle
	Save(ctx context.Context, snap ModeSnapshot) error

	// Latest returns the most recent mode snapshot
	Latest(ctx context.Context) (*ModeSnapshot, error)

	// ListRange retrieves mode history within a time window
	ListRange(ctx context.Context, tr TimeRange) ([]ModeSnapshot, error)
}

// ConfigRepo provides versioned strategy configuration persistence
type ConfigRepo interface {
	// SaveVersion stores a strategy config under its version number
	SaveVersion(ctx context.Context, cfg domain.StrategyConfig) error

	// Latest returns the highest-version strategy config
	Latest(ctx context.Context) (*domain.StrategyConfig, error)

	// GetVersion retrieves a specific historical config version
	GetVersion(ctx context.Context, version int64) (*domain.StrategyConfig, error)
}

// AuditRepo provides append-only storage for strategy update entries
type AuditRepo interface {
	// Append records a single applied or suppressed update
	Append(ctx context.Context, update domain.StrategyUpdate) error

	// ListByCycle retrieves all updates recorded for a cycle
	ListByCycle(ctx context.Context, cycleID string) ([]domain.StrategyUpdate, error)

	// ListRange retrieves updates within a time window
	ListRange(ctx context.Context, tr TimeRange) ([]domain.StrategyUpdate, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Archetypes ArchetypeRepo
	Modes      ModeRepo
	Configs    ConfigRepo
	Audit      AuditRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to the database
	Ping(ctx context.Context) error
}
