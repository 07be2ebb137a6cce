package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelpilot/strategycore/internal/bandit"
	"github.com/reelpilot/strategycore/internal/config"
	"github.com/reelpilot/strategycore/internal/cycle"
	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/features"
	"github.com/reelpilot/strategycore/internal/infrastructure/db"
	"github.com/reelpilot/strategycore/internal/ingest"
	"github.com/reelpilot/strategycore/internal/learn"
	"github.com/reelpilot/strategycore/internal/mode"
	"github.com/reelpilot/strategycore/internal/monetization"
	"github.com/reelpilot/strategycore/internal/persistence"
	"github.com/reelpilot/strategycore/internal/platform"
	"github.com/reelpilot/strategycore/internal/score"
	"github.com/reelpilot/strategycore/internal/shadow"
	"github.com/reelpilot/strategycore/internal/telemetry"
)

// app holds the wired runtime: every long-lived component one command needs.
type app struct {
	cfg     config.AppConfig
	store   *config.Store
	coord   *cycle.Coordinator
	gateway *platform.Gateway
	metrics *telemetry.MetricsRegistry
	manager *db.Manager
	repos   *persistence.Repository
}

// buildApp wires the full component graph from configuration. Persistence and
// the platform gateway are optional: without a DSN the system runs in-memory,
// without collaborator endpoints the generation stage is skipped.
func buildApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	logger := log.Logger
	metrics := telemetry.NewMetricsRegistry()

	dbCfg := db.DefaultConfig()
	if cfg.PostgresDSN != "" {
		dbCfg.DSN = cfg.PostgresDSN
		dbCfg.Enabled = true
	}
	manager, err := db.NewManager(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("database setup: %w", err)
	}

	var repos *persistence.Repository
	if manager.IsEnabled() {
		repos = manager.Repository()
	}

	strategy, err := restoreStrategy(ctx, cfg, repos)
	if err != nil {
		manager.Close()
		return nil, err
	}
	store, err := config.NewStore(strategy)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("strategy store: %w", err)
	}

	cacheType := "memory"
	if cfg.RedisAddr != "" {
		cacheType = "redis"
	}
	cache := features.MeteredCache{
		Next:    features.NewAutoCache(cfg.RedisAddr),
		Type:    cacheType,
		Metrics: metrics,
	}
	aggregator, err := features.NewAggregator(cfg.Features, cache, logger)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("feature aggregator: %w", err)
	}

	engine, err := score.NewEngine(cfg.Thresholds)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("score engine: %w", err)
	}

	optimizer := bandit.New(rand.New(rand.NewSource(time.Now().UnixNano())))
	for _, id := range cfg.Archetypes {
		optimizer.AddArm(id)
	}
	if repos != nil {
		arms, err := repos.Archetypes.List(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("archetype restore failed, starting with fresh arms")
		} else if len(arms) > 0 {
			optimizer.Import(bandit.State{Arms: arms})
			logger.Info().Int("arms", len(arms)).Msg("archetype stats restored")
		}
	}

	var base learn.AuditSink = cycle.NopAuditSink{}
	if repos != nil {
		base = cycle.RepoAuditSink{Repo: repos.Audit}
	}
	sink := cycle.MeteredAuditSink{Next: base, Metrics: metrics}

	var gateway *platform.Gateway
	if cfg.Platform.Configured() {
		gateway = platform.NewGateway(
			platform.NewHTTPGenerator(cfg.Platform.GeneratorURL, cfg.Platform.Timeout, logger),
			platform.NewHTTPPublisher(cfg.Platform.PublisherURL, cfg.Platform.Timeout, logger),
			platform.NewHTTPCompliance(cfg.Platform.ComplianceURL, cfg.Platform.Timeout),
			cfg.Gateway,
			logger,
		)
	} else {
		logger.Warn().Msg("platform endpoints not configured, generation stage disabled")
	}

	coord, err := cycle.NewCoordinator(cycle.Deps{
		Store:       store,
		Flags:       cycle.DefaultStageFlags(),
		Ingester:    ingest.NewService(logger),
		Aggregator:  aggregator,
		Engine:      engine,
		Optimizer:   optimizer,
		Evaluator:   shadow.NewEvaluator(cfg.Shadow),
		Controller:  mode.NewController(cfg.Mode),
		Coefficient: cfg.Coefficient,
		Updater:     learn.NewUpdater(cfg.Learn, sink, logger),
		Analyst:     monetization.NewAnalyst(cfg.Monetization),
		Gateway:     gateway,
		Repos:       repos,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	if repos != nil {
		if snap, err := repos.Modes.Latest(ctx); err != nil {
			logger.Warn().Err(err).Msg("mode restore failed, starting in exploit")
		} else if snap != nil {
			coord.RestoreModeState(snap.State)
			logger.Info().Str("mode", snap.State.Current.String()).Msg("mode state restored")
		}
	}

	return &app{
		cfg:     cfg,
		store:   store,
		coord:   coord,
		gateway: gateway,
		metrics: metrics,
		manager: manager,
		repos:   repos,
	}, nil
}

// restoreStrategy prefers the newest persisted strategy config over the yaml
// one; a persisted snapshot failing validation is fatal rather than silently
// replaced.
func restoreStrategy(ctx context.Context, cfg config.AppConfig, repos *persistence.Repository) (domain.StrategyConfig, error) {
	strategy := cfg.Strategy
	if repos == nil {
		return strategy, nil
	}

	persisted, err := repos.Configs.Latest(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("strategy config restore failed, using configured strategy")
		return strategy, nil
	}
	if persisted == nil || persisted.Version <= strategy.Version {
		return strategy, nil
	}
	if err := config.ValidateStrategy(*persisted); err != nil {
		return strategy, fmt.Errorf("persisted strategy config version %d invalid: %w", persisted.Version, err)
	}
	log.Info().Int64("version", persisted.Version).Msg("strategy config restored")
	return *persisted, nil
}

func (a *app) Close() {
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			log.Warn().Err(err).Msg("database close failed")
		}
	}
}
