package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/features"
	"github.com/reelpilot/strategycore/internal/learn"
	"github.com/reelpilot/strategycore/internal/mode"
	"github.com/reelpilot/strategycore/internal/monetization"
	"github.com/reelpilot/strategycore/internal/platform"
	"github.com/reelpilot/strategycore/internal/score"
	"github.com/reelpilot/strategycore/internal/shadow"
)

// AppConfig is the full externally supplied configuration surface, validated
// at load. Thresholds live here so operators can retune without redeploying
// logic.
type AppConfig struct {
	Features     features.Config        `yaml:"features"`
	Thresholds   score.Thresholds       `yaml:"score_thresholds"`
	Recalibrator score.RecalibratorConfig `yaml:"recalibrator"`
	Mode         mode.Thresholds        `yaml:"mode_thresholds"`
	Coefficient  mode.CoefficientParams `yaml:"exploration_coefficient"`
	Shadow       shadow.Config          `yaml:"shadow"`
	Learn        learn.Config           `yaml:"learn"`
	Monetization monetization.Config    `yaml:"monetization"`
	Strategy     domain.StrategyConfig  `yaml:"strategy"`

	Platform platform.HTTPClientConfig `yaml:"platform"`
	Gateway  platform.GatewayConfig    `yaml:"gateway"`

	// Archetypes is the initial bandit arm roster; persisted arm stats merge
	// over these at boot.
	Archetypes []string `yaml:"archetypes"`

	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	OpsAddr     string `yaml:"ops_addr"`
}

// Default returns a complete runnable configuration with the documented
// constants.
func Default() AppConfig {
	return AppConfig{
		Features:     features.DefaultConfig(),
		Thresholds:   score.DefaultThresholds(),
		Recalibrator: score.DefaultRecalibratorConfig(),
		Mode:         mode.DefaultThresholds(),
		Coefficient:  mode.DefaultCoefficientParams(),
		Shadow:       shadow.DefaultConfig(),
		Learn:        learn.DefaultConfig(),
		Monetization: monetization.DefaultConfig(),
		Strategy:     DefaultStrategy(),
		Platform:     platform.DefaultHTTPClientConfig(),
		Gateway:      platform.DefaultGatewayConfig(),
		Archetypes: []string{
			"problem_solution",
			"contrarian_take",
			"case_study_breakdown",
			"challenge_format",
		},
		OpsAddr: "127.0.0.1:8090",
	}
}

// DefaultStrategy is the initial versioned strategy state.
func DefaultStrategy() domain.StrategyConfig {
	return domain.StrategyConfig{
		Version: 1,
		RewardWeights: map[string]float64{
			"views":      0.10,
			"likes":      0.15,
			"comments":   0.20,
			"shares":     0.25,
			"saves":      0.25,
			"watch_time": 0.05,
		},
		Objective:        domain.ObjectiveWeights{Growth: 0.65, Monetization: 0.35},
		EpsilonMin:       0.05,
		EpsilonMax:       0.50,
		Epsilon:          0.20,
		MaxDriftPerCycle: 0.10,
		Calibration: domain.CalibrationParams{
			Baselines: map[string]float64{
				domain.FeatureNovelty:            1.0,
				domain.FeaturePatternStrength:    1.0,
				domain.FeatureEmotionalPull:      1.0,
				domain.FeaturePlatformBias:       1.0,
				domain.FeatureCreatorConsistency: 1.0,
			},
		},
	}
}

// Load reads and validates a yaml config file. A snapshot failing validation
// aborts the run rather than operating on unknown configuration.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the whole configuration surface.
func (c AppConfig) Validate() error {
	if err := c.Features.Validate(); err != nil {
		return err
	}
	if err := c.Thresholds.Valid(); err != nil {
		return err
	}
	return ValidateStrategy(c.Strategy)
}

// ValidateStrategy checks a strategy config snapshot against its schema:
// epsilon bounds ordered, epsilon inside them, every weight in [0,1], and
// both weight vectors summing to 1.
func ValidateStrategy(s domain.StrategyConfig) error {
	if s.EpsilonMin > s.EpsilonMax {
		return &domain.ValidationError{Field: "epsilon_min", Reason: fmt.Sprintf("%.3f above epsilon_max %.3f", s.EpsilonMin, s.EpsilonMax)}
	}
	if s.Epsilon < s.EpsilonMin || s.Epsilon > s.EpsilonMax {
		return &domain.ValidationError{Field: "epsilon", Reason: fmt.Sprintf("%.3f outside [%.3f, %.3f]", s.Epsilon, s.EpsilonMin, s.EpsilonMax)}
	}
	if len(s.RewardWeights) == 0 {
		return &domain.ValidationError{Field: "reward_weights", Reason: "empty"}
	}

	sum := 0.0
	for metric, w := range s.RewardWeights {
		if w < 0 || w > 1 {
			return &domain.ValidationError{Field: "reward_weights." + metric, Reason: fmt.Sprintf("%.3f outside [0,1]", w)}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.001 {
		return &domain.ValidationError{Field: "reward_weights", Reason: fmt.Sprintf("sum %.6f, must equal 1.000", sum)}
	}

	objectiveSum := s.Objective.Growth + s.Objective.Monetization
	if math.Abs(objectiveSum-1.0) > 0.001 {
		return &domain.ValidationError{Field: "objective", Reason: fmt.Sprintf("sum %.6f, must equal 1.000", objectiveSum)}
	}
	if s.MaxDriftPerCycle < 0 {
		return &domain.ValidationError{Field: "max_drift_per_cycle", Reason: "negative"}
	}
	return nil
}
