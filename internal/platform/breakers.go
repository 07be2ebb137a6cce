package platform

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerConfig tunes one downstream circuit breaker.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ErrorRateThreshold  float64 // percent, evaluated once 10+ requests seen
	ConsecutiveFailures uint32
}

// BreakerStatus is a point-in-time view of one breaker for ops endpoints.
type BreakerStatus struct {
	Name      string           `json:"name"`
	State     string           `json:"state"`
	Counts    gobreaker.Counts `json:"counts"`
	ErrorRate float64          `json:"error_rate"`
	NextReset time.Time        `json:"next_reset,omitempty"`
}

// BreakerManager wraps calls to the generator, publisher, and compliance
// services so a flapping downstream cannot stall the whole cycle.
type BreakerManager struct {
	breakers map[string]*gobreaker.CircuitBreaker
	configs  map[string]BreakerConfig
	logger   zerolog.Logger
	mutex    sync.RWMutex
}

// NewBreakerManager creates a manager with no registered breakers.
func NewBreakerManager(logger zerolog.Logger) *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]BreakerConfig),
		logger:   logger.With().Str("component", "breakers").Logger(),
	}
}

// Register installs a breaker for the named downstream service.
func (bm *BreakerManager) Register(name string, config BreakerConfig) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.configs[name] = config

	settings := gobreaker.Settings{
		Name:          config.Name,
		MaxRequests:   config.MaxRequests,
		Interval:      config.Interval,
		Timeout:       config.Timeout,
		ReadyToTrip:   tripCondition(config),
		OnStateChange: bm.stateChangeHandler(name),
	}

	bm.breakers[name] = gobreaker.NewCircuitBreaker(settings)
}

// Execute runs fn through the named breaker.
func (bm *BreakerManager) Execute(name string, fn func() (interface{}, error)) (interface{}, error) {
	bm.mutex.RLock()
	breaker, exists := bm.breakers[name]
	bm.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("circuit breaker not registered: %s", name)
	}

	return breaker.Execute(fn)
}

// Status returns the current state of the named breaker, or nil if unknown.
func (bm *BreakerManager) Status(name string) *BreakerStatus {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	breaker, exists := bm.breakers[name]
	if !exists {
		return nil
	}

	config := bm.configs[name]
	counts := breaker.Counts()

	var errorRate float64
	if counts.Requests > 0 {
		errorRate = float64(counts.TotalFailures) / float64(counts.Requests) * 100
	}

	var nextReset time.Time
	if breaker.State() == gobreaker.StateOpen {
		nextReset = time.Now().Add(config.Timeout)
	}

	return &BreakerStatus{
		Name:      config.Name,
		State:     breaker.State().String(),
		Counts:    counts,
		ErrorRate: errorRate,
		NextReset: nextReset,
	}
}

// StatusAll returns statuses for every registered breaker, keyed by name.
func (bm *BreakerManager) StatusAll() map[string]*BreakerStatus {
	bm.mutex.RLock()
	names := make([]string, 0, len(bm.breakers))
	for name := range bm.breakers {
		names = append(names, name)
	}
	bm.mutex.RUnlock()

	out := make(map[string]*BreakerStatus, len(names))
	for _, name := range names {
		out[name] = bm.Status(name)
	}
	return out
}

func tripCondition(config BreakerConfig) func(counts gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests >= 10 {
			errorRate := float64(counts.TotalFailures) / float64(counts.Requests) * 100
			if errorRate >= config.ErrorRateThreshold {
				return true
			}
		}

		return counts.ConsecutiveFailures >= config.ConsecutiveFailures
	}
}

func (bm *BreakerManager) stateChangeHandler(name string) func(string, gobreaker.State, gobreaker.State) {
	return func(_ string, from, to gobreaker.State) {
		bm.logger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state change")
	}
}

// DefaultBreakerConfigs returns per-service breaker tuning. The publisher is
// the most failure-prone downstream, so it trips earliest.
func DefaultBreakerConfigs() map[string]BreakerConfig {
	return map[string]BreakerConfig{
		"generator": {
			Name:                "Generator",
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ErrorRateThreshold:  30.0,
			ConsecutiveFailures: 3,
		},
		"publisher": {
			Name:                "Publisher",
			MaxRequests:         2,
			Interval:            60 * time.Second,
			Timeout:             45 * time.Second,
			ErrorRateThreshold:  25.0,
			ConsecutiveFailures: 2,
		},
		"compliance": {
			Name:                "Compliance",
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ErrorRateThreshold:  30.0,
			ConsecutiveFailures: 3,
		},
	}
}
