package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Duration accepts "30m"/"1h" syntax in YAML job files.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Job represents a scheduled job configuration
type Job struct {
	Name        string    `yaml:"name"`
	Every       Duration  `yaml:"every"` // interval, e.g. "30m"
	Type        string    `yaml:"type"`  // "cycle.run", "shadow.checkpoint", "recalibrate.daily", "recalibrate.weekly"
	Description string    `yaml:"description"`
	Enabled     bool      `yaml:"enabled"`
	Config      JobConfig `yaml:"config"`
}

// JobConfig holds job-specific configuration
type JobConfig struct {
	Niche      string `yaml:"niche"`      // content niche the job targets
	Checkpoint string `yaml:"checkpoint"` // "30m", "60m", "3h" for shadow jobs
	InputPath  string `yaml:"input_path"` // json drop-file with external cycle data
	DryRun     bool   `yaml:"dry_run"`
}

// Config holds the main scheduler configuration
type Config struct {
	Jobs   []Job        `yaml:"jobs"`
	Global GlobalConfig `yaml:"global"`
}

// GlobalConfig holds global scheduler settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	Timezone string `yaml:"timezone"`
}

// Status represents scheduler status
type Status struct {
	Running      bool          `json:"running"`
	EnabledJobs  int           `json:"enabled_jobs"`
	DisabledJobs int           `json:"disabled_jobs"`
	LastRun      time.Time     `json:"last_run"`
	Uptime       time.Duration `json:"uptime"`
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Handler executes one job type. The scheduler owns timing; handlers own
// the work.
type Handler func(ctx context.Context, job Job) error

// Scheduler manages interval-scheduled jobs. Job types map to registered
// handlers; unknown types fail their runs rather than being silently skipped.
type Scheduler struct {
	config    Config
	handlers  map[string]Handler
	mu        sync.Mutex
	startTime time.Time
	lastRun   time.Time
	running   bool
}

// NewScheduler creates a scheduler from a YAML job file.
func NewScheduler(configPath string) (*Scheduler, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewSchedulerFromConfig(config), nil
}

// NewSchedulerFromConfig creates a scheduler from an in-memory configuration.
func NewSchedulerFromConfig(config Config) *Scheduler {
	return &Scheduler{
		config:   config,
		handlers: make(map[string]Handler),
	}
}

// loadConfig loads scheduler configuration from YAML file
func loadConfig(configPath string) (Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Global.LogLevel == "" {
		config.Global.LogLevel = "info"
	}
	if config.Global.Timezone == "" {
		config.Global.Timezone = "UTC"
	}

	for i, job := range config.Jobs {
		if job.Enabled && job.Every <= 0 {
			return config, fmt.Errorf("job %q: interval must be positive", config.Jobs[i].Name)
		}
	}

	return config, nil
}

// RegisterHandler installs the executor for a job type.
func (s *Scheduler) RegisterHandler(jobType string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

// ListJobs returns all configured jobs
func (s *Scheduler) ListJobs() []Job {
	return s.config.Jobs
}

// GetStatus returns current scheduler status
func (s *Scheduler) GetStatus() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	enabled, disabled := 0, 0
	for _, job := range s.config.Jobs {
		if job.Enabled {
			enabled++
		} else {
			disabled++
		}
	}

	var uptime time.Duration
	if s.running {
		uptime = time.Since(s.startTime)
	}

	return &Status{
		Running:      s.running,
		EnabledJobs:  enabled,
		DisabledJobs: disabled,
		LastRun:      s.lastRun,
		Uptime:       uptime,
	}
}

// Start runs the scheduler loop until the context is cancelled. Each enabled
// job ticks on its own interval; a slow run delays only its own job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.Info().Int("jobs", len(s.config.Jobs)).Msg("scheduler starting")

	var wg sync.WaitGroup
	for _, job := range s.config.Jobs {
		if !job.Enabled {
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runJobLoop(ctx, job)
		}(job)
	}

	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) runJobLoop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Every.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := s.execute(ctx, job)
			if !result.Success {
				log.Warn().Str("job", job.Name).Str("error", result.Error).Msg("scheduled job failed")
			}
		}
	}
}

// RunJob executes a specific job immediately, outside its schedule.
func (s *Scheduler) RunJob(ctx context.Context, jobName string) (*JobResult, error) {
	for _, job := range s.config.Jobs {
		if job.Name == jobName {
			result := s.execute(ctx, job)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("job not found: %s", jobName)
}

func (s *Scheduler) execute(ctx context.Context, job Job) JobResult {
	start := time.Now()
	result := JobResult{JobName: job.Name, StartTime: start, Success: true}

	s.mu.Lock()
	handler, ok := s.handlers[job.Type]
	s.lastRun = start
	s.mu.Unlock()

	log.Info().Str("job", job.Name).Str("type", job.Type).Msg("executing job")

	if !ok {
		result.Success = false
		result.Error = fmt.Sprintf("no handler registered for job type %q", job.Type)
	} else if err := handler(ctx, job); err != nil {
		result.Success = false
		result.Error = err.Error()
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	return result
}
