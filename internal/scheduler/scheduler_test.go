package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: shadow-60m
    every: 1h
    type: shadow.checkpoint
    enabled: true
    config:
      checkpoint: "60m"
      niche: fitness
  - name: disabled-job
    type: cycle.run
    enabled: false
`), 0o644))

	s, err := NewScheduler(path)
	require.NoError(t, err)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, Duration(time.Hour), jobs[0].Every)
	assert.Equal(t, "60m", jobs[0].Config.Checkpoint)

	status := s.GetStatus()
	assert.Equal(t, 1, status.EnabledJobs)
	assert.Equal(t, 1, status.DisabledJobs)
	assert.False(t, status.Running)
}

func TestLoadConfig_RejectsEnabledJobWithoutInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: broken
    type: cycle.run
    enabled: true
`), 0o644))

	_, err := NewScheduler(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must be positive")
}

func TestRunJob_DispatchesToHandler(t *testing.T) {
	s := NewSchedulerFromConfig(Config{Jobs: []Job{
		{Name: "shadow-30m", Every: Duration(30 * time.Minute), Type: "shadow.checkpoint", Enabled: true,
			Config: JobConfig{Checkpoint: "30m"}},
	}})

	var gotCheckpoint string
	s.RegisterHandler("shadow.checkpoint", func(_ context.Context, job Job) error {
		gotCheckpoint = job.Config.Checkpoint
		return nil
	})

	result, err := s.RunJob(context.Background(), "shadow-30m")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "30m", gotCheckpoint)
}

func TestRunJob_UnknownJobAndMissingHandler(t *testing.T) {
	s := NewSchedulerFromConfig(Config{Jobs: []Job{
		{Name: "orphan", Every: Duration(time.Minute), Type: "never.registered", Enabled: true},
	}})

	_, err := s.RunJob(context.Background(), "nope")
	require.Error(t, err)

	result, err := s.RunJob(context.Background(), "orphan")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no handler registered")
}

func TestRunJob_HandlerErrorReported(t *testing.T) {
	s := NewSchedulerFromConfig(Config{Jobs: []Job{
		{Name: "cycle", Every: Duration(time.Minute), Type: "cycle.run", Enabled: true},
	}})
	s.RegisterHandler("cycle.run", func(context.Context, Job) error {
		return errors.New("downstream unavailable")
	})

	result, err := s.RunJob(context.Background(), "cycle")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "downstream unavailable", result.Error)
}

func TestStart_TicksEnabledJobsUntilCancelled(t *testing.T) {
	s := NewSchedulerFromConfig(Config{Jobs: []Job{
		{Name: "fast", Every: Duration(10 * time.Millisecond), Type: "cycle.run", Enabled: true},
		{Name: "off", Every: Duration(10 * time.Millisecond), Type: "cycle.run", Enabled: false},
	}})

	var runs int64
	s.RegisterHandler("cycle.run", func(context.Context, Job) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := s.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(2))
	assert.False(t, s.GetStatus().Running)
}
