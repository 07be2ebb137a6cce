package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelpilot/strategycore/internal/cycle"
	"github.com/reelpilot/strategycore/internal/domain"
	"github.com/reelpilot/strategycore/internal/scheduler"
	"github.com/reelpilot/strategycore/internal/score"
	"github.com/reelpilot/strategycore/internal/shadow"
)

// cycleJobHandler runs a full adaptive cycle from the job's drop-file.
func cycleJobHandler(application *app) scheduler.Handler {
	return func(ctx context.Context, job scheduler.Job) error {
		input, err := loadJobInput(job)
		if err != nil {
			return err
		}
		if input.Niche == "" {
			return fmt.Errorf("job %s: no niche configured", job.Name)
		}
		if job.Config.DryRun {
			log.Info().Str("job", job.Name).Str("niche", input.Niche).Msg("dry run, cycle skipped")
			return nil
		}

		out, err := application.coord.RunCycle(ctx, input)
		if err != nil {
			return err
		}
		log.Info().
			Str("job", job.Name).
			Str("cycle_id", out.CycleID).
			Str("selected", out.Selected).
			Int("published", len(out.Published)).
			Msg("scheduled cycle complete")
		return nil
	}
}

// shadowJobHandler runs a cycle pinned to one shadow checkpoint; the drop-file
// carries the variant results collected since publish.
func shadowJobHandler(application *app) scheduler.Handler {
	return func(ctx context.Context, job scheduler.Job) error {
		input, err := loadJobInput(job)
		if err != nil {
			return err
		}
		if input.Niche == "" {
			return fmt.Errorf("job %s: no niche configured", job.Name)
		}

		input.ShadowCheckpoint = shadow.CheckpointPrimary
		if job.Config.Checkpoint != "" {
			input.ShadowCheckpoint = shadow.Checkpoint(job.Config.Checkpoint)
		}
		if len(input.ShadowResults) == 0 {
			log.Info().Str("job", job.Name).Msg("no shadow results in drop-file, checkpoint skipped")
			return nil
		}
		if job.Config.DryRun {
			log.Info().Str("job", job.Name).Msg("dry run, checkpoint skipped")
			return nil
		}

		out, err := application.coord.RunCycle(ctx, input)
		if err != nil {
			return err
		}
		if out.Shadow != nil {
			log.Info().
				Str("job", job.Name).
				Str("checkpoint", out.Shadow.Checkpoint).
				Str("winner", out.Shadow.WinnerID).
				Bool("deferred", out.Shadow.Deferred).
				Msg("shadow checkpoint evaluated")
		}
		return nil
	}
}

// recalibrationInput is the drop-file format for the calibration jobs.
type recalibrationInput struct {
	MeanError float64                   `json:"mean_error"`
	Samples   []score.CalibrationSample `json:"samples"`
}

// dailyRecalibrateHandler applies the bounded daily bias correction to the
// active strategy config.
func dailyRecalibrateHandler(application *app) scheduler.Handler {
	return func(ctx context.Context, job scheduler.Job) error {
		in, ok, err := loadRecalibrationInput(job)
		if err != nil || !ok {
			return err
		}

		rec := score.NewRecalibrator(application.cfg.Recalibrator)
		current := application.store.Snapshot()
		next, err := rec.DailyBiasCorrection(current.Calibration, in.MeanError, time.Now())
		if err != nil {
			if errors.Is(err, domain.ErrAnomalyFreeze) {
				log.Warn().Str("job", job.Name).Msg("calibration frozen, daily correction skipped")
				return nil
			}
			return err
		}
		return applyCalibration(ctx, application, job, current, next)
	}
}

// weeklyRecalibrateHandler runs the gated weekly baseline refit from the
// buffered outcome samples in the drop-file.
func weeklyRecalibrateHandler(application *app) scheduler.Handler {
	return func(ctx context.Context, job scheduler.Job) error {
		in, ok, err := loadRecalibrationInput(job)
		if err != nil || !ok {
			return err
		}

		rec := score.NewRecalibrator(application.cfg.Recalibrator)
		for _, sample := range in.Samples {
			if err := rec.AddSample(sample); err != nil {
				log.Warn().Str("component", sample.Component).Err(err).Msg("calibration sample dropped")
			}
		}

		current := application.store.Snapshot()
		next, applied, err := rec.WeeklyRefit(current.Calibration, time.Now())
		if err != nil {
			if errors.Is(err, domain.ErrLowConfidenceDefer) {
				log.Info().Str("job", job.Name).Msg("weekly refit deferred: no factor cleared the promotion gate")
				return nil
			}
			if errors.Is(err, domain.ErrAnomalyFreeze) {
				log.Warn().Str("job", job.Name).Msg("calibration frozen, weekly refit skipped")
				return nil
			}
			return err
		}

		log.Info().Str("job", job.Name).Interface("drift", applied).Msg("weekly refit promoted")
		return applyCalibration(ctx, application, job, current, next)
	}
}

func applyCalibration(ctx context.Context, application *app, job scheduler.Job, current domain.StrategyConfig, cal domain.CalibrationParams) error {
	next := current
	next.Calibration = cal

	applied, err := application.store.CompareAndSwap(current.Version, next)
	if err != nil {
		return fmt.Errorf("job %s: calibration update lost: %w", job.Name, err)
	}
	if application.repos != nil {
		if err := application.repos.Configs.SaveVersion(ctx, applied); err != nil {
			log.Warn().Err(err).Msg("calibration persistence failed")
		}
	}
	log.Info().Str("job", job.Name).Int64("version", applied.Version).Msg("calibration updated")
	return nil
}

// loadJobInput reads the cycle input drop-file named by the job. A missing
// file is not an error: the external pipeline simply has nothing new.
func loadJobInput(job scheduler.Job) (cycle.Input, error) {
	var input cycle.Input
	input.Niche = job.Config.Niche

	if job.Config.InputPath == "" {
		return input, nil
	}
	raw, err := os.ReadFile(job.Config.InputPath)
	if os.IsNotExist(err) {
		return input, nil
	}
	if err != nil {
		return input, fmt.Errorf("read job input %s: %w", job.Config.InputPath, err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, fmt.Errorf("parse job input %s: %w", job.Config.InputPath, err)
	}
	if input.Niche == "" {
		input.Niche = job.Config.Niche
	}
	return input, nil
}

func loadRecalibrationInput(job scheduler.Job) (recalibrationInput, bool, error) {
	var in recalibrationInput
	if job.Config.InputPath == "" {
		log.Info().Str("job", job.Name).Msg("no input path configured, recalibration skipped")
		return in, false, nil
	}
	raw, err := os.ReadFile(job.Config.InputPath)
	if os.IsNotExist(err) {
		log.Info().Str("job", job.Name).Msg("no recalibration drop-file, skipped")
		return in, false, nil
	}
	if err != nil {
		return in, false, fmt.Errorf("read recalibration input %s: %w", job.Config.InputPath, err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, false, fmt.Errorf("parse recalibration input %s: %w", job.Config.InputPath, err)
	}
	return in, true, nil
}
