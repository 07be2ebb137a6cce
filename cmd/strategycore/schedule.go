package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reelpilot/strategycore/internal/scheduler"
)

func scheduleCmd() *cobra.Command {
	var jobsPath string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the cycle and shadow-checkpoint scheduler",
	}
	cmd.PersistentFlags().StringVar(&jobsPath, "jobs", "config/jobs.yaml", "path to the yaml job file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := scheduler.NewScheduler(jobsPath)
			if err != nil {
				return fmt.Errorf("failed to initialize scheduler: %w", err)
			}

			jobs := sched.ListJobs()
			fmt.Printf("%-24s %-10s %-22s %-8s %s\n", "JOB NAME", "EVERY", "TYPE", "STATUS", "DESCRIPTION")
			for _, job := range jobs {
				status := "enabled"
				if !job.Enabled {
					status = "disabled"
				}
				fmt.Printf("%-24s %-10s %-22s %-8s %s\n", job.Name, job.Every.Std(), job.Type, status, job.Description)
			}
			return nil
		},
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Run the scheduler daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			application, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			sched, err := scheduler.NewScheduler(jobsPath)
			if err != nil {
				return fmt.Errorf("failed to initialize scheduler: %w", err)
			}
			registerJobHandlers(sched, application)

			log.Info().Int("jobs", len(sched.ListJobs())).Msg("scheduler daemon running")
			if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("scheduler: %w", err)
			}
			log.Info().Msg("scheduler daemon stopped")
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <job-name>",
		Short: "Execute one configured job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			application, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			sched, err := scheduler.NewScheduler(jobsPath)
			if err != nil {
				return fmt.Errorf("failed to initialize scheduler: %w", err)
			}
			registerJobHandlers(sched, application)

			result, err := sched.RunJob(ctx, args[0])
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("job %s failed: %s", result.JobName, result.Error)
			}
			fmt.Printf("job %s completed in %s\n", result.JobName, result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.AddCommand(list, start, run)
	return cmd
}

// registerJobHandlers binds the job types to the running application. Every
// job type reads its external data from the job's input file; a missing file
// runs the stages on live state only.
func registerJobHandlers(sched *scheduler.Scheduler, application *app) {
	sched.RegisterHandler("cycle.run", cycleJobHandler(application))
	sched.RegisterHandler("shadow.checkpoint", shadowJobHandler(application))
	sched.RegisterHandler("recalibrate.daily", dailyRecalibrateHandler(application))
	sched.RegisterHandler("recalibrate.weekly", weeklyRecalibrateHandler(application))
}
