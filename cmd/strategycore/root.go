package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reelpilot/strategycore/internal/config"
)

var (
	configPath string
	verbose    bool
)

func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "strategycore",
		Short: "Adaptive experimentation and strategy core for short-form content",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/strategycore.yaml", "path to the yaml configuration")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(cycleCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(scheduleCmd())

	log.Info().Msg("strategycore starting")
	return root.ExecuteContext(ctx)
}

// loadAppConfig reads the yaml config, falling back to built-in defaults when
// the file does not exist. A present but invalid file is fatal.
func loadAppConfig(path string) (config.AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
		return config.Default(), nil
	}
	return config.Load(path)
}
