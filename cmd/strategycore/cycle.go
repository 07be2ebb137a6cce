package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reelpilot/strategycore/internal/cycle"
)

func cycleCmd() *cobra.Command {
	var (
		inputPath string
		niche     string
	)
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one adaptive strategy cycle",
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

			input, err := loadCycleInput(inputPath)
			if err != nil {
				return err
			}
			if niche != "" {
				input.Niche = niche
			}
			if input.Niche == "" {
				return fmt.Errorf("no niche: set --niche or provide it in the input file")
			}

			out, err := application.coord.RunCycle(ctx, input)
			if err != nil {
				return fmt.Errorf("cycle failed: %w", err)
			}

			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("encode cycle output: %w", err)
			}
			fmt.Println(string(encoded))
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a json cycle input file (snapshots, shadow results, reward events)")
	cmd.Flags().StringVar(&niche, "niche", "", "content niche to run the cycle for")
	return cmd
}

// loadCycleInput reads the external data one cycle consumes. An empty path
// yields an empty input: selection and mode control still run, data-driven
// stages no-op.
func loadCycleInput(path string) (cycle.Input, error) {
	var input cycle.Input
	if path == "" {
		log.Debug().Msg("no input file, running cycle on live state only")
		return input, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return input, fmt.Errorf("read cycle input %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, fmt.Errorf("parse cycle input %s: %w", path, err)
	}
	return input, nil
}
