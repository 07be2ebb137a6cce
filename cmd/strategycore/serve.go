package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reelpilot/strategycore/internal/ops"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.OpsAddr = addr
			}

			ctx := cmd.Context()
			application, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			server, err := buildOpsServer(application)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()
			log.Info().Str("addr", server.Address()).Msg("ops server listening")

			select {
			case err := <-errCh:
				return fmt.Errorf("ops server: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("ops server shutdown: %w", err)
			}
			log.Info().Msg("ops server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides ops_addr from config")
	return cmd
}

func buildOpsServer(application *app) (*ops.Server, error) {
	serverCfg := ops.DefaultServerConfig()
	if application.cfg.OpsAddr != "" {
		host, portStr, err := net.SplitHostPort(application.cfg.OpsAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid ops addr %q: %w", application.cfg.OpsAddr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid ops port %q: %w", portStr, err)
		}
		serverCfg.Host = host
		serverCfg.Port = port
	}

	var breakers ops.BreakerSource
	if application.gateway != nil {
		breakers = application.gateway.Breakers()
	}

	handlers := ops.NewHandlers(
		application.coord,
		application.coord,
		application.store,
		breakers,
		application.manager.Health(),
		application.metrics.MetricsHandler(),
	)
	return ops.NewServer(serverCfg, handlers, log.Logger)
}
