package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/internal/api"
	"github.com/davidrg-mx/clubagent/internal/auth"
	"github.com/davidrg-mx/clubagent/internal/browser"
	"github.com/davidrg-mx/clubagent/internal/config"
	"github.com/davidrg-mx/clubagent/internal/extract"
	"github.com/davidrg-mx/clubagent/internal/observability"
	"github.com/davidrg-mx/clubagent/internal/orchestrator"
)

const shutdownGrace = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := observability.GetLogger()

			svc, manager, err := buildService(ctx, cfg, logger)
			if err != nil {
				return err
			}

			server := api.NewServer(svc, cfg.Server, logger)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Run() }()

			select {
			case err := <-errCh:
				manager.Shutdown(context.Background())
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutdown signal received; draining.")
			drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()

			if err := server.Shutdown(drainCtx); err != nil {
				logger.Warn("HTTP server shutdown incomplete.", zap.Error(err))
			}
			if err := manager.Shutdown(drainCtx); err != nil {
				logger.Warn("Browser shutdown incomplete.", zap.Error(err))
			}
			logger.Info("Shutdown complete.")
			return nil
		},
	}
}

// buildService assembles the browser manager, login flow, extractor
// registry and orchestrator. The returned manager must be shut down by
// the caller.
func buildService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*orchestrator.Orchestrator, *browser.Manager, error) {
	manager, err := browser.NewManager(ctx, cfg.Browser, cfg.Session.Dir, logger)
	if err != nil {
		return nil, nil, err
	}

	flow := auth.NewFlow(manager, cfg.Site, logger)
	registry := extract.NewRegistry(cfg.Site, logger)
	svc := orchestrator.New(flow, registry, manager, cfg.Site, cfg.Screenshots, logger)
	return svc, manager, nil
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
