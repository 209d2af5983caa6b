package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sketchduel/backend/internal/cleanup"
	"github.com/sketchduel/backend/internal/config"
	"github.com/sketchduel/backend/internal/supervisor"
	"github.com/sketchduel/backend/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sketchduel",
		Short:         "Game backend for drawing races and AI guessing matches",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newCleanupCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the cleanup janitor (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "One-shot maintenance tasks",
	}

	var maxAge time.Duration
	abandoned := &cobra.Command{
		Use:   "abandoned",
		Short: "Delete lobbies that were never started",
		Long: `Delete waiting lobbies older than --max-age together with their presence data.

Example:
  sketchduel cleanup abandoned --max-age 45m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanupAbandoned(cmd, maxAge)
		},
	}
	abandoned.Flags().DurationVar(&maxAge, "max-age", cleanup.DefaultMaxAge, "minimum lobby age to delete")

	cmd.AddCommand(abandoned)
	return cmd
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return newApp(cfg, log)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           a.handler().Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(a.logger, supervisor.DefaultTreeConfig())
	tree.AddWorker(a.hub)
	tree.AddWorker(a.limiter)
	tree.AddWorker(cleanup.NewJanitor(a.cleanup, a.cfg.Cleanup.Interval, a.cfg.Cleanup.MaxAge, a.logger))
	tree.AddAPI(supervisor.NewHTTPService(server, 10*time.Second))

	a.logger.Info("Server starting",
		logger.F("addr", server.Addr),
		logger.F("session_driver", a.cfg.Storage.SessionDriver),
		logger.F("presence_driver", a.cfg.Storage.PresenceDriver),
	)
	if a.cfg.AdminAPIKey == "" {
		a.logger.Warn("ADMIN_API_KEY not set; admin endpoints are disabled")
	}

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	a.logger.Info("Server exited")
	return nil
}

func runCleanupAbandoned(cmd *cobra.Command, maxAge time.Duration) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := a.cleanup.CleanupAbandonedGames(ctx, maxAge)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
