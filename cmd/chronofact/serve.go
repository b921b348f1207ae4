package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chronofact/chronofact"
	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/extract"
	"github.com/chronofact/chronofact/pkg/server"
	"github.com/chronofact/chronofact/pkg/store"
	"github.com/chronofact/chronofact/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chronofact HTTP server",
	Long: `Start the chronofact HTTP server to provide REST API access to the
temporal knowledge engine.

The server provides endpoints for:
- Creating, resolving and merging entities
- Recording, superseding, corroborating and invalidating facts
- Point-in-time queries, diffs and entity timelines
- Batch ingestion of text and draft facts
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServe,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")

	serveCmd.Flags().String("telemetry-dir", "", "Directory for parquet error records")
	serveCmd.Flags().String("rules-path", "", "YAML pattern file for the rule extractor")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	if cmd.Flags().Changed("telemetry-dir") {
		cfg.Log.TelemetryDir, _ = cmd.Flags().GetString("telemetry-dir")
	}
	if cmd.Flags().Changed("rules-path") {
		cfg.Extract.RulesPath, _ = cmd.Flags().GetString("rules-path")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	engine, logger, err := buildEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := server.New(cfg, engine)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("server stopped gracefully")
		return nil
	}
}

// buildEngine assembles the store, extractor and client from configuration.
func buildEngine(ctx context.Context, cfg *config.Config) (*chronofact.Client, *slog.Logger, error) {
	logger, err := telemetry.SetupLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	s, err := store.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	if sqlStore, ok := s.(*store.SQLStore); ok {
		if err := sqlStore.Initialize(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	extractor, err := extract.NewFromConfig(cfg.Extract, logger)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to build extractor: %w", err)
	}

	engine, err := chronofact.NewClient(s, extractor, cfg, logger)
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	logger.Info("engine initialized",
		"driver", cfg.Database.Driver,
		"extractor", extractor.Name())
	return engine, logger, nil
}
