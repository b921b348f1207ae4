// Package telemetry wires structured logging, including an error-record
// sink that batches error logs into parquet files for offline analysis.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/chronofact/chronofact/pkg/config"
)

// SetupLogger builds the process logger from config. Level and format come
// from the log section; when a telemetry directory is configured, error
// records additionally land in parquet files there.
func SetupLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	if cfg.TelemetryDir != "" {
		parquetHandler, err := NewParquetHandler(handler, cfg.TelemetryDir)
		if err != nil {
			return nil, fmt.Errorf("initialize error tracking: %w", err)
		}
		handler = parquetHandler
	}
	return slog.New(handler), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
