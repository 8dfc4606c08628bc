// Package logging provides structured slog setup for the maptrack
// binaries: levels, text or JSON output, stderr or file destinations and
// per-component child loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is "text" or "json".
	Format string
	// Output is "stderr", "stdout" or "file".
	Output string
	// FilePath receives logs when Output is "file".
	FilePath string
	// Component names the binary in every record.
	Component string
}

// ParseLevel maps a level name to its slog level. Unknown names default
// to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Setup builds the root logger and installs it as slog's default. The
// returned closer releases the log file, if one was opened.
func Setup(cfg Config) (*slog.Logger, func() error, error) {
	var w io.Writer
	closer := func() error { return nil }

	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging: file output needs a file path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open log file: %w", err)
		}
		w = f
		closer = f.Close
	default:
		return nil, nil, fmt.Errorf("logging: unknown output %q", cfg.Output)
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}
