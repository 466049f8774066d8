// Package logger builds the slog loggers used across modelgate.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	json   bool
	source bool
	writer io.Writer
}

// New returns a logger writing pretty, human-oriented lines by default and
// JSON lines when WithJSON is set.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.json {
		return slog.New(slog.NewJSONHandler(cfg.writer, &slog.HandlerOptions{
			Level:     cfg.level,
			AddSource: cfg.source,
		}))
	}

	handler := charmlog.NewWithOptions(cfg.writer, charmlog.Options{
		Level:           charmlog.Level(cfg.level),
		ReportTimestamp: true,
		ReportCaller:    cfg.source,
		TimeFormat:      time.DateTime,
	})
	return slog.New(handler)
}

// ParseLevel accepts debug, info, warn or error, case-insensitively.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
