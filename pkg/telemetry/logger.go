// Package telemetry provides the logger, metrics registry, and tracer used
// across rbxsync. Logging is always on; metrics and tracing are opt-in and
// write to local files so the CLI stays dependency-free at runtime.
package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig controls how the process logger is built.
type LoggerConfig struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	// Unknown names fall back to info.
	Level string

	// Format is "console" for human-readable output or "json" for
	// structured lines.
	Format string

	// Output defaults to stderr when nil.
	Output io.Writer
}

// NewLogger builds the root logger. Components derive their own loggers from
// it with With().Str("component", ...).
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	return zerolog.New(w).
		Level(parseLogLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
