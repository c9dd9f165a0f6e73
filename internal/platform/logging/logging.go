// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config controls logger construction.
type Config struct {
	// Level is one of trace, debug, info, warn, error. Unknown values fall
	// back to info.
	Level string
	// Console switches from JSON output to a human-readable console writer.
	Console bool
}

// New returns a logger writing to stdout configured per cfg.
func New(cfg Config) zerolog.Logger {
	return NewWriter(cfg, os.Stdout)
}

// NewWriter returns a logger writing to out configured per cfg.
func NewWriter(cfg Config, out io.Writer) zerolog.Logger {
	zerolog.ErrorFieldName = "err"

	var w io.Writer = out
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// timestamp format is fixed once at init; zerolog keeps this global.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
