// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/config"
)

// New returns a logger writing to w. An unparseable level falls back to
// info; format "console" selects the human-readable writer, anything else
// emits JSON lines.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = io.Discard
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    w != os.Stdout && w != os.Stderr,
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Open returns a logger for cfg. When cfg.File is set the log is appended to
// that file and the returned close function releases it; otherwise output
// goes to fallback, which may be nil to discard everything.
func Open(cfg config.LogConfig, fallback io.Writer) (zerolog.Logger, func() error, error) {
	if cfg.File == "" {
		return New(cfg, fallback), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}
	return New(cfg, f), f.Close, nil
}
