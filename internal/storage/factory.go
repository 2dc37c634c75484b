package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nixlim/mailwatch/internal/config"
)

// NewStore opens the SQLite store at cfg.DBPath, falling back to a memory
// store when the path is empty or the database cannot be opened. The bool
// reports whether history will survive a restart.
func NewStore(cfg config.StorageConfig, opts ...Option) (Store, bool) {
	if cfg.DBPath == "" {
		return NewMemoryStore(opts...), false
	}

	dbPath := expandTilde(cfg.DBPath)

	store, err := NewSQLiteStore(dbPath, cfg.RetentionDays, cfg.SummaryRetentionDays, opts...)
	if err != nil {
		o := buildOptions(opts)
		o.logger.Warn().Err(err).Str("path", dbPath).Msg("SQLite storage unavailable, falling back to in-memory store")
		return NewMemoryStore(opts...), false
	}

	return store, true
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
