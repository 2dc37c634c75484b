package storage

import (
	"path/filepath"
	"testing"

	"github.com/nixlim/mailwatch/internal/config"
)

func TestFallback_SQLiteSuccess(t *testing.T) {
	cfg := config.StorageConfig{
		DBPath:               filepath.Join(t.TempDir(), "test.db"),
		RetentionDays:        7,
		SummaryRetentionDays: 90,
	}

	store, isPersistent := NewStore(cfg)
	defer func() { _ = store.Close() }()

	if !isPersistent {
		t.Error("expected isPersistent=true for valid DB path")
	}
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", store)
	}
}

func TestFallback_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	store, _ := NewStore(config.StorageConfig{DBPath: blocker, RetentionDays: 7, SummaryRetentionDays: 90})
	_ = store.Close()

	// blocker is now a database file; a path beneath it cannot be created.
	cfg := config.StorageConfig{
		DBPath:               filepath.Join(blocker, "nested", "test.db"),
		RetentionDays:        7,
		SummaryRetentionDays: 90,
	}

	store, isPersistent := NewStore(cfg)
	defer func() { _ = store.Close() }()

	if isPersistent {
		t.Error("expected isPersistent=false for unwritable path")
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore fallback, got %T", store)
	}
}

func TestFallback_ExplicitInMemory(t *testing.T) {
	store, isPersistent := NewStore(config.StorageConfig{DBPath: "", RetentionDays: 7, SummaryRetentionDays: 90})
	defer func() { _ = store.Close() }()

	if isPersistent {
		t.Error("expected isPersistent=false for empty db_path")
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", store)
	}
}

func TestExpandTilde(t *testing.T) {
	if got := expandTilde("/abs/path.db"); got != "/abs/path.db" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := expandTilde("~/x.db"); got == "~/x.db" {
		t.Errorf("tilde not expanded: %q", got)
	}
}
