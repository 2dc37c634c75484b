package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nixlim/mailwatch/internal/events"
)

func TestSQLiteStore_Close_FlushesWrites(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath, 7, 90)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	for range 10 {
		store.RecordEvent(events.Event{Kind: events.KindSuccess, Timestamp: time.Now(), ResponseTimeMs: 100})
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM send_events").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 10 {
		t.Errorf("not all writes flushed: want 10, got %d", count)
	}
}

func TestSQLiteStore_RecordAfterClose(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), 7, 90)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordEvent after Close panicked: %v", r)
		}
	}()
	store.RecordEvent(events.Event{Kind: events.KindSuccess, Timestamp: time.Now()})

	if got := store.DroppedWrites(); got != 0 {
		t.Errorf("writes after close are ignored, not counted as dropped: got %d", got)
	}
}

func TestSQLiteStore_CloseTwice(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), 7, 90)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestSQLiteStore_Close_Timely(t *testing.T) {
	store, err := newSQLiteStoreWithChannelSize(filepath.Join(t.TempDir(), "test.db"), 5, 7, 90)
	if err != nil {
		t.Fatalf("newSQLiteStoreWithChannelSize failed: %v", err)
	}

	for range 3 {
		store.RecordEvent(events.Event{Kind: events.KindSuccess, Timestamp: time.Now()})
	}

	start := time.Now()
	_ = store.Close()
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Errorf("Close took too long: %v (drain timeout should be 10s max)", elapsed)
	}
}
