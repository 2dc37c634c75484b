package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nixlim/mailwatch/internal/clock"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*SQLiteStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(testNow)
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), 7, 90, WithClock(clk))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, clk
}

// waitForCount polls until query returns want or the deadline passes.
func waitForCount(t *testing.T, db *sql.DB, query string, want int, args ...any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var got int
	for time.Now().Before(deadline) {
		if err := db.QueryRow(query, args...).Scan(&got); err != nil {
			t.Fatalf("count query failed: %v", err)
		}
		if got == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s: want %d, got %d", query, want, got)
}
