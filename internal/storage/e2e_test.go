package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nixlim/mailwatch/internal/clock"
	"github.com/nixlim/mailwatch/internal/events"
	"github.com/nixlim/mailwatch/internal/monitor"
)

// TestFullLifecycle_MonitorHooksSurviveRestart wires a monitor to the store
// the way the daemon does, closes the store and reads the history back from
// a fresh one.
func TestFullLifecycle_MonitorHooksSurviveRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mailwatch.db")
	clk := clock.NewFake(testNow)

	store, err := NewSQLiteStore(dbPath, 7, 90, WithClock(clk))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	mon := monitor.New(monitor.DefaultConfig(),
		monitor.WithClock(clk),
		monitor.WithEventHook(store.RecordEvent),
		monitor.WithResetHook(store.PersistSummary),
	)

	for i := 0; i < 8; i++ {
		clk.Advance(time.Minute)
		mon.RecordSuccess(200)
	}
	clk.Advance(time.Minute)
	mon.RecordFailure(monitor.SendError{Code: events.CodeInvalidEmail, Message: "bad address"}, 100)
	clk.Advance(time.Minute)
	mon.RecordFailure(monitor.SendError{Code: events.CodeInvalidEmail, Message: "bad address"}, 100)

	mon.ForceReset()

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath, 7, 90, WithClock(clk))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	summaries := reopened.QuerySummaries(1)
	if len(summaries) != 1 {
		t.Fatalf("want 1 summary after restart, got %d", len(summaries))
	}
	s := summaries[0]
	if s.Reason != monitor.ResetForced || s.TotalSent != 8 || s.TotalFailed != 2 {
		t.Errorf("summary: %+v", s)
	}
	if s.ErrorsByType[events.CodeInvalidEmail] != 2 {
		t.Errorf("errors by type: %v", s.ErrorsByType)
	}

	activity := reopened.QueryDailyActivity(1)
	if len(activity) != 1 || activity[0].Sent != 8 || activity[0].Failed != 2 {
		t.Fatalf("daily activity: %+v", activity)
	}
	if activity[0].AverageResponseMs != 180 {
		t.Errorf("average: want 180, got %d", activity[0].AverageResponseMs)
	}
}
