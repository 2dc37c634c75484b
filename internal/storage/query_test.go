package storage

import (
	"testing"
	"time"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/monitor"
)

func insertEvent(t *testing.T, s *SQLiteStore, kind string, ts time.Time, ms int) {
	t.Helper()
	_, err := s.db.Exec(
		"INSERT INTO send_events (kind, timestamp, response_ms) VALUES (?, ?, ?)",
		kind, formatTS(ts), ms)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func insertSummary(t *testing.T, s *SQLiteStore, end time.Time, sent int) {
	t.Helper()
	tx, err := s.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	row := buildSummaryRow(monitor.EpochSummary{
		Reason:    monitor.ResetScheduled,
		Start:     end.Add(-24 * time.Hour),
		End:       end,
		TotalSent: sent,
	})
	if err := s.writeSummary(tx, row); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestQuerySummaries_WindowAndOrder(t *testing.T) {
	store, _ := newTestStore(t)

	insertSummary(t, store, testNow.AddDate(0, 0, -10), 1)
	insertSummary(t, store, testNow.AddDate(0, 0, -2), 2)
	insertSummary(t, store, testNow.AddDate(0, 0, -1), 3)

	got := store.QuerySummaries(7)
	if len(got) != 2 {
		t.Fatalf("want 2 summaries within 7 days, got %d", len(got))
	}
	if got[0].TotalSent != 3 || got[1].TotalSent != 2 {
		t.Errorf("want newest first, got %d then %d", got[0].TotalSent, got[1].TotalSent)
	}
	if len(got[0].ErrorsByType) != 0 || got[0].ErrorsByType == nil {
		t.Errorf("empty error map should read back as empty non-nil map, got %v", got[0].ErrorsByType)
	}

	if all := store.QuerySummaries(30); len(all) != 3 {
		t.Errorf("30-day window: want 3, got %d", len(all))
	}
}

func TestQuerySummaries_EmptyDB(t *testing.T) {
	store, _ := newTestStore(t)
	if got := store.QuerySummaries(7); len(got) != 0 {
		t.Errorf("want no summaries, got %d", len(got))
	}
}

func TestQueryDailyActivity_FromLiveEvents(t *testing.T) {
	store, _ := newTestStore(t)

	day := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	insertEvent(t, store, "success", day, 100)
	insertEvent(t, store, "success", day.Add(time.Hour), 300)
	insertEvent(t, store, "error", day.Add(2*time.Hour), 500)
	insertEvent(t, store, "success", day.AddDate(0, 0, -1), 50)

	got := store.QueryDailyActivity(7)
	if len(got) != 2 {
		t.Fatalf("want 2 days, got %d: %+v", len(got), got)
	}
	if got[0].Date != "2026-04-10" || got[0].Sent != 2 || got[0].Failed != 1 || got[0].AverageResponseMs != 300 {
		t.Errorf("today: %+v", got[0])
	}
	if got[1].Date != "2026-04-09" || got[1].Sent != 1 || got[1].AverageResponseMs != 50 {
		t.Errorf("yesterday: %+v", got[1])
	}
}

func TestQueryDailyActivity_MergesRollups(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.db.Exec(
		"INSERT INTO daily_rollups (date, sent, failed, total_response_ms) VALUES (?, ?, ?, ?)",
		"2026-04-08", 10, 2, 1200)
	if err != nil {
		t.Fatalf("insert rollup: %v", err)
	}
	// Same day still partly held as raw events.
	insertEvent(t, store, "error", time.Date(2026, 4, 8, 23, 0, 0, 0, time.UTC), 300)

	got := store.QueryDailyActivity(7)
	if len(got) != 1 {
		t.Fatalf("want 1 merged day, got %+v", got)
	}
	if got[0].Sent != 10 || got[0].Failed != 3 {
		t.Errorf("merged counts: %+v", got[0])
	}
	if got[0].AverageResponseMs != 115 {
		t.Errorf("merged average: want 1500/13 = 115, got %d", got[0].AverageResponseMs)
	}
}

func TestQueryDailyActivity_ExcludesOldDays(t *testing.T) {
	store, _ := newTestStore(t)
	insertEvent(t, store, "success", testNow.AddDate(0, 0, -20), 10)

	if got := store.QueryDailyActivity(7); len(got) != 0 {
		t.Errorf("want no activity inside 7 days, got %+v", got)
	}
}

func TestRecentAlerts_Limit(t *testing.T) {
	store, _ := newTestStore(t)

	tx, err := store.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := 0; i < 250; i++ {
		err := store.writeAlertHistory(tx, &alertHistoryRow{
			Rule:     alerts.RuleHealthDegraded,
			Severity: alerts.SeverityWarning,
			Message:  "m",
			FiredAt:  formatTS(testNow.Add(time.Duration(i) * time.Second)),
		})
		if err != nil {
			t.Fatalf("write alert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if got := store.RecentAlerts(5); len(got) != 5 {
		t.Errorf("limit 5: got %d", len(got))
	}
	all := store.RecentAlerts(0)
	if len(all) != maxAlertRows {
		t.Errorf("limit 0 should cap at %d, got %d", maxAlertRows, len(all))
	}
	if !all[0].FiredAt.Equal(testNow.Add(249 * time.Second)) {
		t.Errorf("newest alert first: got %v", all[0].FiredAt)
	}
}
