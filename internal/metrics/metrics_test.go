package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nixlim/mailwatch/internal/clock"
	"github.com/nixlim/mailwatch/internal/monitor"
)

func newTestMonitor(quota int) *monitor.Monitor {
	cfg := monitor.DefaultConfig()
	cfg.QuotaLimit = quota
	clk := clock.NewFake(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))
	return monitor.New(cfg, monitor.WithClock(clk))
}

func scrape(t *testing.T, e *Exporter) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestCollector_Scrape(t *testing.T) {
	m := newTestMonitor(10)
	m.RecordSuccess(100)
	m.RecordSuccess(200)
	m.RecordSuccess(300)
	m.RecordFailure(monitor.SendError{Code: "API_ERROR", Message: "500"}, 400)

	body := scrape(t, NewExporter(NewCollector(m)))

	for _, want := range []string{
		"mailwatch_emails_sent 3",
		"mailwatch_emails_failed 1",
		"mailwatch_quota_used 3",
		"mailwatch_quota_limit 10",
		"mailwatch_success_rate_percent 75",
		"mailwatch_average_response_ms 250",
		`mailwatch_errors{code="API_ERROR"} 1`,
		"mailwatch_health_status 2",
		"mailwatch_last_reset_timestamp_seconds ",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
	if strings.Contains(body, "mailwatch_storage_dropped_writes") {
		t.Error("dropped writes should not be exported without a source")
	}
}

func TestCollector_DroppedWrites(t *testing.T) {
	m := newTestMonitor(100)
	c := NewCollector(m, WithDroppedWrites(func() int64 { return 7 }))

	body := scrape(t, NewExporter(c))
	if !strings.Contains(body, "mailwatch_storage_dropped_writes 7") {
		t.Errorf("expected dropped writes in scrape:\n%s", body)
	}
}

func TestCollector_MetricCount(t *testing.T) {
	m := newTestMonitor(100)
	m.RecordFailure(monitor.SendError{Code: "NETWORK_ERROR"}, 10)
	m.RecordFailure(monitor.SendError{Code: "INVALID_EMAIL"}, 10)

	// Eight scalar gauges plus one series per error code.
	if got := testutil.CollectAndCount(NewCollector(m)); got != 10 {
		t.Errorf("metric count = %d, want 10", got)
	}
}

func TestHealthValue(t *testing.T) {
	tests := []struct {
		status monitor.Status
		want   int
	}{
		{monitor.StatusHealthy, 0},
		{monitor.StatusWarning, 1},
		{monitor.StatusCritical, 2},
		{monitor.Status("unknown"), 0},
	}
	for _, tt := range tests {
		if got := HealthValue(tt.status); got != tt.want {
			t.Errorf("HealthValue(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
}
