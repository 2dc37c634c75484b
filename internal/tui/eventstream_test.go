package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/config"
	"github.com/nixlim/mailwatch/internal/events"
	"github.com/nixlim/mailwatch/internal/monitor"
)

func TestRenderEventStreamPanel_Empty(t *testing.T) {
	m := NewModel(config.DefaultConfig(), WithMonitor(newTestMonitor(100)))

	panel := stripAnsi(m.renderEventStreamPanel(60, 20))
	if !strings.Contains(panel, "Waiting for send attempts") {
		t.Errorf("empty event stream should show a waiting message, got:\n%s", panel)
	}
}

func TestRenderEventStreamPanel_WithEvents(t *testing.T) {
	mon := newTestMonitor(100)
	mon.RecordSuccess(320)
	mon.RecordFailure(monitor.SendError{Code: "QUOTA_EXCEEDED", Message: "daily limit"}, 1200)

	m := NewModel(config.DefaultConfig(), WithMonitor(mon))
	panel := stripAnsi(m.renderEventStreamPanel(80, 20))

	for _, want := range []string{"Recent Sends", "✓ sent (320ms)", "✗ QUOTA_EXCEEDED daily limit (1.2s)"} {
		if !strings.Contains(panel, want) {
			t.Errorf("panel missing %q:\n%s", want, panel)
		}
	}
	if strings.Index(panel, "sent (320ms)") > strings.Index(panel, "QUOTA_EXCEEDED") {
		t.Error("events should be listed oldest first with the newest at the bottom")
	}
}

func TestRenderEventStreamPanel_RespectsDisplayLimit(t *testing.T) {
	mon := newTestMonitor(0)
	for i := 0; i < 30; i++ {
		mon.RecordSuccess(i)
	}
	cfg := config.DefaultConfig()
	cfg.Display.RecentEvents = 5

	m := NewModel(cfg, WithMonitor(mon))
	if len(m.snap.events) != 5 {
		t.Fatalf("snapshot has %d events, want 5", len(m.snap.events))
	}
	panel := stripAnsi(m.renderEventStreamPanel(80, 30))
	if got := strings.Count(panel, "✓ sent"); got != 5 {
		t.Errorf("rendered %d events, want 5", got)
	}
	if !strings.Contains(panel, "(29ms)") {
		t.Error("newest event should be shown")
	}
}

func TestRenderEventStreamPanel_TrimsToHeight(t *testing.T) {
	mon := newTestMonitor(0)
	for i := 0; i < 10; i++ {
		mon.RecordSuccess(i)
	}
	m := NewModel(config.DefaultConfig(), WithMonitor(mon))

	panel := stripAnsi(m.renderEventStreamPanel(80, 6))
	if !strings.Contains(panel, "(9ms)") {
		t.Errorf("newest event must survive trimming:\n%s", panel)
	}
	if strings.Contains(panel, "(0ms)") {
		t.Error("oldest event should be trimmed")
	}
}

func TestRenderEventLine(t *testing.T) {
	ts := time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		ev   events.Event
		want string
	}{
		{
			name: "success",
			ev:   events.Event{Kind: events.KindSuccess, Timestamp: ts, ResponseTimeMs: 45},
			want: "✓ sent (45ms)",
		},
		{
			name: "failure",
			ev: events.Event{Kind: events.KindError, Timestamp: ts, ResponseTimeMs: 2500,
				Error: &events.SendError{Code: "NETWORK_ERROR", Message: "timeout"}},
			want: "✗ NETWORK_ERROR timeout (2.5s)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := stripAnsi(renderEventLine(tt.ev, 100))
			if !strings.Contains(line, tt.want) {
				t.Errorf("line = %q, want it to contain %q", line, tt.want)
			}
		})
	}
}

func TestRenderAlertsPanel(t *testing.T) {
	t.Run("no alerts", func(t *testing.T) {
		m := NewModel(config.DefaultConfig(), WithAlertProvider(&mockAlertProvider{}))
		if !strings.Contains(stripAnsi(m.renderAlertsPanel(80, 5)), "No alerts") {
			t.Error("expected 'No alerts'")
		}
	})

	t.Run("newest first, trimmed to height", func(t *testing.T) {
		p := &mockAlertProvider{alerts: []alerts.Alert{
			{Rule: alerts.RuleQuotaExceeded, Severity: alerts.SeverityCritical, Message: "Email quota exceeded", FiredAt: testNow},
			{Rule: alerts.RuleHealthDegraded, Severity: alerts.SeverityWarning, Message: "health warning", FiredAt: testNow.Add(-time.Minute)},
			{Rule: alerts.RuleQuotaNearLimit, Severity: alerts.SeverityWarning, Message: "quota 90%", FiredAt: testNow.Add(-2 * time.Minute)},
		}}
		m := NewModel(config.DefaultConfig(), WithAlertProvider(p))

		panel := stripAnsi(m.renderAlertsPanel(100, 5))
		if !strings.Contains(panel, "!! [QuotaExceeded] Email quota exceeded") {
			t.Errorf("critical alert missing:\n%s", panel)
		}
		if !strings.Contains(panel, "[HealthDegraded]") {
			t.Error("second alert missing")
		}
		if strings.Contains(panel, "[QuotaNearLimit]") {
			t.Error("alerts beyond the panel height should be dropped")
		}
	})
}

func TestRenderAlertLine_Truncates(t *testing.T) {
	a := alerts.Alert{Rule: alerts.RuleHealthDegraded, Severity: alerts.SeverityWarning,
		Message: strings.Repeat("x", 200), FiredAt: testNow}
	line := stripAnsi(renderAlertLine(a, 40))
	if len([]rune(line)) != 40 || !strings.HasSuffix(line, "...") {
		t.Errorf("line = %q (%d runes)", line, len([]rune(line)))
	}
}
