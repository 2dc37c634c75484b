package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/nixlim/mailwatch/internal/events"
	"github.com/nixlim/mailwatch/internal/monitor"
	"github.com/nixlim/mailwatch/internal/storage"
)

type historyRow struct {
	label    string
	sent     int
	failed   int
	totalMs  int64
	attempts int
	avgMs    int
}

func (r historyRow) successRate() float64 {
	n := r.sent + r.failed
	if n == 0 {
		return 100
	}
	return float64(r.sent) / float64(n) * 100
}

func (m Model) renderHistory() string {
	var sb strings.Builder

	help := "d:Daily w:Weekly m:Monthly s:Resets  Tab:Dashboard  q:Quit "
	sb.WriteString(m.renderHeader(" [History]", help))
	sb.WriteByte('\n')

	if m.history == nil {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  history is unavailable"))
		sb.WriteByte('\n')
		return sb.String()
	}
	if !m.isPersistent {
		sb.WriteString(dimStyle.Render("  in-memory history only, set storage.db_path to keep it across restarts"))
		sb.WriteByte('\n')
	}

	if m.historyGranularity == "summaries" {
		sb.WriteString(m.renderEpochSummaries())
		return sb.String()
	}

	var daily []storage.DailyActivity
	switch m.historyGranularity {
	case "weekly":
		daily = m.history.QueryDailyActivity(28)
	case "monthly":
		daily = m.history.QueryDailyActivity(90)
	default:
		daily = m.history.QueryDailyActivity(7)
	}

	if len(daily) == 0 {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  No historical data available"))
		sb.WriteByte('\n')
		return sb.String()
	}

	var rows []historyRow
	switch m.historyGranularity {
	case "weekly":
		rows = aggregateWeekly(daily)
	case "monthly":
		rows = aggregateMonthly(daily)
	default:
		for _, d := range daily {
			rows = append(rows, historyRow{
				label:  d.Date,
				sent:   d.Sent,
				failed: d.Failed,
				avgMs:  d.AverageResponseMs,
			})
		}
	}

	sb.WriteByte('\n')
	var dateHeader string
	switch m.historyGranularity {
	case "weekly":
		dateHeader = "Week"
	case "monthly":
		dateHeader = "Month"
	default:
		dateHeader = "Date"
	}
	sb.WriteString(fmt.Sprintf("  %-14s %8s %8s %9s %10s",
		dateHeader, "Sent", "Failed", "Success", "Avg resp"))
	sb.WriteByte('\n')
	sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 53)))
	sb.WriteByte('\n')

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %-14s %8s %8s %8.1f%% %10s",
			r.label, formatNumber(int64(r.sent)), formatNumber(int64(r.failed)),
			r.successRate(), events.FormatDurationMS(r.avgMs)))
	}
	m.writeScrolled(&sb, lines, 5)

	return sb.String()
}

func (m Model) renderEpochSummaries() string {
	var sb strings.Builder
	summaries := m.history.QuerySummaries(30)

	if len(summaries) == 0 {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  No statistics resets recorded"))
		sb.WriteByte('\n')
		return sb.String()
	}

	sb.WriteByte('\n')
	sb.WriteString(fmt.Sprintf("  %-17s %-10s %8s %8s %9s %10s",
		"Ended", "Reason", "Sent", "Failed", "Success", "Quota"))
	sb.WriteByte('\n')
	sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 68)))
	sb.WriteByte('\n')

	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("  %-17s %-10s %8s %8s %8.1f%% %10s",
			s.End.Local().Format("2006-01-02 15:04"), s.Reason,
			formatNumber(int64(s.TotalSent)), formatNumber(int64(s.TotalFailed)),
			s.SuccessRate, quotaLabel(s)))
	}
	m.writeScrolled(&sb, lines, 6)
	return sb.String()
}

func (m Model) writeScrolled(sb *strings.Builder, lines []string, reserved int) {
	visibleH := m.height - reserved
	if visibleH < 1 {
		visibleH = 1
	}
	startIdx := m.historyScrollPos
	if startIdx > len(lines)-visibleH {
		startIdx = len(lines) - visibleH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + visibleH
	if endIdx > len(lines) {
		endIdx = len(lines)
	}

	for i := startIdx; i < endIdx; i++ {
		sb.WriteString(lines[i])
		sb.WriteByte('\n')
	}
}

func quotaLabel(s monitor.EpochSummary) string {
	if s.QuotaLimit <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", s.QuotaUsed, s.QuotaLimit)
}

func aggregateWeekly(daily []storage.DailyActivity) []historyRow {
	return aggregate(daily, func(date string) string {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return date
		}
		y, w := t.ISOWeek()
		return fmt.Sprintf("Week %d-%02d", y, w)
	})
}

func aggregateMonthly(daily []storage.DailyActivity) []historyRow {
	return aggregate(daily, func(date string) string {
		if len(date) < 7 {
			return date
		}
		return date[:7]
	})
}

// aggregate folds days into buckets named by label, keeping the order in
// which buckets first appear and weighting average latency by attempts.
func aggregate(daily []storage.DailyActivity, label func(string) string) []historyRow {
	buckets := make(map[string]*historyRow)
	var order []string

	for _, d := range daily {
		l := label(d.Date)
		if _, ok := buckets[l]; !ok {
			buckets[l] = &historyRow{label: l}
			order = append(order, l)
		}
		r := buckets[l]
		r.sent += d.Sent
		r.failed += d.Failed
		n := d.Sent + d.Failed
		r.attempts += n
		r.totalMs += int64(d.AverageResponseMs) * int64(n)
	}

	result := make([]historyRow, 0, len(order))
	for _, l := range order {
		r := *buckets[l]
		if r.attempts > 0 {
			r.avgMs = int(r.totalMs / int64(r.attempts))
		}
		result = append(result, r)
	}
	return result
}
