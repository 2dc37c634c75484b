package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/mailwatch/internal/events"
	"github.com/nixlim/mailwatch/internal/monitor"
)

func (m Model) renderStatsPanel(w, h int) string {
	s := m.snap.stats
	title := panelTitleStyle.Render("Email Statistics")

	lines := []string{
		title,
		fmt.Sprintf("  Sent:          %s", formatNumber(int64(s.TotalSent))),
		fmt.Sprintf("  Failed:        %s", formatNumber(int64(s.TotalFailed))),
		fmt.Sprintf("  Success rate:  %s", successRateStyle(s.SuccessRate).Render(fmt.Sprintf("%.1f%%", s.SuccessRate))),
		fmt.Sprintf("  Avg response:  %s", events.FormatDurationMS(s.AverageResponseTimeMs)),
		m.renderQuotaLine(w - 4),
	}
	if !s.LastResetTime.IsZero() {
		lines = append(lines, dimStyle.Render("  Since "+s.LastResetTime.Local().Format("2006-01-02 15:04")))
	}

	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func (m Model) renderQuotaLine(w int) string {
	s := m.snap.stats
	if s.QuotaLimit <= 0 {
		return fmt.Sprintf("  Quota:         %s", dimStyle.Render("unlimited"))
	}
	barW := w - 36
	if barW > 20 {
		barW = 20
	}
	if barW < 5 {
		barW = 5
	}
	ratio := float64(s.QuotaUsed) / float64(s.QuotaLimit)
	return fmt.Sprintf("  Quota:         %s %d/%d (%d%%)",
		renderProgressBar(ratio, barW), s.QuotaUsed, s.QuotaLimit, m.snap.quota)
}

func (m Model) renderHealthPanel(w, h int) string {
	health := m.snap.health
	status := health.Status
	if status == "" {
		status = monitor.StatusHealthy
	}

	lines := []string{
		panelTitleStyle.Render("Health") + "  " + healthStyle(status).Render(strings.ToUpper(string(status))),
	}
	if len(health.Issues) == 0 {
		lines = append(lines, dimStyle.Render("  No issues"))
	}
	maxW := w - 6
	if maxW < 10 {
		maxW = 10
	}
	for _, issue := range health.Issues {
		lines = append(lines, "  • "+truncateStr(issue, maxW))
	}
	if len(health.Recommendations) > 0 {
		lines = append(lines, "")
		for _, rec := range health.Recommendations {
			lines = append(lines, dimStyle.Render("  → "+truncateStr(rec, maxW)))
		}
	}

	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func (m Model) renderErrorsPanel(w, h int) string {
	sum := m.snap.errors
	lines := []string{panelTitleStyle.Render("Errors by Type")}

	if len(sum.ErrorsByType) == 0 {
		lines = append(lines, dimStyle.Render("  No errors"))
		return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
	}

	type codeCount struct {
		code  string
		count int
	}
	counts := make([]codeCount, 0, len(sum.ErrorsByType))
	for code, n := range sum.ErrorsByType {
		counts = append(counts, codeCount{code, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].code < counts[j].code
	})

	for _, c := range counts {
		label := c.code
		if label == "" {
			label = "(none)"
		}
		line := fmt.Sprintf("  %-16s %6d", truncateStr(label, 16), c.count)
		if c.code == events.CodeQuotaExceeded {
			line = criticalStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if n := len(sum.CriticalErrors); n > 0 {
		lines = append(lines, "", criticalStyle.Render(fmt.Sprintf("  %d critical in the last hour", n)))
	}

	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func successRateStyle(rate float64) lipgloss.Style {
	switch {
	case rate < 80:
		return criticalStyle
	case rate < 95:
		return warningStyle
	default:
		return healthyStyle
	}
}

func healthStyle(s monitor.Status) lipgloss.Style {
	switch s {
	case monitor.StatusCritical:
		return criticalStyle
	case monitor.StatusWarning:
		return warningStyle
	default:
		return healthyStyle
	}
}

func renderProgressBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if ratio >= 0.9 {
		return criticalStyle.Render(bar)
	}
	if ratio >= 0.8 {
		return warningStyle.Render(bar)
	}
	return healthyStyle.Render(bar)
}

// formatNumber renders n with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		sb.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

func truncateStr(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
