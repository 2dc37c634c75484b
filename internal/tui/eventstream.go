package tui

import (
	"fmt"
	"strings"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/events"
)

func (m Model) renderEventStreamPanel(w, h int) string {
	title := panelTitleStyle.Render("Recent Sends")
	evts := m.snap.events

	contentH := h - 3
	if contentH < 1 {
		contentH = 1
	}
	maxW := w - 4
	if maxW < 10 {
		maxW = 10
	}

	var lines []string
	lines = append(lines, title)
	if len(evts) == 0 {
		lines = append(lines, dimStyle.Render("  Waiting for send attempts..."))
		return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
	}

	// Newest at the bottom, like a log tail.
	if len(evts) > contentH {
		evts = evts[len(evts)-contentH:]
	}
	for _, e := range evts {
		lines = append(lines, renderEventLine(e, maxW))
	}

	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func renderEventLine(e events.Event, maxW int) string {
	line := truncateStr(events.Format(e), maxW)
	if e.Kind == events.KindError {
		return errorLineStyle.Render(line)
	}
	return successLineStyle.Render(line)
}

func (m Model) renderAlertsPanel(w, h int) string {
	title := panelTitleStyle.Render("Alerts")
	list := m.snap.alerts

	contentH := h - 3
	if contentH < 1 {
		contentH = 1
	}

	lines := []string{title}
	if len(list) == 0 {
		lines = append(lines, dimStyle.Render("  No alerts"))
		return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
	}

	if len(list) > contentH {
		list = list[:contentH]
	}
	for _, a := range list {
		lines = append(lines, renderAlertLine(a, w-4))
	}
	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func renderAlertLine(a alerts.Alert, maxW int) string {
	icon := "!"
	style := alertWarningStyle
	if a.Severity == alerts.SeverityCritical {
		icon = "!!"
		style = alertCriticalStyle
	}
	line := fmt.Sprintf("%s %s [%s] %s", a.FiredAt.Local().Format("15:04:05"), icon, a.Rule, a.Message)
	if maxW > 0 {
		line = truncateStr(line, maxW)
	}
	return style.Render(line)
}
