package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type panelDimensions struct {
	statsW, statsH   int
	healthW, healthH int
	eventsW, eventsH int
	errorsW, errorsH int
	alertsW, alertsH int
	headerH          int
}

const (
	minWidth  = 40
	minHeight = 10

	headerHeight = 1

	alertsHeight = 5

	statsMinHeight = 8

	statsMaxHeight = 11
)

func computeDimensions(totalW, totalH int) panelDimensions {
	if totalW < minWidth {
		totalW = minWidth
	}
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{
		headerH: headerHeight,
	}

	usableH := totalH - headerHeight - alertsHeight
	if usableH < 4 {
		usableH = 4
	}

	topH := usableH * 45 / 100
	if topH < statsMinHeight {
		topH = statsMinHeight
	}
	if topH > statsMaxHeight {
		topH = statsMaxHeight
	}
	if topH > usableH-3 {
		topH = usableH - 3
	}
	if topH < 3 {
		topH = 3
	}

	d.statsW = totalW / 2
	if d.statsW < 20 {
		d.statsW = 20
	}
	d.healthW = totalW - d.statsW
	if d.healthW < 20 {
		d.healthW = 20
	}
	d.statsH = topH
	d.healthH = topH

	bottomH := usableH - topH
	if bottomH < 3 {
		bottomH = 3
	}
	d.eventsW = totalW * 60 / 100
	if d.eventsW < 20 {
		d.eventsW = 20
	}
	d.errorsW = totalW - d.eventsW
	if d.errorsW < 20 {
		d.errorsW = 20
	}
	d.eventsH = bottomH
	d.errorsH = bottomH

	d.alertsW = totalW
	d.alertsH = alertsHeight

	return d
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	healthyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	criticalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	successLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))

	errorLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	alertWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226"))

	alertCriticalStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("196"))

	resetDialogStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("196")).
				Padding(1, 3).
				Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

func renderBorderedPanel(content string, w, h int) string {
	return renderBorderedPanelStyled(content, w, h, panelBorderStyle)
}

func renderBorderedPanelStyled(content string, w, h int, style lipgloss.Style) string {
	contentH := h - 2
	if contentH < 1 {
		contentH = 1
	}

	lines := strings.Split(content, "\n")
	if len(lines) > contentH {
		lines = lines[:contentH]
		content = strings.Join(lines, "\n")
	}

	return style.
		Width(w - 2).
		Height(contentH).
		Render(content)
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func (m Model) renderDashboard() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeader(" [Dashboard]", m.dashboardHelp())

	statsPanel := m.renderStatsPanel(dims.statsW, dims.statsH)
	healthPanel := m.renderHealthPanel(dims.healthW, dims.healthH)
	eventsPanel := m.renderEventStreamPanel(dims.eventsW, dims.eventsH)
	errorsPanel := m.renderErrorsPanel(dims.errorsW, dims.errorsH)
	alertsBar := m.renderAlertsPanel(dims.alertsW, dims.alertsH)

	top := lipgloss.JoinHorizontal(lipgloss.Top, statsPanel, healthPanel)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, eventsPanel, errorsPanel)
	mainContent := lipgloss.JoinVertical(lipgloss.Left, top, bottom)

	usableH := m.height - dims.headerH - dims.alertsH
	if m.statusMessage != "" {
		usableH--
	}
	if usableH < 4 {
		usableH = 4
	}
	mcLines := strings.Split(mainContent, "\n")
	if len(mcLines) > usableH {
		mcLines = mcLines[:usableH]
		mainContent = strings.Join(mcLines, "\n")
	}

	parts := []string{header, mainContent, alertsBar}
	if m.statusMessage != "" {
		parts = append(parts, statusBarStyle.Render(" "+m.statusMessage))
	}
	layout := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if m.resetConfirm {
		layout = m.overlayResetDialog(layout)
	}

	return layout
}

func (m Model) renderHeader(viewLabel, help string) string {
	title := " mailwatch"
	indicators := m.headerIndicators()

	padding := m.width - lipgloss.Width(title) - lipgloss.Width(viewLabel) - lipgloss.Width(indicators) - lipgloss.Width(help)
	if padding < 0 {
		padding = 0
	}

	return headerStyle.Width(m.width).Render(title + viewLabel + indicators + strings.Repeat(" ", padding) + help)
}

func (m Model) dashboardHelp() string {
	return "Tab:History  r:Reset  q:Quit "
}

func (m Model) overlayResetDialog(base string) string {
	dialog := resetDialogStyle.Render(
		"Reset email statistics?\n\n" +
			"Counters, quota usage and the event log are cleared.\n\n" +
			"[y] Reset  [n/Esc] Cancel")

	return placeOverlay(dialog, base)
}

// placeOverlay centres fg over the area occupied by bg.
func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}
