package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/config"
	"github.com/nixlim/mailwatch/internal/monitor"
	"github.com/nixlim/mailwatch/internal/storage"
)

type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewHistory
)

type tickMsg time.Time

// MonitorProvider is the part of *monitor.Monitor the dashboard reads.
type MonitorProvider interface {
	Stats() monitor.Stats
	RecentEvents(limit int) []monitor.Event
	ErrorSummary() monitor.ErrorSummary
	HealthStatus() monitor.Health
	QuotaUsagePercentage() int
	ForceReset()
}

type AlertProvider interface {
	Alerts() []alerts.Alert
}

type HistoryProvider interface {
	QuerySummaries(days int) []monitor.EpochSummary
	QueryDailyActivity(days int) []storage.DailyActivity
	DroppedWrites() int64
}

// snapshot is the monitor state captured on each tick so rendering never
// takes the monitor lock.
type snapshot struct {
	stats  monitor.Stats
	health monitor.Health
	errors monitor.ErrorSummary
	events []monitor.Event
	quota  int
	alerts []alerts.Alert
}

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config

	monitor MonitorProvider
	alerts  AlertProvider
	history HistoryProvider

	snap snapshot

	resetConfirm  bool
	statusMessage string

	isPersistent bool

	historyGranularity string
	historyScrollPos   int

	refreshRate time.Duration

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	refresh := time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond
	if refresh <= 0 {
		refresh = time.Second
	}
	m := Model{
		view:               ViewDashboard,
		keys:               DefaultKeyMap(),
		cfg:                cfg,
		historyGranularity: "daily",
		refreshRate:        refresh,
	}

	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()

	return m
}

type ModelOption func(*Model)

func WithMonitor(p MonitorProvider) ModelOption {
	return func(m *Model) { m.monitor = p }
}

func WithAlertProvider(a AlertProvider) ModelOption {
	return func(m *Model) { m.alerts = a }
}

func WithHistoryProvider(h HistoryProvider) ModelOption {
	return func(m *Model) { m.history = h }
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func WithPersistenceFlag(isPersistent bool) ModelOption {
	return func(m *Model) { m.isPersistent = isPersistent }
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh re-reads every provider into the cached snapshot.
func (m *Model) refresh() {
	var s snapshot
	if m.monitor != nil {
		s.stats = m.monitor.Stats()
		s.health = m.monitor.HealthStatus()
		s.errors = m.monitor.ErrorSummary()
		s.events = m.monitor.RecentEvents(m.recentEventLimit())
		s.quota = m.monitor.QuotaUsagePercentage()
	}
	if m.alerts != nil {
		s.alerts = m.alerts.Alerts()
	}
	m.snap = s
}

func (m Model) recentEventLimit() int {
	if m.cfg.Display.RecentEvents > 0 {
		return m.cfg.Display.RecentEvents
	}
	return 10
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.resetConfirm {
		return m.handleResetConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reset):
		return m.initiateReset()
	}

	switch m.view {
	case ViewDashboard:
		return m.handleDashboardKey(msg)
	case ViewHistory:
		return m.handleHistoryKey(msg)
	}

	return m, nil
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		m.view = ViewHistory
		m.statusMessage = ""
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.statusMessage = ""
		return m, nil
	}
	return m, nil
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		m.view = ViewDashboard
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.historyScrollPos > 0 {
			m.historyScrollPos--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.historyScrollPos++
		return m, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		switch msg.Runes[0] {
		case 'd':
			m.historyGranularity = "daily"
			m.historyScrollPos = 0
		case 'w':
			m.historyGranularity = "weekly"
			m.historyScrollPos = 0
		case 'm':
			m.historyGranularity = "monthly"
			m.historyScrollPos = 0
		case 's':
			m.historyGranularity = "summaries"
			m.historyScrollPos = 0
		}
	}

	return m, nil
}

func (m Model) headerIndicators() string {
	var parts []string
	if !m.isPersistent {
		parts = append(parts, "[No persistence]")
	}
	if m.history != nil && m.history.DroppedWrites() > 0 {
		parts = append(parts, "[!] Writes dropped")
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + dimStyle.Render(strings.Join(parts, " "))
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var output string
	switch m.view {
	case ViewDashboard:
		output = m.renderDashboard()
	case ViewHistory:
		output = m.renderHistory()
	}

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}

	return output
}
