package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// initiateReset opens the confirmation dialog for a forced statistics reset.
func (m Model) initiateReset() (tea.Model, tea.Cmd) {
	if m.monitor == nil {
		m.statusMessage = "No monitor attached"
		return m, nil
	}
	m.resetConfirm = true
	return m, nil
}

// handleResetConfirmKey handles y/n/Esc in the reset confirmation dialog.
func (m Model) handleResetConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.monitor.ForceReset()
		m.resetConfirm = false
		m.statusMessage = "Statistics reset"
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Deny), key.Matches(msg, m.keys.Escape):
		m.resetConfirm = false
		m.statusMessage = "Reset cancelled"
		return m, nil
	}

	return m, nil
}
