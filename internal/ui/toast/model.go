// Package toast renders transient alerts as a stack that dismisses itself.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/internal/theme"
)

// MaxVisible is how many alerts are shown at once; older ones wait.
const MaxVisible = 4

// ShowMsg asks the stack to display an alert.
type ShowMsg struct {
	Alert notify.Alert
}

// expireMsg removes an alert once its TTL has passed.
type expireMsg struct {
	id string
}

// Model is the toast stack.
type Model struct {
	alerts []notify.Alert
	width  int
}

// New creates an empty stack.
func New(width int) Model {
	return Model{width: width}
}

// Update adds alerts and drops expired ones.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ShowMsg:
		a := msg.Alert
		if a.TTL <= 0 {
			a.TTL = notify.DefaultAlertTTL
		}
		m.alerts = append(m.alerts, a)
		id := a.ID
		return m, tea.Tick(a.TTL, func(time.Time) tea.Msg {
			return expireMsg{id: id}
		})

	case expireMsg:
		m.dismiss(msg.id)
	}
	return m, nil
}

func (m *Model) dismiss(id string) {
	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	m.alerts = kept
}

// Len returns the number of pending alerts.
func (m Model) Len() int {
	return len(m.alerts)
}

// Height returns the number of lines View takes.
func (m Model) Height() int {
	if len(m.alerts) == 0 {
		return 0
	}
	return lipgloss.Height(m.View())
}

// View renders the visible alerts, newest at the bottom.
func (m Model) View() string {
	if len(m.alerts) == 0 {
		return ""
	}

	visible := m.alerts
	if len(visible) > MaxVisible {
		visible = visible[len(visible)-MaxVisible:]
	}

	width := m.width / 2
	if width < 30 {
		width = 30
	}

	titleStyle := lipgloss.NewStyle().Bold(true)
	rows := make([]string, 0, len(visible))
	for _, a := range visible {
		body := titleStyle.Render(a.Icon + " " + a.Title)
		if a.Message != "" {
			body += "\n" + theme.DimmedStyle.Render(a.Message)
		}
		rows = append(rows, theme.ToastStyle.Width(width).Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rows...)
}

// SetWidth updates the terminal width.
func (m *Model) SetWidth(width int) {
	m.width = width
}
