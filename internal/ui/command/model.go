package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopfront/internal/theme"
)

// Command names understood by the application.
const (
	Refresh     = "refresh"
	Inbox       = "inbox"
	Cart        = "cart"
	MarkAllRead = "mark all read"
	ClearRead   = "clear read"
	ClearCart   = "clear cart"
	Logout      = "logout"
	Quit        = "quit"
)

// Names lists every command, offered as completions.
var Names = []string{Refresh, Inbox, Cart, MarkAllRead, ClearRead, ClearCart, Logout, Quit}

// aliases maps short forms to command names.
var aliases = map[string]string{
	"r":    Refresh,
	"sync": Refresh,
	"n":    Inbox,
	"read": MarkAllRead,
	"q":    Quit,
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Normalize resolves aliases and case. Unknown input is returned trimmed
// and lower-cased.
func Normalize(input string) string {
	cmd := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if name, ok := aliases[cmd]; ok {
		return name
	}
	return cmd
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Names)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		cmd := Normalize(m.input.Value())
		m.input.Reset()
		if cmd == "" {
			return m, nil
		}
		if !known(cmd) {
			m.err = "unknown command: " + cmd
			return m, nil
		}
		m.err = ""
		return m, func() tea.Msg {
			return CommandMsg(cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func known(cmd string) bool {
	for _, name := range Names {
		if name == cmd {
			return true
		}
	}
	return false
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.err = ""
	return m.input.Focus()
}
