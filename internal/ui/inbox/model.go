// Package inbox is the notification list view. It reads and mutates the
// server list directly; the header badge refreshes from ChangedMsg.
package inbox

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopfront/internal/keys"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/theme"
)

// PageSizes are the page sizes the inbox cycles through.
var PageSizes = []int{10, 25, 50}

// DefaultPageSize is used until a preference says otherwise.
const DefaultPageSize = 50

// Source is the notification side of the REST API. api.Client implements it.
type Source interface {
	ListNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	ClearReadNotifications(ctx context.Context) error
}

// LoadedMsg carries a freshly fetched list.
type LoadedMsg struct {
	Notifications []model.Notification
	Err           error
}

// PageSizeMsg reports a page size picked by the user.
type PageSizeMsg struct {
	Size int
}

// ChangedMsg reports a finished mutation. Err is shown to the user; the
// list is reloaded either way.
type ChangedMsg struct {
	Err error
}

// Model is the inbox view.
type Model struct {
	list   list.Model
	source Source
	keys   *keys.KeyMap
	limit  int
	err    error
	width  int
	height int
}

// New creates an inbox over source.
func New(source Source, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		source: source,
		keys:   k,
		limit:  DefaultPageSize,
		width:  width,
		height: height,
	}
}

// Init loads the list.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Update handles messages for the inbox.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(msg.Notifications))
		for i, n := range msg.Notifications {
			items[i] = Item{Notification: n}
		}
		return m, m.list.SetItems(items)

	case ChangedMsg:
		m.err = msg.Err
		return m, m.Load()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.PageSize) {
			m.limit = nextPageSize(m.limit)
			size := m.limit
			return m, tea.Batch(m.Load(), func() tea.Msg { return PageSizeMsg{Size: size} })
		}
		if cmd, ok := m.handleKeys(msg); ok {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.MarkRead), key.Matches(msg, m.keys.Select):
		if n, ok := m.Selected(); ok && !n.IsRead {
			return m.mutate(func(ctx context.Context) error {
				return m.source.MarkNotificationRead(ctx, n.ID)
			}), true
		}
		return nil, true

	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.Selected(); ok {
			return m.mutate(func(ctx context.Context) error {
				return m.source.DeleteNotification(ctx, n.ID)
			}), true
		}
		return nil, true

	case key.Matches(msg, m.keys.MarkAllRead):
		return m.MarkAllRead(), true

	case key.Matches(msg, m.keys.ClearRead):
		return m.ClearRead(), true
	}
	return nil, false
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// PageSize returns how many notifications a load fetches.
func (m Model) PageSize() int {
	return m.limit
}

// SetPageSize sets how many notifications a load fetches. Non-positive
// sizes are ignored.
func (m *Model) SetPageSize(n int) {
	if n > 0 {
		m.limit = n
	}
}

// nextPageSize returns the page size after n in PageSizes, wrapping
// around. A size not in the list starts over at the first.
func nextPageSize(n int) int {
	for i, size := range PageSizes {
		if size == n {
			return PageSizes[(i+1)%len(PageSizes)]
		}
	}
	return PageSizes[0]
}

// Load returns a command that fetches the list.
func (m Model) Load() tea.Cmd {
	src := m.source
	limit := m.limit
	return func() tea.Msg {
		ns, err := src.ListNotifications(context.Background(), limit)
		return LoadedMsg{Notifications: ns, Err: err}
	}
}

// MarkAllRead returns a command that marks every notification read.
func (m Model) MarkAllRead() tea.Cmd {
	return m.mutate(m.source.MarkAllNotificationsRead)
}

// ClearRead returns a command that deletes read notifications.
func (m Model) ClearRead() tea.Cmd {
	return m.mutate(m.source.ClearReadNotifications)
}

func (m Model) mutate(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return ChangedMsg{Err: fn(context.Background())}
	}
}

// View renders the inbox.
func (m Model) View() string {
	var errLine string
	if m.err != nil {
		errLine = theme.ErrorStyle.Render(m.err.Error())
	}

	if len(m.list.Items()) == 0 {
		empty := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height-lipgloss.Height(errLine)).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications.\nYou're all caught up.")
		if errLine == "" {
			return empty
		}
		return lipgloss.JoinVertical(lipgloss.Left, errLine, empty)
	}

	if errLine == "" {
		return m.list.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, errLine, m.list.View())
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}
