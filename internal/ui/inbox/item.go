package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	parts := []string{
		string(i.Notification.Type),
		relativeTime(i.Notification.CreatedAt),
	}
	if i.Notification.Priority != "" {
		parts = append(parts, string(i.Notification.Priority))
	}
	return strings.Join(parts, " | ")
}

// Delegate renders one notification per line.
type Delegate struct{}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a notification: icon, unread dot, title, then a dimmed
// detail line.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification

	dot := " "
	if !n.IsRead {
		dot = theme.PriorityStyle(string(n.Priority)).Render("●")
	}

	label := theme.TypeLabelStyle(string(n.Type)).Render(string(n.Type))
	first := fmt.Sprintf("%s %s %s %s", dot, notify.Icon(string(n.Type)), n.Title, label)
	second := theme.DimmedStyle.Render(truncate(n.Message, m.Width()-6) + "  " + relativeTime(n.CreatedAt))

	style := theme.ListItemStyle
	if index == m.Index() {
		style = theme.SelectedItemStyle
	}
	if n.IsRead && index != m.Index() {
		first = theme.DimmedStyle.Render(first)
	}
	fmt.Fprint(w, style.Render(first+"\n"+second))
}

// relativeTime renders a compact age such as "5m ago".
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
