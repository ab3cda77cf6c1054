package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopfront/internal/theme"
)

// Layout manages the terminal layout dimensions: a one-line header, the
// content area, the toast stack and a one-line status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area
// when toastHeight lines are taken by alerts.
func (l Layout) ContentHeight(toastHeight int) int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - toastHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top bar: title with the unread badge on the
// left, delivery status on the right.
func (l Layout) RenderHeader(title string, unread int, status string) string {
	left := theme.HeaderStyle.Render(title)
	if unread > 0 {
		left = lipgloss.JoinHorizontal(lipgloss.Top, left,
			theme.BadgeStyle.Render(fmt.Sprintf("%d", unread)))
	}

	right := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame joins header, content, toasts and status bar. Empty
// toasts take no space.
func (l Layout) RenderWithFrame(header, content, toasts, statusBar string) string {
	parts := []string{header, content}
	if toasts != "" {
		parts = append(parts, lipgloss.PlaceHorizontal(l.Width, lipgloss.Right, toasts))
	}
	parts = append(parts, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
