package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"refresh", Refresh},
		{"  Mark   ALL read ", MarkAllRead},
		{"q", Quit},
		{"sync", Refresh},
		{"bogus", "bogus"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestEnterEmitsKnownCommand(t *testing.T) {
	m := New(80, 24)
	m.input.SetValue("clear read")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg(ClearRead), cmd())
	assert.Empty(t, m.input.Value())
}

func TestEnterRejectsUnknownCommand(t *testing.T) {
	m := New(80, 24)
	m.input.SetValue("checkout")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "unknown command: checkout")
}
