package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shopfront/internal/notify"
)

func TestShowAndExpire(t *testing.T) {
	m := New(100)

	m, cmd := m.Update(ShowMsg{Alert: notify.Alert{ID: "a1", Icon: "📦", Title: "Order shipped", TTL: time.Millisecond}})
	require.NotNil(t, cmd)
	m, _ = m.Update(ShowMsg{Alert: notify.Alert{ID: "a2", Icon: "💳", Title: "Payment received"}})

	assert.Equal(t, 2, m.Len())
	assert.Contains(t, m.View(), "Order shipped")
	assert.Positive(t, m.Height())

	expired := cmd()
	m, _ = m.Update(expired)
	assert.Equal(t, 1, m.Len())
	assert.NotContains(t, m.View(), "Order shipped")
	assert.Contains(t, m.View(), "Payment received")
}

func TestOnlyNewestVisible(t *testing.T) {
	m := New(100)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		m, _ = m.Update(ShowMsg{Alert: notify.Alert{ID: id, Title: "alert-" + id}})
	}

	view := m.View()
	assert.NotContains(t, view, "alert-1")
	assert.Contains(t, view, "alert-5")
	assert.Equal(t, 5, m.Len())
}

func TestEmptyStackTakesNoSpace(t *testing.T) {
	m := New(80)
	assert.Empty(t, m.View())
	assert.Zero(t, m.Height())
}
