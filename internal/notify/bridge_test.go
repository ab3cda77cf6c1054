package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shopfront/internal/logger"
)

type recordingAlerter struct {
	alerts []Alert
}

func (r *recordingAlerter) Alert(a Alert) {
	r.alerts = append(r.alerts, a)
}

func TestIconFallsBackToGeneric(t *testing.T) {
	assert.Equal(t, "📦", Icon("order"))
	assert.Equal(t, "✅", Icon("payment-success"))
	assert.Equal(t, genericIcon, Icon("warranty"))
	assert.Equal(t, genericIcon, Icon(""))
}

func TestBridgeAlertsPerEventAndSignalsOnce(t *testing.T) {
	rec := &recordingAlerter{}
	b := NewBridge(rec, 0, logger.Discard())

	signals := 0
	b.Subscribe(func() { signals++ })

	b.Deliver([]Event{
		{Kind: KindNotification, Subtype: "order", NotificationID: "n1", Title: "one"},
		{Kind: KindNotification, Subtype: "unknown", NotificationID: "n2", Title: "two"},
		{Kind: KindSummary, Title: "4 more new notifications"},
	})

	require.Len(t, rec.alerts, 3)
	assert.Equal(t, "📦", rec.alerts[0].Icon)
	assert.Equal(t, genericIcon, rec.alerts[1].Icon)
	assert.Equal(t, "📬", rec.alerts[2].Icon)
	assert.Equal(t, DefaultAlertTTL, rec.alerts[0].TTL)
	assert.NotEqual(t, rec.alerts[0].ID, rec.alerts[1].ID)
	assert.Equal(t, 1, signals)
}

func TestBridgeOrderEventsDoNotSignal(t *testing.T) {
	rec := &recordingAlerter{}
	b := NewBridge(rec, 0, logger.Discard())

	signals := 0
	b.Subscribe(func() { signals++ })

	b.Deliver([]Event{{Kind: KindOrderStatus, Subtype: "order-status-update", Title: "Order #42"}})
	b.Deliver([]Event{{Kind: KindPayment, Subtype: "payment-success", Title: "Paid"}})

	assert.Len(t, rec.alerts, 2)
	assert.Zero(t, signals)
}

func TestBridgeDropsDuplicateNotifications(t *testing.T) {
	rec := &recordingAlerter{}
	b := NewBridge(rec, 0, logger.Discard())

	b.Deliver([]Event{{Kind: KindNotification, NotificationID: "n1", Title: "pushed"}})
	b.Deliver([]Event{
		{Kind: KindNotification, NotificationID: "n1", Title: "polled"},
		{Kind: KindNotification, NotificationID: "n2", Title: "fresh"},
	})

	require.Len(t, rec.alerts, 2)
	assert.Equal(t, "pushed", rec.alerts[0].Title)
	assert.Equal(t, "fresh", rec.alerts[1].Title)
}

func TestBridgeUnsubscribe(t *testing.T) {
	b := NewBridge(AlerterFunc(func(Alert) {}), 0, logger.Discard())

	calls := 0
	unsubscribe := b.Subscribe(func() { calls++ })
	b.Signal()
	unsubscribe()
	b.Signal()

	assert.Equal(t, 1, calls)
}

func TestRecentSetForgetsOldest(t *testing.T) {
	r := newRecentSet(2)
	assert.True(t, r.add("a"))
	assert.True(t, r.add("b"))
	assert.False(t, r.add("a"))
	assert.True(t, r.add("c"))
	assert.True(t, r.add("a"), "a should have been evicted by c")
}

type fakeDelivery struct {
	started, stopped int
	handlers         []Handler
	startErr         error
}

func (f *fakeDelivery) Start(context.Context) error { f.started++; return f.startErr }
func (f *fakeDelivery) Stop()                       { f.stopped++ }
func (f *fakeDelivery) OnNewItem(h Handler)         { f.handlers = append(f.handlers, h) }

func TestCombineFansOut(t *testing.T) {
	a := &fakeDelivery{}
	b := &fakeDelivery{startErr: errors.New("dial failed")}
	d := Combine(a, b)

	d.OnNewItem(func([]Event) {})
	err := d.Start(context.Background())
	d.Stop()

	assert.ErrorContains(t, err, "dial failed")
	assert.Equal(t, 1, a.started)
	assert.Equal(t, 1, b.started)
	assert.Equal(t, 1, a.stopped)
	assert.Equal(t, 1, b.stopped)
	assert.Len(t, a.handlers, 1)
	assert.Len(t, b.handlers, 1)
}
