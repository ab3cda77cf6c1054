package notify

import (
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/shopfront/internal/logger"
)

// DefaultAlertTTL is how long an alert stays visible.
const DefaultAlertTTL = 5 * time.Second

// recentWindow bounds how many notification ids are remembered for
// duplicate suppression.
const recentWindow = 256

// Alert is a transient, auto-dismissing notice.
type Alert struct {
	ID      string
	Icon    string
	Title   string
	Message string
	TTL     time.Duration
}

// Alerter renders alerts. The terminal shell forwards them to its toast
// stack.
type Alerter interface {
	Alert(a Alert)
}

// AlerterFunc adapts a function to the Alerter interface.
type AlerterFunc func(a Alert)

// Alert calls f(a).
func (f AlerterFunc) Alert(a Alert) { f(a) }

// icons maps event subtypes to alert icons.
var icons = map[string]string{
	"order":               "📦",
	"payment":             "💳",
	"product":             "🛍",
	"message":             "💬",
	"system":              "⚙",
	"security":            "🔒",
	"promotion":           "🏷",
	"community":           "👥",
	"order-status-update": "🚚",
	"payment-success":     "✅",
	"summary":             "📬",
}

// genericIcon is used for subtypes missing from the table.
const genericIcon = "🔔"

// ErrorIcon marks alerts about failed user actions.
const ErrorIcon = "⚠"

// Icon returns the alert icon for a subtype.
func Icon(subtype string) string {
	if icon, ok := icons[subtype]; ok {
		return icon
	}
	return genericIcon
}

// Bridge turns delivered events into alerts and tells subscribers that
// notifications changed. It does not know which transport delivered them
// or who listens.
type Bridge struct {
	alerter Alerter
	ttl     time.Duration
	log     *slog.Logger

	mu     gosync.Mutex
	subs   map[int]func()
	nextID int
	recent *recentSet
}

// NewBridge creates a bridge rendering through alerter.
func NewBridge(alerter Alerter, ttl time.Duration, log *slog.Logger) *Bridge {
	if ttl <= 0 {
		ttl = DefaultAlertTTL
	}
	return &Bridge{
		alerter: alerter,
		ttl:     ttl,
		log:     logger.OrDefault(log),
		subs:    make(map[int]func()),
		recent:  newRecentSet(recentWindow),
	}
}

// Deliver renders one alert per event and, if any event touched the
// notification list, emits the refresh signal once. It has the Handler
// signature so it can be registered with any Delivery.
func (b *Bridge) Deliver(events []Event) {
	signal := false

	for _, ev := range events {
		if ev.touchesNotifications() {
			signal = true
		}
		if ev.NotificationID != "" && !b.markSeen(ev.NotificationID) {
			b.log.Debug("dropping duplicate notification", "id", ev.NotificationID)
			continue
		}

		subtype := ev.Subtype
		if ev.Kind == KindSummary {
			subtype = string(KindSummary)
		}
		b.alerter.Alert(Alert{
			ID:      uuid.NewString(),
			Icon:    Icon(subtype),
			Title:   ev.Title,
			Message: ev.Message,
			TTL:     b.ttl,
		})
	}

	if signal {
		b.emit()
	}
}

// Subscribe registers fn for the refresh signal. The returned function
// removes the subscription.
func (b *Bridge) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Signal emits the refresh signal without an alert, e.g. after the user
// marked notifications read.
func (b *Bridge) Signal() {
	b.emit()
}

func (b *Bridge) emit() {
	b.mu.Lock()
	subs := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// markSeen records id and reports whether it was new.
func (b *Bridge) markSeen(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recent.add(id)
}

// recentSet is a fixed-size set that forgets the oldest id first.
type recentSet struct {
	ids   map[string]struct{}
	order []string
	next  int
}

func newRecentSet(size int) *recentSet {
	return &recentSet{
		ids:   make(map[string]struct{}, size),
		order: make([]string, size),
	}
}

// add inserts id and reports whether it was absent.
func (r *recentSet) add(id string) bool {
	if _, ok := r.ids[id]; ok {
		return false
	}
	if old := r.order[r.next]; old != "" {
		delete(r.ids, old)
	}
	r.order[r.next] = id
	r.next = (r.next + 1) % len(r.order)
	r.ids[id] = struct{}{}
	return true
}
