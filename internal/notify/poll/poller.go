// Package poll detects new notifications by periodically fetching the
// newest page and diffing it against a last-seen watermark.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
)

const (
	// DefaultInterval is the time between checks.
	DefaultInterval = 60 * time.Second

	// DefaultLimit is how many notifications a check fetches.
	DefaultLimit = 10

	// MaxAlerts is the number of individual alerts per cycle; the rest are
	// folded into one summary alert.
	MaxAlerts = 3

	// fetchTimeout is the maximum time allowed for a single fetch.
	fetchTimeout = 30 * time.Second
)

// Lister fetches the newest notifications, newest first. api.Client
// implements it.
type Lister interface {
	ListNotifications(ctx context.Context, limit int) ([]model.Notification, error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between checks.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLimit sets how many notifications each check fetches.
func WithLimit(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// Poller is the polling notification delivery. One Poller is created per
// signed-in session and stopped on logout.
type Poller struct {
	lister   Lister
	interval time.Duration
	limit    int
	log      *slog.Logger

	// checkMu serializes checks so a manual refresh and a tick never
	// race on the watermark.
	checkMu gosync.Mutex

	mu       gosync.Mutex
	active   bool
	gen      uint64
	cancel   context.CancelFunc
	stopCh   chan struct{}
	handlers []notify.Handler

	// baselined is set once the first fetch after a fresh start has been
	// recorded; lastSeen and lastSeenAt are the watermark.
	baselined  bool
	lastSeen   string
	lastSeenAt time.Time
}

// New creates a Poller reading from lister.
func New(lister Lister, opts ...Option) *Poller {
	p := &Poller{
		lister:   lister,
		interval: DefaultInterval,
		limit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrDefault(p.log)
	return p
}

// OnNewItem registers a handler called once per cycle that found new
// notifications.
func (p *Poller) OnNewItem(h notify.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
}

// Start runs one check immediately and then one per interval until Stop
// or ctx is done. Starting an active poller is a no-op, so there is never
// more than one timer.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return nil
	}
	p.active = true
	p.gen++
	gen := p.gen
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	go p.run(loopCtx, gen, stopCh)
	return nil
}

// Stop cancels the timer and any in-flight fetch and resets the active
// guard. The watermark is kept, so a later Start resumes from it. Stop
// does not wait for the loop goroutine: it may be called from inside a
// fetch (a 401 triggers logout), and late results are discarded by
// generation.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}

	p.active = false
	p.cancel()
	close(p.stopCh)
}

// Active reports whether the poller is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// ClearWatermark forgets the last-seen notification so the next check is
// a new baseline. Used on logout.
func (p *Poller) ClearWatermark() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baselined = false
	p.lastSeen = ""
	p.lastSeenAt = time.Time{}
}

// Watermark returns the last-seen notification id.
func (p *Poller) Watermark() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Refresh runs a check now, outside the schedule. It does nothing when
// the poller is stopped.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	gen, active := p.gen, p.active
	p.mu.Unlock()

	if !active {
		return nil
	}
	return p.check(ctx, gen)
}

// run is the polling loop for one activation.
func (p *Poller) run(ctx context.Context, gen uint64, stopCh <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial check immediately
	_ = p.check(ctx, gen)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			p.expire(gen)
			return
		case <-ticker.C:
			_ = p.check(ctx, gen)
		}
	}
}

// expire resets the active guard when the parent context ends the loop
// without Stop, so a later Start is not mistaken for a duplicate.
func (p *Poller) expire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.current(gen) {
		return
	}
	p.active = false
	p.cancel()
	close(p.stopCh)
}

// current reports whether gen is still the active generation.
func (p *Poller) current(gen uint64) bool {
	return p.active && p.gen == gen
}

// check performs one cycle. Errors meaning the session is gone are
// swallowed; others are logged and returned, and never stop the loop.
func (p *Poller) check(ctx context.Context, gen uint64) error {
	p.checkMu.Lock()
	defer p.checkMu.Unlock()

	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	items, err := p.lister.ListNotifications(fetchCtx, p.limit)
	if err != nil {
		switch {
		case api.IsUnauthenticated(err):
			// Expected while a logout is racing the timer.
			return nil
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return nil
		}
		p.log.Warn("notification poll failed", "error", err)
		return fmt.Errorf("polling notifications: %w", err)
	}

	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return nil
	}

	if !p.baselined {
		// The first page after a fresh start is history, not news.
		p.baselined = true
		if len(items) > 0 {
			p.lastSeen = items[0].ID
			p.lastSeenAt = items[0].CreatedAt
		}
		baseline := p.lastSeen
		p.mu.Unlock()
		p.log.Debug("notification baseline recorded", "last_seen", baseline)
		return nil
	}

	fresh := newerThan(items, p.lastSeen, p.lastSeenAt)
	if len(fresh) == 0 {
		p.mu.Unlock()
		return nil
	}

	p.lastSeen = fresh[0].ID
	p.lastSeenAt = fresh[0].CreatedAt
	handlers := make([]notify.Handler, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	p.log.Info("new notifications", "count", len(fresh), "last_seen", fresh[0].ID)

	events := batchEvents(fresh)
	for _, h := range handlers {
		h(events)
	}
	return nil
}

// newerThan scans a newest-first page until it reaches the watermark,
// either by id or by an item created before the watermark (the watermark
// item itself may have been deleted). A watermark without an id matches
// any item not created after it. An empty watermark after the baseline
// means every item is new.
func newerThan(items []model.Notification, lastSeen string, lastSeenAt time.Time) []model.Notification {
	for i, n := range items {
		if lastSeen != "" && n.ID == lastSeen {
			return items[:i]
		}
		if lastSeenAt.IsZero() || n.CreatedAt.IsZero() {
			continue
		}
		if n.CreatedAt.Before(lastSeenAt) || (lastSeen == "" && !n.CreatedAt.After(lastSeenAt)) {
			return items[:i]
		}
	}
	return items
}

// batchEvents turns the new notifications (newest first) into the events
// of one cycle: the MaxAlerts newest in chronological order, followed by
// a summary for the rest.
func batchEvents(fresh []model.Notification) []notify.Event {
	shown := fresh
	if len(shown) > MaxAlerts {
		shown = shown[:MaxAlerts]
	}

	events := make([]notify.Event, 0, len(shown)+1)
	for i := len(shown) - 1; i >= 0; i-- {
		n := shown[i]
		events = append(events, notify.Event{
			Kind:           notify.KindNotification,
			Subtype:        string(n.Type),
			NotificationID: n.ID,
			Title:          n.Title,
			Message:        n.Message,
		})
	}

	if rest := len(fresh) - len(shown); rest > 0 {
		events = append(events, notify.Event{
			Kind:    notify.KindSummary,
			Subtype: string(notify.KindSummary),
			Title:   fmt.Sprintf("%d more new notifications", rest),
			Message: "Open the inbox to see them all.",
		})
	}
	return events
}
