// Package realtime is the push delivery: a WebSocket connection on which
// the server announces notifications, order status changes and payment
// outcomes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/notify"
)

// State is the connection state of a Channel.
type State int

const (
	StateDisabled State = iota
	StateDisconnected
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event names on the wire.
const (
	EventAuthenticate      = "authenticate"
	EventNewNotification   = "new-notification"
	EventOrderStatusUpdate = "order-status-update"
	EventPaymentSuccess    = "payment-success"
)

// Config configures a Channel.
type Config struct {
	// URL is the WebSocket endpoint (ws:// or wss://).
	URL string

	// Enabled is false when the deployment cannot host persistent
	// connections; the channel then stays disabled.
	Enabled bool

	// MaxAttempts is the number of consecutive failed attempts (dial errors
	// or connections that end right away) before the channel gives up until
	// the next Start.
	MaxAttempts int

	// Backoff is the fixed delay between reconnect attempts.
	Backoff time.Duration

	// StableAfter is how long a connection must stay up, without delivering
	// a frame, before it resets the attempt counter.
	StableAfter time.Duration

	// Header is sent with the upgrade request.
	Header http.Header

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// frame is the envelope of every message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type authenticatePayload struct {
	UserID string `json:"userId"`
}

type notificationPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type orderStatusPayload struct {
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
}

type paymentPayload struct {
	OrderNumber string `json:"orderNumber"`
}

// Channel is the push notification delivery. It exists only while a user
// is signed in and is stopped on logout.
type Channel struct {
	cfg    Config
	userID string
	log    *slog.Logger

	mu       gosync.Mutex
	state    State
	active   bool
	gen      uint64
	cancel   context.CancelFunc
	conn     *websocket.Conn
	handlers []notify.Handler
}

// New creates a channel that authenticates as userID.
func New(cfg Config, userID string, log *slog.Logger) *Channel {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = 30 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	state := StateDisconnected
	if !cfg.Enabled || cfg.URL == "" {
		state = StateDisabled
	}

	return &Channel{
		cfg:    cfg,
		userID: userID,
		log:    logger.OrDefault(log),
		state:  state,
	}
}

// OnNewItem registers a handler for pushed events. Each push is delivered
// as a one-event batch.
func (c *Channel) OnNewItem(h notify.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start connects in the background. It never reports connection failures:
// those are logged and the poller keeps delivering. Starting a disabled or
// already active channel is a no-op.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisabled || c.active {
		return nil
	}

	c.active = true
	c.gen++
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(runCtx, c.gen)
	return nil
}

// Stop closes the connection and ends reconnection. It is safe to call
// repeatedly and does not wait for the connection goroutine.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.active = false
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.state != StateDisabled {
		c.state = StateDisconnected
	}
}

// run dials, serves and redials until ctx ends or MaxAttempts consecutive
// attempts fail. A dial error is a failed attempt, and so is a connection
// that ends before delivering a frame or staying up for StableAfter. After
// a server close the first redial is immediate; later ones back off.
func (c *Channel) run(ctx context.Context, gen uint64) {
	failures := 0
	redialed := false

	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(gen, StateConnecting)
		conn, err := c.connect(ctx)
		if err != nil {
			failures++
			c.setState(gen, StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("realtime connect failed",
				"attempt", failures, "max_attempts", c.cfg.MaxAttempts, "error", err)
			if failures >= c.cfg.MaxAttempts {
				c.log.Error("realtime channel giving up; relying on polling", "attempts", failures)
				c.giveUp(gen)
				return
			}
			if !sleep(ctx, c.cfg.Backoff) {
				return
			}
			continue
		}

		if !c.attach(gen, conn) {
			conn.Close()
			return
		}
		c.log.Info("realtime channel connected", "url", c.cfg.URL)

		connectedAt := time.Now()
		serverClosed, frames := c.serve(ctx, gen, conn)

		// The reader has returned, so no listener of this connection is
		// left before the next dial.
		c.detach(gen, conn)
		if ctx.Err() != nil {
			return
		}

		if frames > 0 || time.Since(connectedAt) >= c.cfg.StableAfter {
			failures = 0
			redialed = false
		}
		if serverClosed && !redialed {
			redialed = true
			c.log.Info("realtime channel closed by server; reconnecting")
			continue
		}

		failures++
		if failures >= c.cfg.MaxAttempts {
			c.log.Error("realtime channel keeps closing; relying on polling", "attempts", failures)
			c.giveUp(gen)
			return
		}
		c.log.Warn("realtime channel dropped; reconnecting",
			"attempt", failures, "server_closed", serverClosed, "backoff", c.cfg.Backoff)
		if !sleep(ctx, c.cfg.Backoff) {
			return
		}
	}
}

// connect dials and performs the authenticate handshake.
func (c *Channel) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.cfg.URL, err)
	}

	data, err := json.Marshal(authenticatePayload{UserID: c.userID})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("encoding handshake: %w", err)
	}
	if err := conn.WriteJSON(frame{Event: EventAuthenticate, Data: data}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending handshake: %w", err)
	}
	return conn, nil
}

// serve reads frames until the connection ends. It reports whether the
// server closed the connection cleanly and how many frames arrived.
func (c *Channel) serve(ctx context.Context, gen uint64, conn *websocket.Conn) (serverClosed bool, frames int) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, frames
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.log.Warn("dropping malformed realtime frame", "error", err)
				continue
			}
			if ctx.Err() == nil {
				c.log.Debug("realtime read ended", "error", err)
			}
			return false, frames
		}
		frames++

		ev, ok := c.decode(f)
		if !ok {
			continue
		}
		c.dispatch(gen, ev)
	}
}

// decode maps a frame to an event. Unknown events are ignored.
func (c *Channel) decode(f frame) (notify.Event, bool) {
	switch f.Event {
	case EventNewNotification:
		var p notificationPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn("bad new-notification payload", "error", err)
			return notify.Event{}, false
		}
		return notify.Event{
			Kind:           notify.KindNotification,
			Subtype:        p.Type,
			NotificationID: p.ID,
			Title:          p.Title,
			Message:        p.Message,
		}, true

	case EventOrderStatusUpdate:
		var p orderStatusPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn("bad order-status-update payload", "error", err)
			return notify.Event{}, false
		}
		return notify.Event{
			Kind:        notify.KindOrderStatus,
			Subtype:     EventOrderStatusUpdate,
			Title:       fmt.Sprintf("Order %s updated", p.OrderNumber),
			Message:     fmt.Sprintf("Status is now %s", p.Status),
			OrderNumber: p.OrderNumber,
			Status:      p.Status,
		}, true

	case EventPaymentSuccess:
		var p paymentPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn("bad payment-success payload", "error", err)
			return notify.Event{}, false
		}
		return notify.Event{
			Kind:        notify.KindPayment,
			Subtype:     EventPaymentSuccess,
			Title:       "Payment successful",
			Message:     fmt.Sprintf("Payment for order %s went through", p.OrderNumber),
			OrderNumber: p.OrderNumber,
		}, true

	default:
		c.log.Debug("ignoring realtime event", "event", f.Event)
		return notify.Event{}, false
	}
}

// dispatch hands ev to the handlers unless gen has been stopped or
// replaced by a later Start.
func (c *Channel) dispatch(gen uint64, ev notify.Event) {
	c.mu.Lock()
	if !c.active || c.gen != gen {
		c.mu.Unlock()
		return
	}
	handlers := make([]notify.Handler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h([]notify.Event{ev})
	}
}

// attach records conn as the live connection if gen is still current.
func (c *Channel) attach(gen uint64, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.gen != gen {
		return false
	}
	c.conn = conn
	c.state = StateConnected
	return true
}

func (c *Channel) detach(gen uint64, conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	if c.active && c.gen == gen {
		c.state = StateDisconnected
	}
}

func (c *Channel) setState(gen uint64, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active && c.gen == gen {
		c.state = s
	}
}

// giveUp resets the active guard so a later Start may try again.
func (c *Channel) giveUp(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || !c.active {
		return
	}
	c.active = false
	c.cancel()
	c.state = StateDisconnected
}

// sleep waits d or until ctx is done, reporting whether it slept fully.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
