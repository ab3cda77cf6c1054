// Package session owns the signed-in state: it logs in and out, keeps the
// token in the vault and runs one notification delivery per session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
)

// ErrMissingCredentials is returned when email or password is empty.
var ErrMissingCredentials = errors.New("email and password are required")

// Authenticator is the auth side of the REST API. api.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.Session, error)
	Register(ctx context.Context, req api.RegisterRequest) (model.Session, error)
}

// Vault persists the session. credential.Vault implements it.
type Vault interface {
	Load() (model.Session, error)
	Save(s model.Session) error
	Clear() error
}

// DeliveryFactory builds the notification delivery for a new session.
type DeliveryFactory func(s model.Session) notify.Delivery

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithDelivery makes every session run a delivery built by factory, with
// its events passed to handler.
func WithDelivery(factory DeliveryFactory, handler notify.Handler) Option {
	return func(m *Manager) {
		m.factory = factory
		m.handler = handler
	}
}

// Manager is the session flow. It is the only writer of the vault apart
// from the transport client's forced logout.
type Manager struct {
	auth    Authenticator
	vault   Vault
	factory DeliveryFactory
	handler notify.Handler
	log     *slog.Logger

	mu        gosync.Mutex
	current   model.Session
	delivery  notify.Delivery
	listeners map[int]func(model.Session)
	nextID    int
}

// New creates a signed-out manager. Call Resume to pick up a persisted
// session.
func New(auth Authenticator, vault Vault, opts ...Option) *Manager {
	m := &Manager{
		auth:      auth,
		vault:     vault,
		listeners: make(map[int]func(model.Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrDefault(m.log)
	return m
}

// Resume restores the persisted session, if any, and starts its delivery.
func (m *Manager) Resume(ctx context.Context) error {
	s, err := m.vault.Load()
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if !s.Authenticated() {
		return nil
	}
	m.begin(ctx, s)
	return nil
}

// Login signs in and starts the session's delivery.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	s, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.establish(ctx, s)
}

// Register creates an account and signs in as it.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	if req.Email == "" || req.Password == "" {
		return ErrMissingCredentials
	}
	if req.Role == "" {
		req.Role = model.RoleBuyer
	}

	s, err := m.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	return m.establish(ctx, s)
}

// Logout stops the delivery and clears the persisted session. The next
// session starts from a fresh notification baseline.
func (m *Manager) Logout() error {
	m.end()
	if err := m.vault.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	m.log.Info("signed out")
	return nil
}

// HandleUnauthorized is the transport client's 401 hook. The client has
// already cleared the vault. It does not block, so it is safe to run from
// inside a delivery's own fetch.
func (m *Manager) HandleUnauthorized() {
	if !m.Authenticated() {
		return
	}
	m.log.Warn("session rejected by server; signing out")
	m.end()
}

// Close stops the running delivery without signing out, so the session
// resumes on the next start.
func (m *Manager) Close() {
	m.mu.Lock()
	d := m.delivery
	m.delivery = nil
	m.mu.Unlock()

	if d != nil {
		d.Stop()
	}
}

// Current returns the signed-in session, or the zero session.
func (m *Manager) Current() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Authenticated reports whether a token is held.
func (m *Manager) Authenticated() bool {
	return m.Current().Authenticated()
}

// OnChange registers fn to be called with the new session after every
// login and logout. It returns a function that removes fn.
func (m *Manager) OnChange(fn func(model.Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) establish(ctx context.Context, s model.Session) error {
	if !s.Authenticated() {
		return errors.New("server returned no token")
	}
	if err := m.vault.Save(s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	m.log.Info("signed in", "user", s.User.ID, "role", s.User.Role)
	m.begin(ctx, s)
	return nil
}

// begin replaces any running session with s and starts its delivery. The
// delivery outlives the request context that signed in. The factory runs
// outside the lock since it may block on the UI.
func (m *Manager) begin(ctx context.Context, s model.Session) {
	var d notify.Delivery
	if m.factory != nil {
		d = m.factory(s)
		if m.handler != nil {
			d.OnNewItem(m.handler)
		}
	}

	m.mu.Lock()
	old := m.delivery
	m.current = s
	m.delivery = d
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if d != nil {
		if err := d.Start(context.WithoutCancel(ctx)); err != nil {
			m.log.Warn("starting notification delivery", "error", err)
		}
	}
	m.changed(s)
}

// end stops the delivery and forgets the session. The delivery is
// discarded with its watermark.
func (m *Manager) end() {
	m.mu.Lock()
	d := m.delivery
	m.delivery = nil
	m.current = model.Session{}
	m.mu.Unlock()

	if d != nil {
		d.Stop()
	}
	m.changed(model.Session{})
}

func (m *Manager) changed(s model.Session) {
	m.mu.Lock()
	fns := make([]func(model.Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
