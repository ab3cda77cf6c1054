package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/tests/testutil"
)

type fakeAuth struct {
	session model.Session
	err     error
	gotReq  api.RegisterRequest
}

func (f *fakeAuth) Login(context.Context, string, string) (model.Session, error) {
	return f.session, f.err
}

func (f *fakeAuth) Register(_ context.Context, req api.RegisterRequest) (model.Session, error) {
	f.gotReq = req
	return f.session, f.err
}

// fakeDelivery counts activations.
type fakeDelivery struct {
	mu       sync.Mutex
	starts   int
	stops    int
	handlers []notify.Handler
}

func (d *fakeDelivery) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	return nil
}

func (d *fakeDelivery) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *fakeDelivery) OnNewItem(h notify.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

var alice = model.Session{
	User:  model.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: model.RoleBuyer},
	Token: "tok-alice",
}

func newManager(t *testing.T, auth Authenticator, seed model.Session) (*Manager, *[]*fakeDelivery) {
	t.Helper()

	var built []*fakeDelivery
	factory := func(model.Session) notify.Delivery {
		d := &fakeDelivery{}
		built = append(built, d)
		return d
	}
	m := New(auth, testutil.NewTestVault(t, seed),
		WithLogger(logger.Discard()),
		WithDelivery(factory, func([]notify.Event) {}),
	)
	return m, &built
}

func TestLoginStartsDelivery(t *testing.T) {
	m, built := newManager(t, &fakeAuth{session: alice}, model.Session{})

	var changes []model.Session
	m.OnChange(func(s model.Session) { changes = append(changes, s) })

	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))

	assert.True(t, m.Authenticated())
	assert.Equal(t, alice, m.Current())
	require.Len(t, *built, 1)
	d := (*built)[0]
	assert.Equal(t, 1, d.starts)
	assert.Len(t, d.handlers, 1)
	require.Len(t, changes, 1)
	assert.Equal(t, "u1", changes[0].User.ID)

	stored, err := m.vault.Load()
	require.NoError(t, err)
	assert.Equal(t, alice.Token, stored.Token)
}

func TestLoginFailureKeepsSignedOut(t *testing.T) {
	m, built := newManager(t, &fakeAuth{err: errors.New("invalid credentials")}, model.Session{})

	err := m.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.False(t, m.Authenticated())
	assert.Empty(t, *built)

	assert.ErrorIs(t, m.Login(context.Background(), "", "x"), ErrMissingCredentials)
}

func TestRegisterDefaultsToBuyer(t *testing.T) {
	auth := &fakeAuth{session: alice}
	m, _ := newManager(t, auth, model.Session{})

	require.NoError(t, m.Register(context.Background(), api.RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "secret",
	}))
	assert.Equal(t, model.RoleBuyer, auth.gotReq.Role)
	assert.True(t, m.Authenticated())
}

func TestLogoutStopsDeliveryAndClearsVault(t *testing.T) {
	m, built := newManager(t, &fakeAuth{session: alice}, model.Session{})
	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))

	require.NoError(t, m.Logout())
	require.NoError(t, m.Logout())

	assert.False(t, m.Authenticated())
	assert.Equal(t, 1, (*built)[0].stops)

	stored, err := m.vault.Load()
	require.NoError(t, err)
	assert.False(t, stored.Authenticated())

	// A new login gets a new delivery and with it a fresh baseline.
	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))
	assert.Len(t, *built, 2)
}

func TestResumeStartsPersistedSession(t *testing.T) {
	m, built := newManager(t, &fakeAuth{}, alice)

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, alice, m.Current())
	require.Len(t, *built, 1)
	assert.Equal(t, 1, (*built)[0].starts)
}

func TestResumeWithoutSessionStaysSignedOut(t *testing.T) {
	m, built := newManager(t, &fakeAuth{}, model.Session{})

	require.NoError(t, m.Resume(context.Background()))
	assert.False(t, m.Authenticated())
	assert.Empty(t, *built)
}

func TestUnauthorizedResponseEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	vault := testutil.NewTestVault(t, alice)
	var built []*fakeDelivery
	var m *Manager
	client := api.NewClient(srv.URL, vault,
		api.WithLogger(logger.Discard()),
		api.WithUnauthorizedHandler(func() { m.HandleUnauthorized() }),
	)
	m = New(client, vault,
		WithLogger(logger.Discard()),
		WithDelivery(func(model.Session) notify.Delivery {
			d := &fakeDelivery{}
			built = append(built, d)
			return d
		}, nil),
	)
	require.NoError(t, m.Resume(context.Background()))

	_, err := client.GetCart(context.Background())
	require.True(t, api.IsAuthError(err))

	assert.False(t, m.Authenticated())
	assert.Equal(t, 1, built[0].stops)
	stored, err := vault.Load()
	require.NoError(t, err)
	assert.Empty(t, stored.Token)
}

func TestSelectDelivery(t *testing.T) {
	base := func() *model.AppConfig {
		return &model.AppConfig{
			API: model.APIConfig{BaseURL: "https://shop.example.com/api"},
			Realtime: model.RealtimeConfig{
				URL:             "wss://shop.example.com/ws",
				Enabled:         true,
				DisabledPattern: `(?i)\.vercel\.app`,
				MaxAttempts:     5,
				BackoffMS:       1000,
			},
			Notifications: model.NotificationsConfig{
				PollIntervalSec:  60,
				FetchLimit:       10,
				RedundantPolling: true,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*model.AppConfig)
		want   Mode
	}{
		{"push with redundant polling", func(*model.AppConfig) {}, ModeRealtimePolling},
		{"push only", func(c *model.AppConfig) { c.Notifications.RedundantPolling = false }, ModeRealtime},
		{"serverless host", func(c *model.AppConfig) { c.API.BaseURL = "https://shop.vercel.app/api" }, ModePolling},
		{"push disabled", func(c *model.AppConfig) { c.Realtime.Enabled = false }, ModePolling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			d, mode := SelectDelivery(cfg, nil, alice, logger.Discard())
			assert.NotNil(t, d)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestSelectedPollerDelivers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"notifications":[]}`))
			return
		}
		w.Write([]byte(`{"notifications":[{"id":"n1","type":"order","title":"Shipped","message":"On its way","createdAt":"2026-01-02T10:00:00Z"}]}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &model.AppConfig{
		Notifications: model.NotificationsConfig{PollIntervalSec: 1, FetchLimit: 10},
	}
	client := api.NewClient(srv.URL, testutil.NewTestVault(t, alice), api.WithLogger(logger.Discard()))

	d, mode := SelectDelivery(cfg, client, alice, logger.Discard())
	require.Equal(t, ModePolling, mode)

	got := make(chan []notify.Event, 1)
	d.OnNewItem(func(evs []notify.Event) { got <- evs })
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)

	select {
	case evs := <-got:
		require.Len(t, evs, 1)
		assert.Equal(t, "n1", evs[0].NotificationID)
		assert.Equal(t, "order", evs[0].Subtype)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery from the poller")
	}
}

func TestCloseKeepsSession(t *testing.T) {
	m, built := newManager(t, &fakeAuth{session: alice}, model.Session{})
	require.NoError(t, m.Login(context.Background(), "alice@example.com", "secret"))

	m.Close()
	assert.True(t, m.Authenticated())
	assert.Equal(t, 1, (*built)[0].stops)

	stored, err := m.vault.Load()
	require.NoError(t, err)
	assert.Equal(t, alice.Token, stored.Token)
}
