package app

import (
	"context"
	"errors"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/cart"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/session"
	"github.com/nhle/shopfront/internal/store"
	"github.com/nhle/shopfront/internal/ui/cartview"
	"github.com/nhle/shopfront/internal/ui/inbox"
	"github.com/nhle/shopfront/internal/ui/login"
)

// SessionChangedMsg is sent after every login and logout.
type SessionChangedMsg struct {
	Session model.Session
}

// DeliveryModeMsg names the transports chosen for the new session.
type DeliveryModeMsg struct {
	Mode session.Mode
}

// RefreshSignalMsg is the bridge's "notifications changed" signal.
type RefreshSignalMsg struct{}

// unreadCountMsg carries the number of unread notifications to the UI.
type unreadCountMsg struct {
	count int
	err   error
}

// resumedMsg is sent once the persisted session has been checked.
type resumedMsg struct {
	err error
}

// authResultMsg is sent after a login or registration attempt.
type authResultMsg struct {
	register bool
	err      error
}

// loggedOutMsg is sent after an explicit logout.
type loggedOutMsg struct {
	err error
}

// preferencesMsg carries the stored preferences of a new session.
type preferencesMsg struct {
	lastView string
	pageSize int
}

// resumeSession restores a persisted session. SessionChangedMsg arrives
// separately through the session listener.
func (m *Model) resumeSession() tea.Cmd {
	mgr := m.deps.Session
	return func() tea.Msg {
		return resumedMsg{err: mgr.Resume(context.Background())}
	}
}

// authenticate signs in or registers with the submitted form.
func (m *Model) authenticate(msg login.SubmitMsg) tea.Cmd {
	mgr := m.deps.Session
	return func() tea.Msg {
		ctx := context.Background()
		if msg.Register {
			err := mgr.Register(ctx, api.RegisterRequest{
				Name:     msg.Name,
				Email:    msg.Email,
				Password: msg.Password,
				Role:     msg.Role,
			})
			return authResultMsg{register: true, err: authError(err)}
		}
		return authResultMsg{err: authError(mgr.Login(ctx, msg.Email, msg.Password))}
	}
}

// authError turns transport errors into something fit for the form.
func authError(err error) error {
	if err == nil {
		return nil
	}
	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return errors.New(se.Message)
	}
	if api.IsAuthError(err) {
		return errors.New("invalid email or password")
	}
	return err
}

// logout ends the session on request and forgets its cart snapshot.
func (m *Model) logout() tea.Cmd {
	mgr := m.deps.Session
	db := m.deps.Store
	log := m.deps.Log
	userID := m.session.User.ID
	return func() tea.Msg {
		if err := mgr.Logout(); err != nil {
			return loggedOutMsg{err: err}
		}
		if db != nil && userID != "" {
			if err := db.DeleteCartSnapshot(context.Background(), userID); err != nil {
				log.Warn("deleting cart snapshot", "error", err)
			}
		}
		return loggedOutMsg{}
	}
}

// loadPreferences reads the view and page size a session starts with.
// Unreadable values fall back to the defaults.
func (m *Model) loadPreferences() tea.Cmd {
	db := m.deps.Store
	log := m.deps.Log
	return func() tea.Msg {
		prefs := preferencesMsg{lastView: store.ViewInbox, pageSize: inbox.DefaultPageSize}
		if db == nil {
			return prefs
		}

		ctx := context.Background()
		view, err := db.GetPreference(ctx, store.PrefLastView, store.ViewInbox)
		if err != nil {
			log.Warn("loading preference", "key", store.PrefLastView, "error", err)
		}
		prefs.lastView = view

		raw, err := db.GetPreference(ctx, store.PrefItemsPerPage, "")
		if err != nil {
			log.Warn("loading preference", "key", store.PrefItemsPerPage, "error", err)
		}
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			prefs.pageSize = n
		}
		return prefs
	}
}

// savePreference stores a preference off the UI goroutine.
func (m *Model) savePreference(key, value string) tea.Cmd {
	db := m.deps.Store
	log := m.deps.Log
	if db == nil {
		return nil
	}
	return func() tea.Msg {
		if err := db.SetPreference(context.Background(), key, value); err != nil {
			log.Warn("saving preference", "key", key, "error", err)
		}
		return nil
	}
}

// fetchUnreadCount returns a tea.Cmd that asks the server for the number
// of unread notifications.
func (m *Model) fetchUnreadCount() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		n, err := client.UnreadCount(context.Background())
		return unreadCountMsg{count: n, err: err}
	}
}

// signalRefresh emits the bridge signal off the UI goroutine; its
// subscribers send back into the program.
func (m *Model) signalRefresh() tea.Cmd {
	bridge := m.deps.Bridge
	return func() tea.Msg {
		bridge.Signal()
		return nil
	}
}

// startCart creates the cart store of a new session, shows the locally
// saved snapshot and fetches the real cart.
func (m *Model) startCart(s model.Session) tea.Cmd {
	m.stopCart()

	opts := []cart.Option{cart.WithLogger(m.deps.Log)}
	if m.deps.Store != nil {
		opts = append(opts, cart.WithSnapshots(m.deps.Store, s.User.ID))
	}
	c := cart.New(m.deps.Client, opts...)

	sender := m.deps.Sender
	m.unsubCart = c.Subscribe(func(st cart.State) {
		sender.Send(cartview.StateMsg{State: st})
	})
	m.cart = c
	m.cartView.SetCart(c)

	db := m.deps.Store
	log := m.deps.Log
	userID := s.User.ID
	return func() tea.Msg {
		ctx := context.Background()
		if db != nil {
			snap, err := db.GetCartSnapshot(ctx, userID)
			if err != nil {
				log.Warn("loading cart snapshot", "error", err)
			} else if snap != nil {
				c.Restore(snap.Cart)
			}
		}
		return cartview.ResultMsg{Op: "fetch", Err: c.Fetch(ctx)}
	}
}

// stopCart detaches the cart store of the ended session.
func (m *Model) stopCart() {
	if m.unsubCart != nil {
		m.unsubCart()
		m.unsubCart = nil
	}
	if m.cart != nil {
		m.cart.Close()
		m.cart = nil
	}
	m.cartView.SetCart(nil)
}
