package app

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/cart"
	"github.com/nhle/shopfront/internal/keys"
	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/internal/session"
	"github.com/nhle/shopfront/internal/store"
	"github.com/nhle/shopfront/internal/ui"
	"github.com/nhle/shopfront/internal/ui/cartview"
	"github.com/nhle/shopfront/internal/ui/command"
	helpview "github.com/nhle/shopfront/internal/ui/help"
	"github.com/nhle/shopfront/internal/ui/inbox"
	"github.com/nhle/shopfront/internal/ui/login"
	"github.com/nhle/shopfront/internal/ui/toast"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewInbox
	ViewCart
	ViewHelp
	ViewCommand
)

// Deps are the long-lived services the shell drives.
type Deps struct {
	Client  *api.Client
	Session *session.Manager
	Bridge  *notify.Bridge
	Store   *store.SQLiteStore
	Sender  *Sender
	Log     *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the per-session cart store.
type Model struct {
	deps         Deps
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	ready        bool

	loginView   login.Model
	inboxView   inbox.Model
	cartView    cartview.Model
	helpView    helpview.Model
	commandView command.Model
	toasts      toast.Model

	session     model.Session
	cart        *cart.Store
	unsubCart   func()
	unreadCount int
	mode        session.Mode
	status      string
}

// New creates the root model and subscribes it to the bridge signal and
// session changes through deps.Sender.
func New(deps Deps) Model {
	deps.Log = logger.OrDefault(deps.Log)
	k := keys.DefaultKeyMap()

	sender := deps.Sender
	deps.Bridge.Subscribe(func() { sender.Send(RefreshSignalMsg{}) })
	deps.Session.OnChange(func(s model.Session) { sender.Send(SessionChangedMsg{Session: s}) })

	loginView := login.New(80, 24)
	loginView.Start()

	var favorites cartview.Favorites
	if deps.Store != nil {
		favorites = deps.Store
	}

	return Model{
		deps:        deps,
		currentView: ViewLogin,
		keys:        k,
		loginView:   loginView,
		inboxView:   inbox.New(deps.Client, k, 80, 24),
		cartView:    cartview.New(favorites, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		toasts:      toast.New(80),
	}
}

// Init shows the login form and checks for a persisted session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loginView.Init(),
		m.resumeSession(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The toast stack owns its own expiry ticks.
	var toastCmd tea.Cmd
	before := m.toasts.Len()
	m.toasts, toastCmd = m.toasts.Update(msg)
	if m.toasts.Len() != before {
		m.resize()
	}

	next, cmd := m.update(msg)
	return next, tea.Batch(toastCmd, cmd)
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.toasts.SetWidth(msg.Width)
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case SessionChangedMsg:
		return m.sessionChanged(msg.Session)

	case DeliveryModeMsg:
		m.mode = msg.Mode
		m.helpView.SetDeliveryMode(string(msg.Mode))
		return m, nil

	case RefreshSignalMsg:
		if !m.session.Authenticated() {
			return m, nil
		}
		cmds := []tea.Cmd{m.fetchUnreadCount()}
		if m.currentView == ViewInbox {
			cmds = append(cmds, m.inboxView.Load())
		}
		return m, tea.Batch(cmds...)

	case unreadCountMsg:
		if msg.err != nil {
			m.deps.Log.Debug("unread count failed", "error", msg.err)
			return m, nil
		}
		m.unreadCount = msg.count
		return m, nil

	case resumedMsg:
		if msg.err != nil {
			m.deps.Log.Warn("resuming session", "error", msg.err)
		}
		return m, nil

	case login.SubmitMsg:
		m.status = "signing in..."
		return m, m.authenticate(msg)

	case login.CancelMsg:
		return m, m.loginView.Start()

	case authResultMsg:
		m.status = ""
		if msg.err != nil {
			m.loginView.SetError(msg.err)
			if msg.register {
				return m, m.loginView.StartRegister()
			}
			return m, m.loginView.Start()
		}
		m.loginView.SetError(nil)
		return m, nil

	case preferencesMsg:
		if !m.session.Authenticated() {
			return m, nil
		}
		m.inboxView.SetPageSize(msg.pageSize)
		if msg.lastView == store.ViewCart && m.currentView == ViewInbox {
			m.currentView = ViewCart
		}
		return m, m.inboxView.Load()

	case inbox.PageSizeMsg:
		return m, m.savePreference(store.PrefItemsPerPage, strconv.Itoa(msg.Size))

	case loggedOutMsg:
		if msg.err != nil {
			m.status = "logout: " + msg.err.Error()
		}
		return m, nil

	case inbox.LoadedMsg:
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, cmd

	case inbox.ChangedMsg:
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, tea.Batch(cmd, m.signalRefresh())

	// The cart spinner keeps ticking while another view is showing.
	case cartview.StateMsg, cartview.ResultMsg, spinner.TickMsg:
		var cmd tea.Cmd
		m.cartView, cmd = m.cartView.Update(msg)
		return m, cmd

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey handles keys that work regardless of the active view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, m.quit(), true
	}

	// The login form and the palette own every other key.
	if m.currentView == ViewLogin {
		return m, nil, false
	}
	if m.currentView == ViewCommand {
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit(), true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Inbox):
		return m, m.executeCommand(command.Inbox), true

	case key.Matches(msg, m.keys.Cart):
		return m, m.executeCommand(command.Cart), true

	case key.Matches(msg, m.keys.Logout):
		return m, m.executeCommand(command.Logout), true

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewInbox {
			return m, m.executeCommand(command.Refresh), true
		}
	}
	return m, nil, false
}

// sessionChanged switches between the signed-in views and the login form.
func (m Model) sessionChanged(s model.Session) (Model, tea.Cmd) {
	if s.Authenticated() {
		m.session = s
		m.currentView = ViewInbox
		m.status = ""
		return m, tea.Batch(
			m.startCart(s),
			m.cartView.Init(),
			m.loadPreferences(),
			m.fetchUnreadCount(),
		)
	}

	wasSignedIn := m.session.Authenticated()
	m.stopCart()
	m.session = model.Session{}
	m.unreadCount = 0
	m.mode = ""
	m.currentView = ViewLogin
	if wasSignedIn {
		m.status = "signed out"
	}
	return m, m.loginView.Start()
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewCart:
		m.cartView, cmd = m.cartView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// resize lays the views out around the toast stack.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	w := m.layout.ContentWidth()
	h := m.layout.ContentHeight(m.toasts.Height())
	m.loginView.SetSize(w, h)
	m.inboxView.SetSize(w, h)
	m.cartView.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Shopfront", m.unreadCount, m.headerStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), m.toasts.View(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewInbox:
		return m.inboxView.View()
	case ViewCart:
		return m.cartView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// headerStatus describes who is signed in and how notifications arrive.
func (m Model) headerStatus() string {
	if !m.session.Authenticated() {
		return "signed out"
	}
	name := m.session.User.Name
	if name == "" {
		name = m.session.User.Email
	}
	if m.mode == "" {
		return name
	}
	return fmt.Sprintf("%s · %s", name, m.mode)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.status != "" {
		return m.status
	}

	switch m.currentView {
	case ViewLogin:
		return "enter submit | ctrl+r sign in/up | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewCart:
		return "+/- quantity | d remove | f favorite | E empty | r refresh | i inbox | q quit"
	default:
		return "m read | M all read | d delete | X clear read | p page size | c cart | : command | ? help | q quit"
	}
}

// executeCommand handles a command name from the palette or a shortcut.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case command.Refresh:
		if m.currentView == ViewCart {
			return m.cartView.Refresh()
		}
		return tea.Batch(m.inboxView.Load(), m.fetchUnreadCount())
	case command.Inbox:
		m.currentView = ViewInbox
		return tea.Batch(m.inboxView.Load(), m.savePreference(store.PrefLastView, store.ViewInbox))
	case command.Cart:
		m.currentView = ViewCart
		return tea.Batch(m.cartView.Refresh(), m.savePreference(store.PrefLastView, store.ViewCart))
	case command.MarkAllRead:
		return m.inboxView.MarkAllRead()
	case command.ClearRead:
		return m.inboxView.ClearRead()
	case command.ClearCart:
		return m.cartView.ClearCart()
	case command.Logout:
		return m.logout()
	case command.Quit:
		return m.quit()
	default:
		return nil
	}
}

// quit stops the delivery, keeping the session for the next start.
func (m *Model) quit() tea.Cmd {
	m.deps.Session.Close()
	m.stopCart()
	return tea.Quit
}
