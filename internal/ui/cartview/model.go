// Package cartview renders the cart session store and turns key presses
// into cart mutations.
package cartview

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/nhle/shopfront/internal/cart"
	"github.com/nhle/shopfront/internal/keys"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/internal/theme"
	"github.com/nhle/shopfront/internal/ui/toast"
)

// Cart is the part of cart.Store the view drives.
type Cart interface {
	Fetch(ctx context.Context) error
	Update(ctx context.Context, itemID string, quantity int) error
	Remove(ctx context.Context, itemID string) error
	Clear(ctx context.Context) error
}

// Favorites toggles the favorite flag of a product. store.SQLiteStore
// implements it.
type Favorites interface {
	ToggleFavorite(ctx context.Context, productID string) (bool, error)
	GetFavorites(ctx context.Context) ([]string, error)
}

// StateMsg carries a cart store change into the program.
type StateMsg struct {
	State cart.State
}

// ResultMsg reports a finished cart operation.
type ResultMsg struct {
	Op  string
	Err error
}

// favoriteMsg reports a toggled favorite.
type favoriteMsg struct {
	productID string
	on        bool
	err       error
}

// favoritesLoadedMsg carries the stored favorites.
type favoritesLoadedMsg struct {
	ids []string
}

// Model is the cart view.
type Model struct {
	cart      Cart
	favorites Favorites
	keys      *keys.KeyMap
	spinner   spinner.Model

	state  cart.State
	cursor int
	faves  map[string]bool
	err    error
	width  int
	height int
}

// New creates a cart view. The cart is set per session with SetCart.
func New(favorites Favorites, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		favorites: favorites,
		keys:      k,
		spinner:   sp,
		state:     cart.State{Cart: model.EmptyCart()},
		faves:     make(map[string]bool),
		width:     width,
		height:    height,
	}
}

// SetCart switches to the store of a new session; nil clears the view.
func (m *Model) SetCart(c Cart) {
	m.cart = c
	m.state = cart.State{Cart: model.EmptyCart()}
	m.cursor = 0
	m.err = nil
}

// Init loads the favorites and starts the loading spinner. The cart
// itself is fetched by whoever owns the session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadFavorites(), m.Tick)
}

// Tick returns the spinner's next tick message.
func (m Model) Tick() tea.Msg {
	return m.spinner.Tick()
}

// Refresh returns a command that re-fetches the cart.
func (m Model) Refresh() tea.Cmd {
	return m.run("fetch", func(ctx context.Context, c Cart) error {
		return c.Fetch(ctx)
	})
}

// ClearCart returns a command that empties the cart.
func (m Model) ClearCart() tea.Cmd {
	return m.run("clear", func(ctx context.Context, c Cart) error {
		return c.Clear(ctx)
	})
}

// Update handles messages for the cart view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = msg.State
		if n := len(m.state.Cart.Items); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		return m, nil

	case ResultMsg:
		m.err = msg.Err
		if msg.Err == nil {
			return m, nil
		}
		return m, failureToast(msg)

	case favoritesLoadedMsg:
		m.faves = make(map[string]bool, len(msg.ids))
		for _, id := range msg.ids {
			m.faves[id] = true
		}
		return m, nil

	case favoriteMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.faves[msg.productID] = msg.on
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m, m.handleKeys(msg)
	}
	return m, nil
}

// failureToast shows a failed cart operation as a transient alert.
func failureToast(r ResultMsg) tea.Cmd {
	alert := notify.Alert{
		ID:      uuid.NewString(),
		Icon:    notify.ErrorIcon,
		Title:   fmt.Sprintf("Cart %s failed", r.Op),
		Message: r.Err.Error(),
	}
	return func() tea.Msg { return toast.ShowMsg{Alert: alert} }
}

func (m *Model) handleKeys(msg tea.KeyMsg) tea.Cmd {
	items := m.state.Cart.Items

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}
		return nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return nil

	case key.Matches(msg, m.keys.Refresh):
		return m.Refresh()

	case key.Matches(msg, m.keys.Empty):
		return m.ClearCart()
	}

	if len(items) == 0 {
		return nil
	}
	line := items[m.cursor]

	switch {
	case key.Matches(msg, m.keys.Increase):
		return m.setQuantity(line, line.Quantity+1)

	case key.Matches(msg, m.keys.Decrease):
		if line.Quantity <= 1 {
			return m.remove(line)
		}
		return m.setQuantity(line, line.Quantity-1)

	case key.Matches(msg, m.keys.Delete):
		return m.remove(line)

	case key.Matches(msg, m.keys.Favorite):
		return m.toggleFavorite(line.ProductID)
	}
	return nil
}

func (m Model) setQuantity(line model.CartItem, qty int) tea.Cmd {
	id := line.ID
	return m.run("update", func(ctx context.Context, c Cart) error {
		return c.Update(ctx, id, qty)
	})
}

func (m Model) remove(line model.CartItem) tea.Cmd {
	id := line.ID
	return m.run("remove", func(ctx context.Context, c Cart) error {
		return c.Remove(ctx, id)
	})
}

// run executes op against the current cart off the UI goroutine. State
// changes arrive separately as StateMsg.
func (m Model) run(op string, fn func(context.Context, Cart) error) tea.Cmd {
	c := m.cart
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		return ResultMsg{Op: op, Err: fn(context.Background(), c)}
	}
}

func (m Model) toggleFavorite(productID string) tea.Cmd {
	favs := m.favorites
	if favs == nil {
		return nil
	}
	return func() tea.Msg {
		on, err := favs.ToggleFavorite(context.Background(), productID)
		return favoriteMsg{productID: productID, on: on, err: err}
	}
}

func (m Model) loadFavorites() tea.Cmd {
	favs := m.favorites
	if favs == nil {
		return nil
	}
	return func() tea.Msg {
		ids, err := favs.GetFavorites(context.Background())
		if err != nil {
			return favoriteMsg{err: err}
		}
		return favoritesLoadedMsg{ids: ids}
	}
}

// View renders the cart lines and the server totals.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("Cart")
	if m.state.Loading {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", m.spinner.View())
	}

	rows := []string{title, ""}
	if m.err != nil {
		rows = append(rows, theme.ErrorStyle.Render(m.err.Error()), "")
	}

	items := m.state.Cart.Items
	if len(items) == 0 {
		rows = append(rows, theme.DimmedStyle.Render("Your cart is empty."))
		return lipgloss.NewStyle().Width(m.width).Height(m.height).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	for i, line := range items {
		rows = append(rows, m.renderLine(i, line))
	}

	rows = append(rows, "",
		fmt.Sprintf("%d items  total %s",
			m.state.Cart.ItemCount,
			theme.PriceStyle.Render(formatPrice(m.state.Cart.Total))),
	)

	return lipgloss.NewStyle().Width(m.width).Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderLine(i int, line model.CartItem) string {
	star := " "
	if m.faves[line.ProductID] {
		star = "★"
	}

	name := line.Product.Name
	if name == "" {
		name = line.ProductID
	}

	var notes []string
	if line.Product.Stock > 0 && line.Quantity >= line.Product.Stock {
		notes = append(notes, "max stock")
	}
	if line.Product.Seller != "" {
		notes = append(notes, "by "+line.Product.Seller)
	}

	text := fmt.Sprintf("%s %-30s x%-3d @ %s", star, name, line.Quantity,
		formatPrice(line.Product.Price))
	if len(notes) > 0 {
		text += "  " + theme.DimmedStyle.Render(strings.Join(notes, ", "))
	}

	if i == m.cursor {
		return theme.SelectedItemStyle.Render(text)
	}
	return theme.ListItemStyle.Render(text)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
