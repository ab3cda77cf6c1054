// Package cart holds the signed-in user's cart as last reported by the
// server. Every mutation is followed by a full re-fetch; line items and
// totals are never changed locally.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/model"
)

// ErrInvalidQuantity is returned for a quantity below one.
var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// Backend is the cart side of the REST API. api.Client implements it.
type Backend interface {
	GetCart(ctx context.Context) (model.Cart, error)
	AddCartItem(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, itemID string, quantity int) error
	RemoveCartItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error
}

// SnapshotSaver persists fetched carts. store.SQLiteStore implements it.
type SnapshotSaver interface {
	SaveCartSnapshot(ctx context.Context, userID string, cart model.Cart) error
}

// State is what subscribers see after every change.
type State struct {
	Cart    model.Cart
	Loading bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithSnapshots persists every fetched cart for userID.
func WithSnapshots(saver SnapshotSaver, userID string) Option {
	return func(s *Store) {
		s.saver = saver
		s.userID = userID
	}
}

// Store is the cart session store.
type Store struct {
	backend Backend
	saver   SnapshotSaver
	userID  string
	log     *slog.Logger

	mu       gosync.Mutex
	cart     model.Cart
	inFlight int
	fetched  bool
	closed   bool
	subs     map[int]func(State)
	nextID   int
}

// New creates an empty store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		cart:    model.EmptyCart(),
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log)
	return s
}

// Snapshot returns the current cart.
func (s *Store) Snapshot() model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCart(s.cart)
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Fresh reports whether the cart has been fetched from the server at least
// once, as opposed to restored from a local snapshot.
func (s *Store) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

// Restore shows a locally persisted cart until the first fetch resolves.
// It is ignored once a fetch has landed.
func (s *Store) Restore(cart model.Cart) {
	s.mu.Lock()
	if s.closed || s.fetched {
		s.mu.Unlock()
		return
	}
	s.cart = copyCart(cart)
	s.mu.Unlock()
	s.publish()
}

// Subscribe registers fn to be called after every state change and returns
// a function that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close detaches the store; results that land afterwards are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]func(State))
}

// Fetch replaces the cart with the server snapshot. A cart the server does
// not know yet is an empty cart. On any other failure the previous state
// is kept and the error returned.
func (s *Store) Fetch(ctx context.Context) error {
	s.begin()
	cart, err := s.backend.GetCart(ctx)
	if err != nil && api.IsNotFound(err) {
		cart, err = model.EmptyCart(), nil
	}
	if err != nil {
		s.end(nil)
		return err
	}

	if s.end(&cart) {
		s.persist(ctx, cart)
	}
	return nil
}

// Add puts quantity units of a product into the cart.
func (s *Store) Add(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx, "add to cart", func(ctx context.Context) error {
		return s.backend.AddCartItem(ctx, productID, quantity)
	})
}

// Update sets the quantity of a cart line.
func (s *Store) Update(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx, "update cart item", func(ctx context.Context) error {
		return s.backend.UpdateCartItem(ctx, itemID, quantity)
	})
}

// Remove deletes a cart line.
func (s *Store) Remove(ctx context.Context, itemID string) error {
	return s.mutate(ctx, "remove cart item", func(ctx context.Context) error {
		return s.backend.RemoveCartItem(ctx, itemID)
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear cart", s.backend.ClearCart)
}

// mutate runs the request and, only if it succeeded, re-fetches. A failed
// re-fetch leaves the server ahead of the local state until the next
// successful fetch; it is logged, not returned, since the mutation itself
// went through.
func (s *Store) mutate(ctx context.Context, op string, request func(context.Context) error) error {
	if err := request(ctx); err != nil {
		return err
	}

	if err := s.Fetch(ctx); err != nil {
		s.log.Warn("cart refetch failed after mutation", "op", op, "error", err)
	}
	return nil
}

func (s *Store) begin() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inFlight++
	s.mu.Unlock()
	s.publish()
}

// end finishes a fetch, replacing the cart when one is given. It reports
// whether the result was applied. Whichever fetch resolves last wins.
func (s *Store) end(cart *model.Cart) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.inFlight > 0 {
		s.inFlight--
	}
	if cart != nil {
		s.cart = copyCart(*cart)
		s.fetched = true
	}
	s.mu.Unlock()
	s.publish()
	return cart != nil
}

func (s *Store) persist(ctx context.Context, cart model.Cart) {
	if s.saver == nil || s.userID == "" {
		return
	}
	if err := s.saver.SaveCartSnapshot(ctx, s.userID, cart); err != nil {
		s.log.Warn("saving cart snapshot failed", "error", fmt.Errorf("user %s: %w", s.userID, err))
	}
}

func (s *Store) publish() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	st := State{Cart: copyCart(s.cart), Loading: s.inFlight > 0}
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func copyCart(c model.Cart) model.Cart {
	items := make([]model.CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}
