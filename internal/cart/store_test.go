package cart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/tests/testutil"
)

// fakeBackend records calls and returns canned carts.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	cart      model.Cart
	getErr    error
	mutErr    error
	onGet     func()
	gotQty    int
	gotProdID string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) GetCart(context.Context) (model.Cart, error) {
	f.record("get")
	if f.onGet != nil {
		f.onGet()
	}
	if f.getErr != nil {
		return model.Cart{}, f.getErr
	}
	return f.cart, nil
}

func (f *fakeBackend) AddCartItem(_ context.Context, productID string, quantity int) error {
	f.record("add")
	f.gotProdID, f.gotQty = productID, quantity
	return f.mutErr
}

func (f *fakeBackend) UpdateCartItem(_ context.Context, _ string, quantity int) error {
	f.record("update")
	f.gotQty = quantity
	return f.mutErr
}

func (f *fakeBackend) RemoveCartItem(context.Context, string) error {
	f.record("remove")
	return f.mutErr
}

func (f *fakeBackend) ClearCart(context.Context) error {
	f.record("clear")
	return f.mutErr
}

func serverCart(itemCount int, total float64) model.Cart {
	return model.Cart{
		Items: []model.CartItem{{
			ID:        "line-1",
			ProductID: "p1",
			Quantity:  itemCount,
			Product:   model.ProductSnapshot{ID: "p1", Name: "Kettle", Price: 20, Stock: 5},
		}},
		Total:     total,
		ItemCount: itemCount,
	}
}

func TestAddUsesRefetchedSnapshot(t *testing.T) {
	// The server clamps to stock and adds shipping; the store must show
	// that, not the two units that were asked for.
	backend := &fakeBackend{cart: serverCart(5, 104.99)}
	s := New(backend, WithLogger(logger.Discard()))

	require.NoError(t, s.Add(context.Background(), "p1", 2))

	assert.Equal(t, []string{"add", "get"}, backend.calls)
	assert.Equal(t, "p1", backend.gotProdID)
	assert.Equal(t, 2, backend.gotQty)

	got := s.Snapshot()
	assert.Equal(t, 5, got.ItemCount)
	assert.Equal(t, 104.99, got.Total)
	assert.True(t, s.Fresh())
	assert.False(t, s.Loading())
}

func TestMutationFailureSkipsRefetch(t *testing.T) {
	boom := errors.New("out of stock")
	backend := &fakeBackend{cart: serverCart(1, 20), mutErr: boom}
	s := New(backend, WithLogger(logger.Discard()))

	err := s.Update(context.Background(), "line-1", 3)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"update"}, backend.calls)
	assert.Empty(t, s.Snapshot().Items)
}

func TestRefetchFailureIsNotReturned(t *testing.T) {
	backend := &fakeBackend{getErr: errors.New("connection reset")}
	s := New(backend, WithLogger(logger.Discard()))
	s.Restore(serverCart(1, 20))

	require.NoError(t, s.Remove(context.Background(), "line-1"))
	assert.Equal(t, []string{"remove", "get"}, backend.calls)

	// No rollback and no local guess: the old state stays until a fetch lands.
	assert.Equal(t, 1, s.Snapshot().ItemCount)
	assert.False(t, s.Fresh())
	assert.False(t, s.Loading())
}

func TestInvalidQuantityRejectedBeforeRequest(t *testing.T) {
	backend := &fakeBackend{}
	s := New(backend, WithLogger(logger.Discard()))

	for _, qty := range []int{0, -1} {
		assert.ErrorIs(t, s.Add(context.Background(), "p1", qty), ErrInvalidQuantity)
		assert.ErrorIs(t, s.Update(context.Background(), "line-1", qty), ErrInvalidQuantity)
	}
	assert.Empty(t, backend.calls)
}

func TestClearRefetches(t *testing.T) {
	backend := &fakeBackend{cart: model.EmptyCart()}
	s := New(backend, WithLogger(logger.Discard()))
	s.Restore(serverCart(2, 40))

	require.NoError(t, s.Clear(context.Background()))
	assert.Equal(t, []string{"clear", "get"}, backend.calls)
	assert.Empty(t, s.Snapshot().Items)
	assert.Zero(t, s.Snapshot().ItemCount)
}

func TestFetchNotFoundIsEmptyCart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Cart not found"}`))
	}))
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, testutil.NewTestVault(t, model.Session{Token: "tok"}),
		api.WithLogger(logger.Discard()))
	s := New(client, WithLogger(logger.Discard()))
	s.Restore(serverCart(3, 60))

	require.NoError(t, s.Fetch(context.Background()))

	got := s.Snapshot()
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
	assert.Zero(t, got.ItemCount)
	assert.True(t, s.Fresh())
}

func TestFetchOtherErrorKeepsState(t *testing.T) {
	boom := errors.New("timeout")
	backend := &fakeBackend{getErr: boom}
	s := New(backend, WithLogger(logger.Discard()))
	s.Restore(serverCart(1, 20))

	require.ErrorIs(t, s.Fetch(context.Background()), boom)
	assert.Equal(t, 1, s.Snapshot().ItemCount)
}

func TestSubscribersSeeLoading(t *testing.T) {
	backend := &fakeBackend{cart: serverCart(1, 20)}
	s := New(backend, WithLogger(logger.Discard()))

	var states []State
	unsubscribe := s.Subscribe(func(st State) { states = append(states, st) })

	require.NoError(t, s.Fetch(context.Background()))
	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.False(t, states[1].Loading)
	assert.Equal(t, 1, states[1].Cart.ItemCount)

	unsubscribe()
	require.NoError(t, s.Fetch(context.Background()))
	assert.Len(t, states, 2)
}

func TestLoadingDuringFetch(t *testing.T) {
	backend := &fakeBackend{cart: serverCart(1, 20)}
	s := New(backend, WithLogger(logger.Discard()))

	var loading bool
	backend.onGet = func() { loading = s.Loading() }

	require.NoError(t, s.Fetch(context.Background()))
	assert.True(t, loading)
	assert.False(t, s.Loading())
}

func TestCloseIgnoresLateResults(t *testing.T) {
	backend := &fakeBackend{cart: serverCart(4, 80)}
	s := New(backend, WithLogger(logger.Discard()))

	calls := 0
	s.Subscribe(func(State) { calls++ })

	backend.onGet = s.Close
	require.NoError(t, s.Fetch(context.Background()))

	assert.Empty(t, s.Snapshot().Items)
	assert.False(t, s.Fresh())
	assert.Equal(t, 1, calls, "only the loading notification before Close")
}

func TestFetchPersistsSnapshot(t *testing.T) {
	db := testutil.NewTestStore(t)
	backend := &fakeBackend{cart: serverCart(2, 40)}
	s := New(backend, WithLogger(logger.Discard()), WithSnapshots(db, "u1"))

	require.NoError(t, s.Fetch(context.Background()))

	snap, err := db.GetCartSnapshot(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, backend.cart, snap.Cart)
}

func TestRestoreIgnoredAfterFetch(t *testing.T) {
	backend := &fakeBackend{cart: serverCart(2, 40)}
	s := New(backend, WithLogger(logger.Discard()))

	require.NoError(t, s.Fetch(context.Background()))
	s.Restore(serverCart(9, 999))
	assert.Equal(t, 2, s.Snapshot().ItemCount)
}
