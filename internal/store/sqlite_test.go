package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/store"
	"github.com/nhle/shopfront/tests/testutil"
)

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	view, err := s.GetPreference(ctx, store.PrefLastView, store.ViewInbox)
	require.NoError(t, err)
	assert.Equal(t, store.ViewInbox, view)

	require.NoError(t, s.SetPreference(ctx, store.PrefLastView, store.ViewCart))
	require.NoError(t, s.SetPreference(ctx, store.PrefLastView, store.ViewInbox))
	require.NoError(t, s.SetPreference(ctx, store.PrefItemsPerPage, "25"))

	view, err = s.GetPreference(ctx, store.PrefLastView, "")
	require.NoError(t, err)
	assert.Equal(t, store.ViewInbox, view, "last write wins")

	perPage, err := s.GetPreference(ctx, store.PrefItemsPerPage, "50")
	require.NoError(t, err)
	assert.Equal(t, "25", perPage)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	favs, err := s.GetFavorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favs)

	on, err := s.ToggleFavorite(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, on)
	on, err = s.ToggleFavorite(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = s.ToggleFavorite(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, on)

	favs, err = s.GetFavorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, favs)
}

func TestCartSnapshot(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	snap, err := s.GetCartSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	cart := model.Cart{
		Items: []model.CartItem{{
			ID:        "i1",
			ProductID: "p1",
			Quantity:  2,
			Product:   model.ProductSnapshot{ID: "p1", Name: "Mug", Price: 7.5, Stock: 3},
		}},
		Total:     15,
		ItemCount: 2,
	}
	require.NoError(t, s.SaveCartSnapshot(ctx, "u1", cart))

	snap, err = s.GetCartSnapshot(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, cart, snap.Cart)
	assert.False(t, snap.FetchedAt.IsZero())

	other, err := s.GetCartSnapshot(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, s.DeleteCartSnapshot(ctx, "u1"))
	snap, err = s.GetCartSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}
