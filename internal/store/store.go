package store

import (
	"context"
	"time"

	"github.com/nhle/shopfront/internal/model"
)

// Preference keys.
const (
	// PrefLastView is the view a session opens on (ViewInbox or ViewCart).
	PrefLastView = "last_view"

	// PrefItemsPerPage is the inbox page size.
	PrefItemsPerPage = "items_per_page"
)

// Values of PrefLastView.
const (
	ViewInbox = "inbox"
	ViewCart  = "cart"
)

// CartSnapshot is a cart as last fetched from the server. It is shown
// while the next fetch is in flight and never trusted for checkout.
type CartSnapshot struct {
	UserID    string
	Cart      model.Cart
	FetchedAt time.Time
}

// Store defines the local persistence interface: UI preferences,
// favorites and the last cart snapshot. Every write is last-write-wins.
type Store interface {
	// === Cart snapshot ===

	SaveCartSnapshot(ctx context.Context, userID string, cart model.Cart) error
	GetCartSnapshot(ctx context.Context, userID string) (*CartSnapshot, error)
	DeleteCartSnapshot(ctx context.Context, userID string) error

	// === Preferences ===

	SetPreference(ctx context.Context, key, value string) error
	GetPreference(ctx context.Context, key, fallback string) (string, error)

	// === Favorites ===

	ToggleFavorite(ctx context.Context, productID string) (bool, error)
	GetFavorites(ctx context.Context) ([]string, error)
}
