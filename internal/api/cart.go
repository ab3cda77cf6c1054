package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/shopfront/internal/model"
)

// GetCart fetches the server cart snapshot. A 404 is returned as a
// StatusError; the cart store decides what it means.
func (c *Client) GetCart(ctx context.Context) (model.Cart, error) {
	var resp CartResponse
	if err := c.Get(ctx, "/cart", &resp); err != nil {
		return model.Cart{}, fmt.Errorf("fetching cart: %w", err)
	}

	items := resp.Cart.Items
	if items == nil {
		items = []model.CartItem{}
	}
	return model.Cart{
		Items:     items,
		Total:     resp.Total,
		ItemCount: resp.ItemCount,
	}, nil
}

// AddCartItem adds quantity units of a product to the cart.
func (c *Client) AddCartItem(ctx context.Context, productID string, quantity int) error {
	body := AddCartItemRequest{ProductID: productID, Quantity: quantity}
	if err := c.Post(ctx, "/cart/items", body, nil); err != nil {
		return fmt.Errorf("adding product %s to cart: %w", productID, err)
	}
	return nil
}

// UpdateCartItem sets the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	body := UpdateCartItemRequest{Quantity: quantity}
	if err := c.Put(ctx, "/cart/items/"+url.PathEscape(itemID), body, nil); err != nil {
		return fmt.Errorf("updating cart item %s: %w", itemID, err)
	}
	return nil
}

// RemoveCartItem removes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, itemID string) error {
	if err := c.Delete(ctx, "/cart/items/"+url.PathEscape(itemID), nil); err != nil {
		return fmt.Errorf("removing cart item %s: %w", itemID, err)
	}
	return nil
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) error {
	if err := c.Delete(ctx, "/cart/clear", nil); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}
