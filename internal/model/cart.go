package model

import "encoding/json"

// ProductSnapshot is the denormalized product data the server embeds in a
// cart line at fetch time.
type ProductSnapshot struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Image  string  `json:"image,omitempty"`
	Stock  int     `json:"stock"`
	Seller string  `json:"seller,omitempty"`
}

// UnmarshalJSON accepts the identifier as either "id" or "_id".
func (p *ProductSnapshot) UnmarshalJSON(data []byte) error {
	type plain ProductSnapshot
	var aux struct {
		plain
		DocID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = ProductSnapshot(aux.plain)
	if p.ID == "" {
		p.ID = aux.DocID
	}
	return nil
}

// CartItem is a single line of the cart.
type CartItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   ProductSnapshot `json:"product"`
}

// UnmarshalJSON accepts the identifier as either "id" or "_id". A missing
// productId falls back to the embedded product's id.
func (i *CartItem) UnmarshalJSON(data []byte) error {
	type plain CartItem
	var aux struct {
		plain
		DocID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = CartItem(aux.plain)
	if i.ID == "" {
		i.ID = aux.DocID
	}
	if i.ProductID == "" {
		i.ProductID = i.Product.ID
	}
	return nil
}

// Cart is the server-computed cart snapshot. Total and ItemCount are never
// derived on the client.
type Cart struct {
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
}

// EmptyCart returns a cart with no items.
func EmptyCart() Cart {
	return Cart{Items: []CartItem{}}
}
