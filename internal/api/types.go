package api

import "github.com/nhle/shopfront/internal/model"

// NotificationsResponse is the response from GET /notifications.
type NotificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

// UnreadCountResponse is the response from GET /notifications/unread-count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// CartResponse is the response from GET /cart.
type CartResponse struct {
	Cart struct {
		Items []model.CartItem `json:"items"`
	} `json:"cart"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

// AddCartItemRequest is the body of POST /cart/items.
type AddCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// UpdateCartItemRequest is the body of PUT /cart/items/:id.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role,omitempty"`
}

// AuthResponse is the response from the login and register endpoints.
type AuthResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}
