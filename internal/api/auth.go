package api

import (
	"context"
	"fmt"

	"github.com/nhle/shopfront/internal/model"
)

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (model.Session, error) {
	var resp AuthResponse
	if err := c.Post(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return model.Session{}, fmt.Errorf("logging in: %w", err)
	}
	return model.Session{User: resp.User, Token: resp.Token}, nil
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (model.Session, error) {
	var resp AuthResponse
	if err := c.Post(ctx, "/auth/register", req, &resp); err != nil {
		return model.Session{}, fmt.Errorf("registering: %w", err)
	}
	return model.Session{User: resp.User, Token: resp.Token}, nil
}
