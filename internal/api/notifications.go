package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/shopfront/internal/model"
)

// ListNotifications fetches the most recent notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	var resp NotificationsResponse
	path := fmt.Sprintf("/notifications?limit=%d", limit)
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return resp.Notifications, nil
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp UnreadCountResponse
	if err := c.Get(ctx, "/notifications/unread-count", &resp); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	return resp.Count, nil
}

// MarkNotificationRead marks a single notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.Patch(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.Patch(ctx, "/notifications/mark-all-read", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification removes a single notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if err := c.Delete(ctx, "/notifications/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// ClearReadNotifications deletes every notification already read.
func (c *Client) ClearReadNotifications(ctx context.Context) error {
	if err := c.Delete(ctx, "/notifications/clear-read", nil); err != nil {
		return fmt.Errorf("clearing read notifications: %w", err)
	}
	return nil
}
