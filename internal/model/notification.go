package model

import (
	"encoding/json"
	"time"
)

// NotificationType is the category of a notification as assigned by the server.
type NotificationType string

const (
	NotificationOrder     NotificationType = "order"
	NotificationPayment   NotificationType = "payment"
	NotificationProduct   NotificationType = "product"
	NotificationMessage   NotificationType = "message"
	NotificationSystem    NotificationType = "system"
	NotificationSecurity  NotificationType = "security"
	NotificationPromotion NotificationType = "promotion"
	NotificationCommunity NotificationType = "community"
)

// Notification priorities. Priority only affects display emphasis.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is a server-side notification addressed to the current user.
// The API returns them newest first.
type Notification struct {
	// ID is the opaque server-assigned identifier.
	ID string `json:"id"`

	// Type is one of the Notification* categories.
	Type NotificationType `json:"type"`

	Title   string `json:"title"`
	Message string `json:"message"`

	// IsRead only changes through explicit mark-read calls.
	IsRead bool `json:"isRead"`

	// Priority is optional (use Priority* constants).
	Priority string `json:"priority,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Link is an optional deep-link target.
	Link string `json:"link,omitempty"`
}

// UnmarshalJSON accepts the identifier as either "id" or "_id".
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var aux struct {
		plain
		DocID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = Notification(aux.plain)
	if n.ID == "" {
		n.ID = aux.DocID
	}
	return nil
}
