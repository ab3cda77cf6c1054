// Package notify fans notification events from either delivery transport
// into transient alerts and a refresh signal.
package notify

import (
	"context"
	"errors"
)

// Kind identifies what produced an event.
type Kind string

const (
	KindNotification Kind = "notification"
	KindOrderStatus  Kind = "order-status"
	KindPayment      Kind = "payment"

	// KindSummary stands in for the notifications left over after the
	// per-cycle alert cap.
	KindSummary Kind = "summary"
)

// Event is one new item surfaced by a transport.
type Event struct {
	Kind Kind

	// Subtype selects the alert icon: a notification type or a push
	// event name.
	Subtype string

	// NotificationID is set for notification events and used to drop
	// duplicates delivered by both transports.
	NotificationID string

	Title   string
	Message string

	// OrderNumber and Status are set for order and payment events.
	OrderNumber string
	Status      string
}

// touchesNotifications reports whether the event changes the
// notification list, which is what badge-style listeners care about.
func (e Event) touchesNotifications() bool {
	return e.Kind == KindNotification || e.Kind == KindSummary
}

// Handler receives the events of one delivery: a single push, or one
// polling cycle's batch in display order.
type Handler func(events []Event)

// Delivery is a source of new-item events. Callers do not know whether a
// poller, a push channel or both back it.
type Delivery interface {
	// Start activates the delivery. Calling Start on an active delivery
	// is a no-op.
	Start(ctx context.Context) error

	// Stop deactivates the delivery. It is safe to call repeatedly.
	Stop()

	// OnNewItem registers a handler for new events.
	OnNewItem(h Handler)
}

// Combine runs several deliveries as one, e.g. the push channel with the
// poller as a redundant path.
func Combine(ds ...Delivery) Delivery {
	return multi(ds)
}

type multi []Delivery

func (m multi) Start(ctx context.Context) error {
	var errs []error
	for _, d := range m {
		if err := d.Start(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Stop() {
	for _, d := range m {
		d.Stop()
	}
}

func (m multi) OnNewItem(h Handler) {
	for _, d := range m {
		d.OnNewItem(h)
	}
}
