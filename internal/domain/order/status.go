package order

import (
	"time"

	"github.com/go-faster/errors"
)

// Status is the fulfillment state of an order.
type Status string

// Order statuses. Pending is the initial state; delivered, cancelled, and
// refunded are terminal.
const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// ErrInvalidTransition is returned when an illegal status change is requested.
var ErrInvalidTransition = errors.New("invalid order status transition")

// transitions is the single source of truth for legal status changes.
// Pending and confirmed orders may jump to any later fulfillment state or be
// cancelled; refunds are possible once fulfillment has started.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusDelivered, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

var statusLabels = map[Status]string{
	StatusPending:    "Pending",
	StatusConfirmed:  "Confirmed",
	StatusProcessing: "Processing",
	StatusShipped:    "Shipped",
	StatusDelivered:  "Delivered",
	StatusCancelled:  "Cancelled",
	StatusRefunded:   "Refunded",
}

// ParseStatus validates a raw status string from external input.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", errors.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

// Label returns the human-readable form of the status.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving to the given status is legal.
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the order to the given status, stamping UpdatedAt and
// the shipped/delivered timestamps. Illegal moves fail with
// ErrInvalidTransition and leave the order unchanged.
func (o *Order) TransitionTo(to Status, now time.Time) error {
	if !o.Status.CanTransitionTo(to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, to)
	}

	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusShipped:
		o.ShippedAt = now
	case StatusDelivered:
		o.DeliveredAt = now
	}
	return nil
}

// Cancel cancels the order. Only pending and confirmed orders can be
// cancelled; anything further along fails with ErrInvalidTransition.
func (o *Order) Cancel(now time.Time) error {
	if !o.CanBeCancelled() {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, StatusCancelled)
	}
	return o.TransitionTo(StatusCancelled, now)
}

// CanBeCancelled reports whether the order is still early enough in
// fulfillment to cancel.
func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// IsCompleted reports whether the order reached delivery.
func (o *Order) IsCompleted() bool {
	return o.Status == StatusDelivered
}

// IsCancelled reports whether the order ended in a cancelled or refunded
// state.
func (o *Order) IsCancelled() bool {
	return o.Status == StatusCancelled || o.Status == StatusRefunded
}

// StatusLabel returns the display label of the order's current status.
func (o *Order) StatusLabel() string {
	return o.Status.Label()
}
