// Package notify carries "tickets for event X changed" signals from the
// booking service to whoever keeps a view of seat availability: the Redis
// channel watched by clients, the message broker and local caches.
package notify

import (
	"context"
	"errors"
	"time"
)

// Kind names what happened to a ticket.
type Kind string

const (
	TicketBooked        Kind = "ticket.booked"
	TicketCancelled     Kind = "ticket.cancelled"
	TicketUsed          Kind = "ticket.used"
	BookingInconsistent Kind = "booking.inconsistent"
)

// Change is one ticket mutation on an event.
type Change struct {
	Kind           Kind      `json:"kind"`
	EventID        uint64    `json:"event_id"`
	TicketID       uint64    `json:"ticket_id,omitempty"`
	UserID         uint64    `json:"user_id,omitempty"`
	SeatNumber     string    `json:"seat_number,omitempty"`
	AvailableSeats int       `json:"available_seats"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
}

// SeatsChanged reports whether the booked set of the event may differ
// after this change.
func (c Change) SeatsChanged() bool {
	return c.Kind == TicketBooked || c.Kind == TicketCancelled || c.Kind == BookingInconsistent
}

// Notifier receives changes.  Implementations must not block for long;
// callers treat notification as best effort.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

func (f NotifierFunc) Notify(ctx context.Context, c Change) error { return f(ctx, c) }

// Multi fans a change out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, c Change) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
