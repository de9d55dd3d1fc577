// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/iliyamo/event-ticket-booking/internal/notify"
)

// Queue names.  All queues are durable and addressed through the default
// exchange.
const (
    TicketBookedQueue    = "ticket.booked"
    TicketCancelledQueue = "ticket.cancelled"
    InconsistentQueue    = "booking.inconsistent"
)

// TicketEvent is published whenever a ticket is booked or cancelled, and
// when a booking left an orphaned ticket behind.  It carries enough for
// downstream consumers to log, alert or reconcile without querying the
// primary database.
type TicketEvent struct {
    Kind           string `json:"kind"`
    TicketID       uint64 `json:"ticket_id"`
    EventID        uint64 `json:"event_id"`
    UserID         uint64 `json:"user_id"`
    SeatNumber     string `json:"seat_number"`
    AvailableSeats int    `json:"available_seats"`
    Reason         string `json:"reason,omitempty"`
    OccurredAt     string `json:"occurred_at"`
}

// FromChange converts a change notification into its broker payload.
func FromChange(c notify.Change) TicketEvent {
    at := c.At
    if at.IsZero() {
        at = time.Now()
    }
    return TicketEvent{
        Kind:           string(c.Kind),
        TicketID:       c.TicketID,
        EventID:        c.EventID,
        UserID:         c.UserID,
        SeatNumber:     c.SeatNumber,
        AvailableSeats: c.AvailableSeats,
        Reason:         c.Reason,
        OccurredAt:     at.UTC().Format(time.RFC3339),
    }
}

// QueueFor maps a change kind to the queue it is published on.  Kinds
// without a queue are not published.
func QueueFor(kind notify.Kind) (string, bool) {
    switch kind {
    case notify.TicketBooked:
        return TicketBookedQueue, true
    case notify.TicketCancelled:
        return TicketCancelledQueue, true
    case notify.BookingInconsistent:
        return InconsistentQueue, true
    }
    return "", false
}
