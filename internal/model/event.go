package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Event lifecycle states as stored in events.status.
const (
    EventUpcoming = "upcoming"
    EventActive   = "active"
    EventClosed   = "closed"
)

// Event is a ticketed occasion with a fixed seat capacity.  AvailableSeats
// is a stored counter that must always equal TotalSeats minus the number of
// active tickets for the event; only the booking and cancellation paths in
// the repository layer are allowed to change it.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – display title.
//  Description    – optional free text.
//  Venue          – where the event takes place.
//  EventDate      – when the event starts (UTC).
//  Price          – price of one seat.
//  TotalSeats     – fixed capacity.
//  AvailableSeats – remaining capacity, 0 ≤ AvailableSeats ≤ TotalSeats.
//  Status         – upcoming, active or closed.
//  CreatedBy      – organizer (owner) user id.
type Event struct {
    ID             uint64          `json:"id"`              // events.id
    Title          string          `json:"title"`           // events.title
    Description    string          `json:"description"`     // events.description
    Venue          string          `json:"venue"`           // events.venue
    EventDate      time.Time       `json:"event_date"`      // events.event_date
    Price          decimal.Decimal `json:"price"`           // events.price
    TotalSeats     int             `json:"total_seats"`     // events.total_seats
    AvailableSeats int             `json:"available_seats"` // events.available_seats
    Status         string          `json:"status"`          // events.status
    CreatedBy      uint64          `json:"created_by"`      // events.created_by
    CreatedAt      time.Time       `json:"created_at"`      // events.created_at
    UpdatedAt      time.Time       `json:"updated_at"`      // events.updated_at
}

// SoldOut reports whether no capacity is left.
func (e *Event) SoldOut() bool { return e.AvailableSeats <= 0 }

// ValidEventStatus reports whether s is one of the known event states.
func ValidEventStatus(s string) bool {
    switch s {
    case EventUpcoming, EventActive, EventClosed:
        return true
    }
    return false
}
