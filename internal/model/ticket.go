package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Ticket states as stored in tickets.status.  Only booked → used and
// booked → cancelled transitions exist.
const (
    TicketBooked    = "booked"
    TicketUsed      = "used"
    TicketCancelled = "cancelled"
)

// ActiveTicketStatuses are the states that occupy a seat.
var ActiveTicketStatuses = []string{TicketBooked, TicketUsed}

// IsActiveTicketStatus reports whether a ticket in state s holds its seat.
func IsActiveTicketStatus(s string) bool {
    return s == TicketBooked || s == TicketUsed
}

// Ticket is one seat purchased by one user for one event.  SeatNumber is
// fixed at creation; only Status changes afterwards.
type Ticket struct {
    ID           uint64          `json:"id"`            // tickets.id
    EventID      uint64          `json:"event_id"`      // tickets.event_id
    UserID       uint64          `json:"user_id"`       // tickets.user_id
    SeatNumber   string          `json:"seat_number"`   // tickets.seat_number
    Status       string          `json:"status"`        // tickets.status
    TicketNumber string          `json:"ticket_number"` // tickets.ticket_number
    QRCode       string          `json:"qr_code"`       // tickets.qr_code
    Price        decimal.Decimal `json:"price"`         // tickets.price
    BookingDate  time.Time       `json:"booking_date"`  // tickets.booking_date
}

// Active reports whether the ticket currently holds its seat.
func (t *Ticket) Active() bool { return IsActiveTicketStatus(t.Status) }

// TicketDetail is a ticket joined with the event fields shown in a user's
// ticket list.
type TicketDetail struct {
    Ticket
    EventTitle string    `json:"event_title"`
    EventDate  time.Time `json:"event_date"`
    Venue      string    `json:"venue"`
}
