package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// Failures a caller is expected to branch on.  Pre-check failures are
// returned before anything is written, so retrying with another seat is
// always safe.
var (
	// ErrSeatAlreadyBooked means an active ticket holds the seat, found
	// either by the pre-check or by the storage unique constraint.
	ErrSeatAlreadyBooked = errors.New("seat already booked")
	// ErrSoldOut means the event has no capacity left.
	ErrSoldOut = errors.New("event is sold out")
	// ErrBookingFailed matches every *BookingFailedError.
	ErrBookingFailed = errors.New("booking failed")
	// ErrInconsistentState matches every *InconsistentStateError.
	ErrInconsistentState = errors.New("inconsistent booking state")

	ErrEventClosed          = errors.New("event is closed for booking")
	ErrInvalidSeat          = errors.New("seat is not on the event's seat map")
	ErrSeatRequired         = errors.New("seat number is required")
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrUnauthenticated      = errors.New("an authenticated user is required")
	ErrDecrementUnconfirmed = errors.New("seat counter decrement could not be confirmed")

	ErrEventNotFound     = repository.ErrEventNotFound
	ErrTicketNotFound    = repository.ErrTicketNotFound
	ErrForbidden         = repository.ErrForbidden
	ErrInvalidTransition = repository.ErrInvalidTransition
)

// Steps of the booking protocol that can fail after validation.
const (
	StepSeatCheck     = "seat_check"
	StepCapacityCheck = "capacity_check"
	StepCreateTicket  = "create_ticket"
	StepDecrement     = "decrement_counter"
	StepVerify        = "verify_counter"
)

// BookingFailedError is a booking failure that is neither a seat conflict
// nor sold out.  Any ticket written before the failure has been removed.
type BookingFailedError struct {
	Step  string
	Cause error
}

func (e *BookingFailedError) Error() string {
	return fmt.Sprintf("booking failed at %s: %v", e.Step, e.Cause)
}

func (e *BookingFailedError) Unwrap() error { return e.Cause }

func (e *BookingFailedError) Is(target error) bool { return target == ErrBookingFailed }

// InconsistentStateError means the compensating delete failed: an active
// ticket exists that the event counter does not account for.  It needs
// out-of-band reconciliation and is never user-recoverable.
type InconsistentStateError struct {
	EventID         uint64
	TicketID        uint64
	SeatNumber      string
	Cause           error
	CompensationErr error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("orphaned ticket %d (event %d, seat %s): %v; compensation failed: %v",
		e.TicketID, e.EventID, e.SeatNumber, e.Cause, e.CompensationErr)
}

func (e *InconsistentStateError) Unwrap() []error { return []error{e.Cause, e.CompensationErr} }

func (e *InconsistentStateError) Is(target error) bool { return target == ErrInconsistentState }
