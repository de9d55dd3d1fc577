// Package booking turns a selected seat into a durable, uniquely owned
// ticket while keeping the event's available_seats counter in step with
// the active tickets.
//
// The protocol runs as separate storage calls: seat pre-check, capacity
// pre-check, ticket insert, conditional counter decrement, verification
// and, on failure after the insert, a compensating delete.  The pre-checks
// only short-circuit obvious failures.  Two storage guarantees make it
// safe under concurrent callers: a unique index on the active seat of an
// event (a second insert for the same seat fails) and a decrement that only
// applies while capacity remains (the last unit is taken exactly once).
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/metrics"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/notify"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

// compensationTimeout bounds the compensating delete, which runs even when
// the caller's context is already cancelled.
const compensationTimeout = 5 * time.Second

// TicketStore is the ticket persistence used by Service.  Create must
// return repository.ErrDuplicateSeat when another active ticket holds the
// seat.
type TicketStore interface {
	SeatTaken(ctx context.Context, eventID uint64, seat string) (bool, error)
	Create(ctx context.Context, t *model.Ticket) error
	Delete(ctx context.Context, id uint64) error
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
	GetByCode(ctx context.Context, code string) (*model.Ticket, error)
	MarkUsed(ctx context.Context, id uint64) error
	CancelAndRelease(ctx context.Context, ticketID, userID uint64) (*model.Ticket, int, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error)
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error)
}

// EventStore is the event counter owner used by Service.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	DecrementAvailable(ctx context.Context, id uint64) (remaining int, applied bool, err error)
}

// BookingRequest asks for one seat of one event on behalf of a user.
type BookingRequest struct {
	EventID    uint64
	UserID     uint64
	SeatNumber string
	Price      decimal.Decimal
}

// Booking is a successful booking: the new ticket and the event's
// remaining capacity.
type Booking struct {
	Ticket         *model.Ticket `json:"ticket"`
	AvailableSeats int           `json:"available_seats"`
}

// Cancellation is a cancelled ticket and the event's capacity afterwards.
type Cancellation struct {
	Ticket         *model.Ticket `json:"ticket"`
	AvailableSeats int           `json:"available_seats"`
}

// Verification is a ticket looked up by its code together with its event.
type Verification struct {
	Ticket *model.Ticket `json:"ticket"`
	Event  *model.Event  `json:"event"`
	Valid  bool          `json:"valid"`
}

// Service runs the booking protocol and the ticket lifecycle around it.
// Layout, Notifier, Log and Now are optional.
type Service struct {
	Tickets  TicketStore
	Events   EventStore
	Layout   seatmap.Layout
	Notifier notify.Notifier
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// NewService constructs a Service and panics if a store is nil.
func NewService(tickets TicketStore, events EventStore) *Service {
	if tickets == nil || events == nil {
		panic("nil store passed to booking.NewService")
	}
	return &Service{Tickets: tickets, Events: events}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

// BookTicket books req.SeatNumber for req.UserID.
//
// Errors: ErrSeatAlreadyBooked, ErrSoldOut, ErrEventClosed, ErrInvalidSeat,
// ErrEventNotFound and the validation errors leave storage untouched.
// A *BookingFailedError means any ticket written was removed again.
// An *InconsistentStateError means the removal itself failed.
func (s *Service) BookTicket(ctx context.Context, req BookingRequest) (*Booking, error) {
	started := time.Now()
	b, outcome, err := s.book(ctx, req)
	metrics.ObserveBooking(outcome, time.Since(started))
	return b, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Booking, string, error) {
	seat := seatmap.Normalize(req.SeatNumber)
	switch {
	case seat == "":
		return nil, metrics.OutcomeRejected, ErrSeatRequired
	case !req.Price.IsPositive():
		return nil, metrics.OutcomeRejected, ErrInvalidPrice
	case req.UserID == 0:
		return nil, metrics.OutcomeRejected, ErrUnauthenticated
	}
	log := s.logger().WithFields(logrus.Fields{"event_id": req.EventID, "user_id": req.UserID, "seat": seat})

	taken, err := s.Tickets.SeatTaken(ctx, req.EventID, seat)
	if err != nil {
		return nil, metrics.OutcomeFailed, &BookingFailedError{Step: StepSeatCheck, Cause: err}
	}
	if taken {
		return nil, metrics.OutcomeSeatTaken, ErrSeatAlreadyBooked
	}

	ev, err := s.Events.GetByID(ctx, req.EventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return nil, metrics.OutcomeRejected, ErrEventNotFound
	}
	if err != nil {
		return nil, metrics.OutcomeFailed, &BookingFailedError{Step: StepCapacityCheck, Cause: err}
	}
	if ev.SoldOut() {
		return nil, metrics.OutcomeSoldOut, ErrSoldOut
	}
	if ev.Status == model.EventClosed {
		return nil, metrics.OutcomeRejected, ErrEventClosed
	}
	if s.Layout.Capacity() > 0 && !s.Layout.Contains(seat) {
		return nil, metrics.OutcomeRejected, ErrInvalidSeat
	}

	now := s.now()
	t := &model.Ticket{
		EventID:      req.EventID,
		UserID:       req.UserID,
		SeatNumber:   seat,
		Status:       model.TicketBooked,
		TicketNumber: newTicketNumber(now),
		QRCode:       newVerificationCode(req.EventID, req.UserID),
		Price:        req.Price,
		BookingDate:  now,
	}
	if err := s.Tickets.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicateSeat) {
			log.Info("seat claimed concurrently")
			return nil, metrics.OutcomeSeatTaken, ErrSeatAlreadyBooked
		}
		return nil, metrics.OutcomeFailed, &BookingFailedError{Step: StepCreateTicket, Cause: err}
	}
	log = log.WithField("ticket_id", t.ID)

	remaining, applied, err := s.Events.DecrementAvailable(ctx, req.EventID)
	if err != nil {
		return s.compensate(ctx, log, t, &BookingFailedError{Step: StepDecrement, Cause: err})
	}
	if !applied {
		return s.compensate(ctx, log, t, s.unconfirmedDecrement(ctx, req.EventID))
	}

	log.WithField("available_seats", remaining).Info("ticket booked")
	s.notify(ctx, notify.Change{
		Kind:           notify.TicketBooked,
		EventID:        t.EventID,
		TicketID:       t.ID,
		UserID:         t.UserID,
		SeatNumber:     t.SeatNumber,
		AvailableSeats: remaining,
		At:             now,
	})
	return &Booking{Ticket: t, AvailableSeats: remaining}, metrics.OutcomeBooked, nil
}

// unconfirmedDecrement re-reads the event after a decrement that did not
// apply and classifies why.
func (s *Service) unconfirmedDecrement(ctx context.Context, eventID uint64) error {
	ev, err := s.Events.GetByID(ctx, eventID)
	switch {
	case err != nil:
		return &BookingFailedError{Step: StepVerify, Cause: err}
	case ev.SoldOut():
		return ErrSoldOut
	default:
		return &BookingFailedError{Step: StepVerify, Cause: ErrDecrementUnconfirmed}
	}
}

// compensate deletes the ticket written by a failed attempt and returns
// cause, or an *InconsistentStateError when the delete fails too.
func (s *Service) compensate(ctx context.Context, log logrus.FieldLogger, t *model.Ticket, cause error) (*Booking, string, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.Tickets.Delete(cctx, t.ID); err != nil {
		metrics.ObserveCompensation(metrics.CompensationFailed)
		ie := &InconsistentStateError{
			EventID:         t.EventID,
			TicketID:        t.ID,
			SeatNumber:      t.SeatNumber,
			Cause:           cause,
			CompensationErr: err,
		}
		log.WithError(ie).Error("compensating delete failed; ticket is orphaned and needs reconciliation")
		s.notify(cctx, notify.Change{
			Kind:       notify.BookingInconsistent,
			EventID:    t.EventID,
			TicketID:   t.ID,
			UserID:     t.UserID,
			SeatNumber: t.SeatNumber,
			Reason:     ie.Error(),
			At:         s.now(),
		})
		return nil, metrics.OutcomeInconsistent, ie
	}

	metrics.ObserveCompensation(metrics.CompensationDeleted)
	log.WithError(cause).Warn("booking rolled back")
	if errors.Is(cause, ErrSoldOut) {
		return nil, metrics.OutcomeSoldOut, cause
	}
	return nil, metrics.OutcomeFailed, cause
}

func (s *Service) notify(ctx context.Context, c notify.Change) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, c); err != nil {
		s.logger().WithError(err).WithFields(logrus.Fields{"event_id": c.EventID, "kind": c.Kind}).
			Warn("change notification failed")
	}
}
