package booking

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/metrics"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/notify"
)

// CancelTicket cancels a booked ticket owned by userID and gives its seat
// back to the event.  Both writes happen in one storage transaction.
func (s *Service) CancelTicket(ctx context.Context, ticketID, userID uint64) (*Cancellation, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	t, remaining, err := s.Tickets.CancelAndRelease(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	metrics.ObserveCancellation()
	s.logger().WithFields(logrus.Fields{
		"event_id": t.EventID, "ticket_id": t.ID, "user_id": userID,
		"seat": t.SeatNumber, "available_seats": remaining,
	}).Info("ticket cancelled")
	s.notify(ctx, notify.Change{
		Kind:           notify.TicketCancelled,
		EventID:        t.EventID,
		TicketID:       t.ID,
		UserID:         t.UserID,
		SeatNumber:     t.SeatNumber,
		AvailableSeats: remaining,
		At:             s.now(),
	})
	return &Cancellation{Ticket: t, AvailableSeats: remaining}, nil
}

// eventOwnedBy loads the event and checks that organizerID created it.
func (s *Service) eventOwnedBy(ctx context.Context, eventID, organizerID uint64) (*model.Event, error) {
	ev, err := s.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.CreatedBy != organizerID {
		return nil, ErrForbidden
	}
	return ev, nil
}

// VerifyTicket looks a ticket up by its code for the organizer of its
// event.  Valid is true only for a booked ticket.
func (s *Service) VerifyTicket(ctx context.Context, code string, organizerID uint64) (*Verification, error) {
	t, err := s.Tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	ev, err := s.eventOwnedBy(ctx, t.EventID, organizerID)
	if err != nil {
		return nil, err
	}
	return &Verification{Ticket: t, Event: ev, Valid: t.Status == model.TicketBooked}, nil
}

// UseTicket admits the holder of code: booked → used.  The seat stays
// occupied so the counter does not move.
func (s *Service) UseTicket(ctx context.Context, code string, organizerID uint64) (*model.Ticket, error) {
	v, err := s.VerifyTicket(ctx, code, organizerID)
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, ErrInvalidTransition
	}
	if err := s.Tickets.MarkUsed(ctx, v.Ticket.ID); err != nil {
		return nil, err
	}
	v.Ticket.Status = model.TicketUsed
	s.notify(ctx, notify.Change{
		Kind:           notify.TicketUsed,
		EventID:        v.Ticket.EventID,
		TicketID:       v.Ticket.ID,
		UserID:         v.Ticket.UserID,
		SeatNumber:     v.Ticket.SeatNumber,
		AvailableSeats: v.Event.AvailableSeats,
		At:             s.now(),
	})
	return v.Ticket, nil
}

// TicketFor returns a ticket if it belongs to userID.
func (s *Service) TicketFor(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error) {
	t, err := s.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

// ListUserTickets returns the user's tickets, newest first.
func (s *Service) ListUserTickets(ctx context.Context, userID uint64) ([]model.TicketDetail, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	return s.Tickets.ListByUser(ctx, userID)
}

// ListEventTickets returns all tickets of an event to its organizer.
func (s *Service) ListEventTickets(ctx context.Context, eventID, organizerID uint64) ([]model.Ticket, error) {
	if _, err := s.eventOwnedBy(ctx, eventID, organizerID); err != nil {
		return nil, err
	}
	return s.Tickets.ListByEvent(ctx, eventID)
}
