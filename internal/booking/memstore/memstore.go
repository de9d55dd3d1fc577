// Package memstore is an in-memory stand-in for the MySQL repositories.
// It enforces the same rules as the schema: one active ticket per seat of
// an event, a decrement that only applies while capacity remains, and a
// cancellation that flips the ticket and frees the seat atomically.  Fault
// fields let tests fail individual steps.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// Store holds events and tickets behind one lock.
type Store struct {
	mu         sync.Mutex
	events     map[uint64]*model.Event
	tickets    map[uint64]*model.Ticket
	nextEvent  uint64
	nextTicket uint64

	// Faults, set before use.
	CreateErr    error
	DecrementErr error
	DeleteErr    error
	// SkipDecrement makes DecrementAvailable report "not applied" while
	// leaving capacity untouched.
	SkipDecrement bool
	// BeforeDecrement runs outside the lock right before the decrement.
	BeforeDecrement func()
}

// New returns an empty store.
func New() *Store {
	return &Store{events: map[uint64]*model.Event{}, tickets: map[uint64]*model.Ticket{}}
}

// Events returns the event view of the store.
func (s *Store) Events() *Events { return &Events{s: s} }

// Tickets returns the ticket view of the store.
func (s *Store) Tickets() *Tickets { return &Tickets{s: s} }

// AddEvent stores e with its full capacity available and returns its ID.
func (s *Store) AddEvent(e model.Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	e.ID = s.nextEvent
	if e.Status == "" {
		e.Status = model.EventUpcoming
	}
	e.AvailableSeats = e.TotalSeats
	s.events[e.ID] = &e
	return e.ID
}

// SetAvailable overwrites the counter, for drift scenarios in tests.
func (s *Store) SetAvailable(eventID uint64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventID]; ok {
		e.AvailableSeats = n
	}
}

// Event returns a copy of the event.
func (s *Store) Event(id uint64) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, false
	}
	return *e, true
}

// ActiveTickets counts booked or used tickets of the event.
func (s *Store) ActiveTickets(eventID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(eventID)
}

// TicketCount counts all ticket rows of the event.
func (s *Store) TicketCount(eventID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tickets {
		if t.EventID == eventID {
			n++
		}
	}
	return n
}

func (s *Store) activeLocked(eventID uint64) int {
	n := 0
	for _, t := range s.tickets {
		if t.EventID == eventID && t.Active() {
			n++
		}
	}
	return n
}

// Events implements the event store.
type Events struct{ s *Store }

func (v *Events) Create(_ context.Context, e *model.Event) error {
	id := v.s.AddEvent(*e)
	created, _ := v.s.Event(id)
	*e = created
	return nil
}

func (v *Events) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	e, ok := v.s.Event(id)
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &e, nil
}

func (v *Events) DecrementAvailable(_ context.Context, id uint64) (int, bool, error) {
	if v.s.BeforeDecrement != nil {
		v.s.BeforeDecrement()
	}
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DecrementErr != nil {
		return 0, false, s.DecrementErr
	}
	e, ok := s.events[id]
	if !ok {
		return 0, false, repository.ErrEventNotFound
	}
	if s.SkipDecrement || e.AvailableSeats <= 0 {
		return e.AvailableSeats, false, nil
	}
	e.AvailableSeats--
	return e.AvailableSeats, true, nil
}

func (v *Events) Reconcile(_ context.Context, id uint64, settledBefore time.Time) (int, int, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return 0, 0, repository.ErrEventNotFound
	}
	before := e.AvailableSeats
	for _, t := range s.tickets {
		if t.EventID == id && t.Active() && t.BookingDate.After(settledBefore) {
			return before, before, repository.ErrReconcileDeferred
		}
	}
	e.AvailableSeats = e.TotalSeats - s.activeLocked(id)
	return before, e.AvailableSeats, nil
}

func (v *Events) ListDrifted(context.Context) ([]uint64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, e := range s.events {
		if e.AvailableSeats != e.TotalSeats-s.activeLocked(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Tickets implements the ticket store.
type Tickets struct{ s *Store }

func (v *Tickets) seatTakenLocked(eventID uint64, seat string) bool {
	for _, t := range v.s.tickets {
		if t.EventID == eventID && t.SeatNumber == seat && t.Active() {
			return true
		}
	}
	return false
}

func (v *Tickets) SeatTaken(_ context.Context, eventID uint64, seat string) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.seatTakenLocked(eventID, seat), nil
}

func (v *Tickets) BookedSeats(_ context.Context, eventID uint64) ([]string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]string, 0)
	for _, t := range v.s.tickets {
		if t.EventID == eventID && t.Active() && t.SeatNumber != "" {
			out = append(out, t.SeatNumber)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (v *Tickets) Create(_ context.Context, t *model.Ticket) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if t.SeatNumber != "" && t.Active() && v.seatTakenLocked(t.EventID, t.SeatNumber) {
		return repository.ErrDuplicateSeat
	}
	s.nextTicket++
	t.ID = s.nextTicket
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (v *Tickets) Delete(_ context.Context, id uint64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.tickets, id)
	return nil
}

func (v *Tickets) GetByID(_ context.Context, id uint64) (*model.Ticket, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (v *Tickets) GetByCode(_ context.Context, code string) (*model.Ticket, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, t := range v.s.tickets {
		if t.QRCode == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (v *Tickets) MarkUsed(_ context.Context, id uint64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tickets[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	if t.Status != model.TicketBooked {
		return repository.ErrInvalidTransition
	}
	t.Status = model.TicketUsed
	return nil
}

func (v *Tickets) CancelAndRelease(_ context.Context, ticketID, userID uint64) (*model.Ticket, int, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, 0, repository.ErrTicketNotFound
	}
	if t.UserID != userID {
		return nil, 0, repository.ErrForbidden
	}
	if t.Status != model.TicketBooked {
		return nil, 0, repository.ErrInvalidTransition
	}
	t.Status = model.TicketCancelled
	e := s.events[t.EventID]
	if e.AvailableSeats < e.TotalSeats {
		e.AvailableSeats++
	}
	cp := *t
	return &cp, e.AvailableSeats, nil
}

func (v *Tickets) ListByUser(_ context.Context, userID uint64) ([]model.TicketDetail, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TicketDetail, 0)
	for _, t := range s.tickets {
		if t.UserID != userID {
			continue
		}
		d := model.TicketDetail{Ticket: *t}
		if e, ok := s.events[t.EventID]; ok {
			d.EventTitle, d.EventDate, d.Venue = e.Title, e.EventDate, e.Venue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].BookingDate.After(out[j].BookingDate)
	})
	return out, nil
}

func (v *Tickets) ListByEvent(_ context.Context, eventID uint64) ([]model.Ticket, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Ticket, 0)
	for _, t := range s.tickets {
		if t.EventID == eventID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
