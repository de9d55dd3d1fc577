package seatmap

import (
	"errors"
	"sync"
)

// State is the selection state of a seat map.
type State int

const (
	NoSelection State = iota
	Selected
)

func (s State) String() string {
	if s == Selected {
		return "selected"
	}
	return "no_selection"
}

var (
	// ErrSeatBooked rejects selecting a seat that is in the booked set.
	ErrSeatBooked = errors.New("seat is already booked")
	// ErrSeatNotOnLayout rejects selecting an identifier outside the grid.
	ErrSeatNotOnLayout = errors.New("seat is not on the layout")
)

// Selection holds at most one chosen seat.  It is safe for concurrent use:
// the availability watcher refreshes it while the user is choosing.
type Selection struct {
	layout Layout

	mu   sync.Mutex
	seat string
}

// NewSelection returns an empty selection over layout.
func NewSelection(layout Layout) *Selection {
	return &Selection{layout: layout}
}

// Select moves to Selected(id).  If id is booked or not on the layout the
// transition is rejected and any previous selection is cleared.
func (s *Selection) Select(id string, booked SeatSet) error {
	id = Normalize(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.layout.Contains(id) {
		s.seat = ""
		return ErrSeatNotOnLayout
	}
	if booked.Has(id) {
		s.seat = ""
		return ErrSeatBooked
	}
	s.seat = id
	return nil
}

// Refresh applies a newly fetched booked set.  If the selected seat was
// claimed by someone else the selection falls back to NoSelection and
// Refresh reports true.
func (s *Selection) Refresh(booked SeatSet) (cleared bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seat != "" && booked.Has(s.seat) {
		s.seat = ""
		return true
	}
	return false
}

// Current returns the selected seat, if any.
func (s *Selection) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seat, s.seat != ""
}

// State reports NoSelection or Selected.
func (s *Selection) State() State {
	if _, ok := s.Current(); ok {
		return Selected
	}
	return NoSelection
}

// Reset clears the selection, e.g. when the booking dialog closes.
func (s *Selection) Reset() {
	s.mu.Lock()
	s.seat = ""
	s.mu.Unlock()
}
