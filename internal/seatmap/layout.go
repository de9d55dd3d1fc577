// Package seatmap models the row-letter × seat-number grid of an event and
// the single-seat selection a client holds while booking.
package seatmap

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedSeat is returned for identifiers that are not a row label
// followed by a positive seat number.
var ErrMalformedSeat = errors.New("malformed seat identifier")

// Layout is an R×C grid: rows labeled A, B, C, … and seats numbered
// 1..SeatsPerRow within each row.
type Layout struct {
	Rows        int
	SeatsPerRow int
}

// DefaultLayout is the 4 × 8 grid used when no layout is configured.
var DefaultLayout = Layout{Rows: 4, SeatsPerRow: 8}

// Capacity is the number of seats on the grid.
func (l Layout) Capacity() int {
	if l.Rows <= 0 || l.SeatsPerRow <= 0 {
		return 0
	}
	return l.Rows * l.SeatsPerRow
}

// Seats lists every seat identifier in row-major order.
func (l Layout) Seats() []string {
	out := make([]string, 0, l.Capacity())
	for r := 0; r < l.Rows; r++ {
		for n := 1; n <= l.SeatsPerRow; n++ {
			out = append(out, SeatID(r, n))
		}
	}
	return out
}

// Contains reports whether id names a seat on this layout.
func (l Layout) Contains(id string) bool {
	row, num, err := ParseSeatID(id)
	if err != nil {
		return false
	}
	return row < l.Rows && num >= 1 && num <= l.SeatsPerRow
}

// SeatID builds the identifier for a zero-based row index and a one-based
// seat number, e.g. SeatID(0, 1) == "A1".
func SeatID(row, number int) string {
	return RowLabel(row) + strconv.Itoa(number)
}

// RowLabel converts a zero-based index to an alphabetical row label like
// A, B, …, Z, AA, AB.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var res []byte
	for {
		res = append(res, byte('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// rowIndex converts a row label like A or AA into its zero-based index.
func rowIndex(label string) (int, bool) {
	if label == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}

// Normalize trims and upper-cases a user supplied identifier.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ParseSeatID splits an identifier such as "C12" into its zero-based row
// index and seat number.  Lower case input is accepted.
func ParseSeatID(id string) (row, number int, err error) {
	s := Normalize(id)
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	row, ok := rowIndex(s[:i])
	if !ok || i == len(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedSeat, id)
	}
	number, err = strconv.Atoi(s[i:])
	if err != nil || s[i] < '1' || s[i] > '9' {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedSeat, id)
	}
	return row, number, nil
}

// SeatSet is a set of seat identifiers, typically the booked seats of one
// event.
type SeatSet map[string]struct{}

// NewSeatSet builds a set from identifiers, skipping empty ones.
func NewSeatSet(ids ...string) SeatSet {
	s := make(SeatSet, len(ids))
	for _, id := range ids {
		if id = Normalize(id); id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports membership.  A nil set contains nothing.
func (s SeatSet) Has(id string) bool {
	_, ok := s[Normalize(id)]
	return ok
}

// Sorted returns the identifiers in grid order (row, then number).
func (s SeatSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, ni, erri := ParseSeatID(out[i])
		rj, nj, errj := ParseSeatID(out[j])
		if erri != nil || errj != nil {
			return out[i] < out[j]
		}
		if ri != rj {
			return ri < rj
		}
		return ni < nj
	})
	return out
}
