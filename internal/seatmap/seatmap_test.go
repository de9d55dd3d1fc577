package seatmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowLabel(t *testing.T) {
	assert.Equal(t, "A", RowLabel(0))
	assert.Equal(t, "Z", RowLabel(25))
	assert.Equal(t, "AA", RowLabel(26))
	assert.Equal(t, "AB", RowLabel(27))
	assert.Equal(t, "", RowLabel(-1))

	for i := 0; i < 100; i++ {
		idx, ok := rowIndex(RowLabel(i))
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestParseSeatID(t *testing.T) {
	row, num, err := ParseSeatID(" c12 ")
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	assert.Equal(t, 12, num)

	for _, bad := range []string{"", "A", "12", "A0", "A01", "A-1", "A+1", "1A", "A1B"} {
		_, _, err := ParseSeatID(bad)
		assert.ErrorIs(t, err, ErrMalformedSeat, bad)
	}
}

func TestLayout(t *testing.T) {
	l := DefaultLayout
	seats := l.Seats()
	assert.Len(t, seats, 32)
	assert.Equal(t, "A1", seats[0])
	assert.Equal(t, "A8", seats[7])
	assert.Equal(t, "D8", seats[31])

	assert.True(t, l.Contains("D8"))
	assert.True(t, l.Contains("b3"))
	assert.False(t, l.Contains("E1"))
	assert.False(t, l.Contains("A9"))
	assert.Equal(t, 0, Layout{}.Capacity())
}

func TestSeatSet(t *testing.T) {
	s := NewSeatSet("B2", "a10", "", "A2")
	assert.True(t, s.Has("b2"))
	assert.False(t, s.Has(""))
	assert.Equal(t, []string{"A2", "A10", "B2"}, s.Sorted())

	var nilSet SeatSet
	assert.False(t, nilSet.Has("A1"))
}

func TestSelection_Select(t *testing.T) {
	sel := NewSelection(DefaultLayout)
	assert.Equal(t, NoSelection, sel.State())

	require.NoError(t, sel.Select("a1", nil))
	id, ok := sel.Current()
	assert.True(t, ok)
	assert.Equal(t, "A1", id)

	// at most one seat selected
	require.NoError(t, sel.Select("B2", nil))
	id, _ = sel.Current()
	assert.Equal(t, "B2", id)
}

func TestSelection_RejectsBookedSeat(t *testing.T) {
	sel := NewSelection(DefaultLayout)
	require.NoError(t, sel.Select("A2", nil))

	err := sel.Select("A1", NewSeatSet("A1"))
	assert.ErrorIs(t, err, ErrSeatBooked)
	assert.Equal(t, NoSelection, sel.State())
}

func TestSelection_RejectsSeatOffLayout(t *testing.T) {
	sel := NewSelection(DefaultLayout)
	assert.ErrorIs(t, sel.Select("Z99", nil), ErrSeatNotOnLayout)
	assert.Equal(t, NoSelection, sel.State())
}

func TestSelection_RefreshClearsStaleSeat(t *testing.T) {
	sel := NewSelection(DefaultLayout)
	require.NoError(t, sel.Select("C3", NewSeatSet("A1")))

	assert.False(t, sel.Refresh(NewSeatSet("A1", "A2")))
	assert.Equal(t, Selected, sel.State())

	assert.True(t, sel.Refresh(NewSeatSet("A1", "C3")))
	assert.Equal(t, NoSelection, sel.State())

	assert.False(t, sel.Refresh(NewSeatSet("C3")), "nothing left to clear")
}

func TestSelection_Reset(t *testing.T) {
	sel := NewSelection(DefaultLayout)
	require.NoError(t, sel.Select("D8", nil))
	sel.Reset()
	_, ok := sel.Current()
	assert.False(t, ok)
}

func TestSelection_ConcurrentRefresh(t *testing.T) {
	sel := NewSelection(DefaultLayout)
	booked := NewSeatSet("A1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = sel.Select("B1", nil) }()
		go func() { defer wg.Done(); sel.Refresh(booked) }()
	}
	wg.Wait()
	id, ok := sel.Current()
	assert.True(t, ok)
	assert.Equal(t, "B1", id)
}

func TestViewAndRender(t *testing.T) {
	l := Layout{Rows: 2, SeatsPerRow: 3}
	rows := l.View(NewSeatSet("A2"), "b3")

	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].Label)
	assert.Equal(t, StateBooked, rows[0].Seats[1].State)
	assert.Equal(t, StateSelected, rows[1].Seats[2].State)
	assert.Equal(t, StateAvailable, rows[0].Seats[0].State)

	assert.Equal(t, "A [ ] [x] [ ]\nB [ ] [ ] [*]\n", Render(rows))
}
