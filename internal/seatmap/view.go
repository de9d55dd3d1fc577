package seatmap

import "strings"

// SeatState is the visual state of one cell.
type SeatState string

const (
	StateAvailable SeatState = "available"
	StateBooked    SeatState = "booked"
	StateSelected  SeatState = "selected"
)

// Cell is one seat in a rendered grid.
type Cell struct {
	ID     string    `json:"id"`
	Number int       `json:"number"`
	State  SeatState `json:"state"`
}

// Row is one labeled row of cells.
type Row struct {
	Label string `json:"label"`
	Seats []Cell `json:"seats"`
}

// View returns the grid with each seat marked booked, selected or
// available.  selected may be empty.
func (l Layout) View(booked SeatSet, selected string) []Row {
	selected = Normalize(selected)
	rows := make([]Row, 0, l.Rows)
	for r := 0; r < l.Rows; r++ {
		row := Row{Label: RowLabel(r), Seats: make([]Cell, 0, l.SeatsPerRow)}
		for n := 1; n <= l.SeatsPerRow; n++ {
			id := SeatID(r, n)
			st := StateAvailable
			switch {
			case booked.Has(id):
				st = StateBooked
			case id == selected:
				st = StateSelected
			}
			row.Seats = append(row.Seats, Cell{ID: id, Number: n, State: st})
		}
		rows = append(rows, row)
	}
	return rows
}

// Render draws the grid as text: "[ ]" available, "[x]" booked and "[*]"
// selected, one line per row.
func Render(rows []Row) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(row.Label)
		for _, c := range row.Seats {
			switch c.State {
			case StateBooked:
				b.WriteString(" [x]")
			case StateSelected:
				b.WriteString(" [*]")
			default:
				b.WriteString(" [ ]")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
