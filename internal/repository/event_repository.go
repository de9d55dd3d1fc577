package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/event-ticket-booking/internal/model"
)

// activeStatusSQL lists the ticket states that occupy a seat.
const activeStatusSQL = `('booked','used')`

const eventColumns = `id, title, description, venue, event_date, price, total_seats, available_seats, status, created_by, created_at, updated_at`

// EventRepo owns the events table and, with it, the available_seats
// counter.  There is deliberately no method that writes the counter to an
// arbitrary value: it only moves through DecrementAvailable, the
// cancellation transaction in TicketRepo and the out-of-band Reconcile.
type EventRepo struct {
    db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB for health checks.
func (r *EventRepo) DB() *sql.DB { return r.db }

type rowScanner interface {
    Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
    var e model.Event
    var desc sql.NullString
    if err := row.Scan(&e.ID, &e.Title, &desc, &e.Venue, &e.EventDate, &e.Price,
        &e.TotalSeats, &e.AvailableSeats, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
        return nil, err
    }
    e.Description = desc.String
    return &e, nil
}

// Create inserts a new event with its full capacity available and assigns
// the generated ID and DB defaults back to e.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
    if e.Status == "" {
        e.Status = model.EventUpcoming
    }
    e.AvailableSeats = e.TotalSeats

    const q = `INSERT INTO events (title, description, venue, event_date, price, total_seats, available_seats, status, created_by)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var desc sql.NullString
    if e.Description != "" {
        desc = sql.NullString{String: e.Description, Valid: true}
    }
    res, err := r.db.ExecContext(ctx, q, e.Title, desc, e.Venue, e.EventDate.UTC(), e.Price,
        e.TotalSeats, e.AvailableSeats, e.Status, e.CreatedBy)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    created, err := r.GetByID(ctx, uint64(id))
    if err != nil {
        return err
    }
    *e = *created
    return nil
}

// GetByID retrieves an event by its ID.  It returns ErrEventNotFound if
// there is no matching row.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
    e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrEventNotFound
    }
    return e, err
}

// DecrementAvailable takes one unit of capacity with a conditional update
// that only applies while available_seats > 0, then reads the counter back
// inside the same transaction.  applied is false when the event had no
// capacity left at the time of the update.
func (r *EventRepo) DecrementAvailable(ctx context.Context, id uint64) (remaining int, applied bool, err error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    res, err := tx.ExecContext(ctx,
        `UPDATE events SET available_seats = available_seats - 1 WHERE id = ? AND available_seats > 0`, id)
    if err != nil {
        return 0, false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return 0, false, err
    }
    err = tx.QueryRowContext(ctx, `SELECT available_seats FROM events WHERE id = ?`, id).Scan(&remaining)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, false, ErrEventNotFound
    }
    if err != nil {
        return 0, false, err
    }
    if err := tx.Commit(); err != nil {
        return 0, false, err
    }
    committed = true
    return remaining, n == 1, nil
}

// Reconcile recomputes available_seats from the active tickets of the
// event and stores it when it differs.  It returns the counter before and
// after the repair.
//
// A booked ticket is inserted before the counter is decremented, so a
// ticket booked after settledBefore may not be reflected in the counter
// yet.  When the event has any such ticket nothing is written and
// ErrReconcileDeferred is returned.
func (r *EventRepo) Reconcile(ctx context.Context, id uint64, settledBefore time.Time) (before, after int, err error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var total int
    err = tx.QueryRowContext(ctx,
        `SELECT total_seats, available_seats FROM events WHERE id = ? FOR UPDATE`, id).Scan(&total, &before)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, 0, ErrEventNotFound
    }
    if err != nil {
        return 0, 0, err
    }
    var active, settling int
    if err := tx.QueryRowContext(ctx,
        `SELECT COUNT(*), COALESCE(SUM(booking_date > ?), 0) FROM tickets WHERE event_id = ? AND status IN `+activeStatusSQL,
        settledBefore.UTC(), id).Scan(&active, &settling); err != nil {
        return 0, 0, err
    }
    if settling > 0 {
        return before, before, ErrReconcileDeferred
    }
    after = total - active
    if after < 0 {
        return before, before, fmt.Errorf("event %d has %d active tickets for %d seats", id, active, total)
    }
    if after != before {
        if _, err := tx.ExecContext(ctx, `UPDATE events SET available_seats = ? WHERE id = ?`, after, id); err != nil {
            return 0, 0, err
        }
    }
    if err := tx.Commit(); err != nil {
        return 0, 0, err
    }
    committed = true
    return before, after, nil
}

// ListDrifted returns the events whose counter disagrees with their
// active tickets.
func (r *EventRepo) ListDrifted(ctx context.Context) ([]uint64, error) {
    const q = `SELECT e.id
               FROM events e
               LEFT JOIN tickets t ON t.event_id = e.id AND t.status IN ` + activeStatusSQL + `
               GROUP BY e.id, e.total_seats, e.available_seats
               HAVING e.available_seats <> e.total_seats - COUNT(t.id)`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}
