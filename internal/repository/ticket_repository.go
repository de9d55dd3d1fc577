package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/event-ticket-booking/internal/model"
)

const ticketColumns = `id, event_id, user_id, seat_number, status, ticket_number, qr_code, price, booking_date`

// TicketRepo provides persistence for tickets.  The one-active-ticket-per-
// seat rule is enforced by the uq_tickets_active_seat index; the methods
// here translate violations into ErrDuplicateSeat.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

func scanTicket(row rowScanner) (*model.Ticket, error) {
    var t model.Ticket
    var seat sql.NullString
    if err := row.Scan(&t.ID, &t.EventID, &t.UserID, &seat, &t.Status,
        &t.TicketNumber, &t.QRCode, &t.Price, &t.BookingDate); err != nil {
        return nil, err
    }
    t.SeatNumber = seat.String
    return &t, nil
}

// SeatTaken reports whether an active ticket already holds seat for the
// event.  It is an advisory read; Create is the authoritative check.
func (r *TicketRepo) SeatTaken(ctx context.Context, eventID uint64, seat string) (bool, error) {
    const q = `SELECT EXISTS(SELECT 1 FROM tickets WHERE event_id = ? AND seat_number = ? AND status IN ` + activeStatusSQL + `)`
    var taken bool
    if err := r.db.QueryRowContext(ctx, q, eventID, seat).Scan(&taken); err != nil {
        return false, err
    }
    return taken, nil
}

// BookedSeats returns the seat identifiers held by booked or used tickets of
// the event.  Tickets without a seat are skipped.
func (r *TicketRepo) BookedSeats(ctx context.Context, eventID uint64) ([]string, error) {
    const q = `SELECT seat_number FROM tickets
               WHERE event_id = ? AND status IN ` + activeStatusSQL + `
                 AND seat_number IS NOT NULL AND seat_number <> ''
               ORDER BY seat_number`
    rows, err := r.db.QueryContext(ctx, q, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    seats := make([]string, 0)
    for rows.Next() {
        var s string
        if err := rows.Scan(&s); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    return seats, rows.Err()
}

// Create inserts t and assigns the generated ID.  A concurrent booking of
// the same seat surfaces as ErrDuplicateSeat.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
    const q = `INSERT INTO tickets (event_id, user_id, seat_number, status, ticket_number, qr_code, price, booking_date)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    var seat sql.NullString
    if t.SeatNumber != "" {
        seat = sql.NullString{String: t.SeatNumber, Valid: true}
    }
    res, err := r.db.ExecContext(ctx, q, t.EventID, t.UserID, seat, t.Status,
        t.TicketNumber, t.QRCode, t.Price, t.BookingDate.UTC())
    if err != nil {
        if isActiveSeatConflict(err) {
            return ErrDuplicateSeat
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    return nil
}

// Delete removes a ticket row.  Deleting a row that is already gone is not
// an error.
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
    _, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
    return err
}

// GetByID retrieves a ticket by primary key.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
    t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrTicketNotFound
    }
    return t, err
}

// GetByCode retrieves a ticket by its verification (QR) code.
func (r *TicketRepo) GetByCode(ctx context.Context, code string) (*model.Ticket, error) {
    t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE qr_code = ?`, code))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrTicketNotFound
    }
    return t, err
}

// MarkUsed moves a booked ticket to used.  The seat stays occupied and the
// event counter is unchanged.
func (r *TicketRepo) MarkUsed(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status = 'used' WHERE id = ? AND status = 'booked'`, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    var status string
    err = r.db.QueryRowContext(ctx, `SELECT status FROM tickets WHERE id = ?`, id).Scan(&status)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrTicketNotFound
    }
    if err != nil {
        return err
    }
    return ErrInvalidTransition
}

// CancelAndRelease cancels a booked ticket owned by userID and returns its
// seat to the event in one transaction.  The increment is bounded by
// total_seats so a drifted counter can never exceed capacity.  It returns
// the cancelled ticket and the event's available seats afterwards.
func (r *TicketRepo) CancelAndRelease(ctx context.Context, ticketID, userID uint64) (*model.Ticket, int, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    t, err := scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ? FOR UPDATE`, ticketID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, 0, ErrTicketNotFound
    }
    if err != nil {
        return nil, 0, err
    }
    if t.UserID != userID {
        return nil, 0, ErrForbidden
    }
    if t.Status != model.TicketBooked {
        return nil, 0, ErrInvalidTransition
    }

    if _, err := tx.ExecContext(ctx, `UPDATE tickets SET status = 'cancelled' WHERE id = ?`, ticketID); err != nil {
        return nil, 0, err
    }
    if _, err := tx.ExecContext(ctx,
        `UPDATE events SET available_seats = available_seats + 1 WHERE id = ? AND available_seats < total_seats`, t.EventID); err != nil {
        return nil, 0, err
    }
    var remaining int
    if err := tx.QueryRowContext(ctx, `SELECT available_seats FROM events WHERE id = ?`, t.EventID).Scan(&remaining); err != nil {
        return nil, 0, err
    }
    if err := tx.Commit(); err != nil {
        return nil, 0, err
    }
    committed = true
    t.Status = model.TicketCancelled
    return t, remaining, nil
}

// ListByUser returns the user's tickets with their event details, newest
// booking first.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.TicketDetail, error) {
    const q = `SELECT t.id, t.event_id, t.user_id, t.seat_number, t.status, t.ticket_number, t.qr_code, t.price, t.booking_date,
                      e.title, e.event_date, e.venue
               FROM tickets t
               JOIN events e ON e.id = t.event_id
               WHERE t.user_id = ?
               ORDER BY t.booking_date DESC, t.id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.TicketDetail, 0)
    for rows.Next() {
        var d model.TicketDetail
        var seat sql.NullString
        if err := rows.Scan(&d.ID, &d.EventID, &d.UserID, &seat, &d.Status, &d.TicketNumber, &d.QRCode,
            &d.Price, &d.BookingDate, &d.EventTitle, &d.EventDate, &d.Venue); err != nil {
            return nil, err
        }
        d.SeatNumber = seat.String
        out = append(out, d)
    }
    return out, rows.Err()
}

// ListByEvent returns every ticket of the event in booking order.
func (r *TicketRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? ORDER BY booking_date, id`, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Ticket, 0)
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    return out, rows.Err()
}
