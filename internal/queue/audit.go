package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sync"
)

// AuditLog appends one human-friendly line per ticket event to
// <Dir>/booking.log.
type AuditLog struct {
    Dir string

    mu sync.Mutex
}

// Handle is a queue Handler for ticket.booked and ticket.cancelled.
func (a *AuditLog) Handle(_ context.Context, body []byte) error {
    var ev TicketEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    dir := a.Dir
    if dir == "" {
        dir = "logs"
    }

    a.mu.Lock()
    defer a.mu.Unlock()
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(auditLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func auditLine(ev TicketEvent) string {
    verb := "Ticket booked"
    switch ev.Kind {
    case "ticket.cancelled":
        verb = "Ticket cancelled"
    case "booking.inconsistent":
        verb = "Booking inconsistent"
    }
    return fmt.Sprintf("[%s] %s | ticket_id=%d | user_id=%d | event_id=%d | seat=%s | available_seats=%d\n",
        ev.OccurredAt, verb, ev.TicketID, ev.UserID, ev.EventID, ev.SeatNumber, ev.AvailableSeats)
}
