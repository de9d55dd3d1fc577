package queue

import (
    "context"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-ticket-booking/internal/notify"
)

func TestFromChange(t *testing.T) {
    at := time.Date(2026, 4, 2, 18, 30, 0, 0, time.FixedZone("CET", 3600))
    ev := FromChange(notify.Change{Kind: notify.TicketBooked, EventID: 3, TicketID: 11, UserID: 7,
        SeatNumber: "A1", AvailableSeats: 31, At: at})

    assert.Equal(t, "ticket.booked", ev.Kind)
    assert.Equal(t, "2026-04-02T17:30:00Z", ev.OccurredAt)
    assert.Equal(t, 31, ev.AvailableSeats)
}

func TestQueueFor(t *testing.T) {
    q, ok := QueueFor(notify.TicketCancelled)
    assert.True(t, ok)
    assert.Equal(t, TicketCancelledQueue, q)

    q, ok = QueueFor(notify.BookingInconsistent)
    assert.True(t, ok)
    assert.Equal(t, InconsistentQueue, q)

    _, ok = QueueFor(notify.TicketUsed)
    assert.False(t, ok)
}

func TestPublisher_NotifySkipsUnqueuedKinds(t *testing.T) {
    p := NewPublisher("amqp://nobody@127.0.0.1:1/")
    assert.NoError(t, p.Notify(context.Background(), notify.Change{Kind: notify.TicketUsed, EventID: 1}))
    assert.Len(t, p.pending, 0)
}

func TestPublisher_NotifyDoesNotWaitForBroker(t *testing.T) {
    p := newPublisher("amqp://nobody@127.0.0.1:1/", 1)

    started := time.Now()
    require.NoError(t, p.Notify(context.Background(), notify.Change{Kind: notify.TicketBooked, EventID: 1, TicketID: 2}))
    assert.Less(t, time.Since(started), dialTimeout)

    msg := <-p.pending
    assert.Equal(t, TicketBookedQueue, msg.queue)
    assert.Contains(t, string(msg.body), `"ticket_id":2`)
}

func TestPublisher_NotifyBacklogFull(t *testing.T) {
    p := newPublisher("amqp://nobody@127.0.0.1:1/", 1)
    c := notify.Change{Kind: notify.TicketCancelled, EventID: 1}

    require.NoError(t, p.Notify(context.Background(), c))
    assert.ErrorIs(t, p.Notify(context.Background(), c), ErrPublishBacklog)
}

func TestPublisher_RunStopsWhileBrokerDown(t *testing.T) {
    p := newPublisher("amqp://nobody@127.0.0.1:1/", 4)
    require.NoError(t, p.Notify(context.Background(), notify.Change{Kind: notify.TicketBooked, EventID: 1}))

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        p.Run(ctx)
        close(done)
    }()
    time.Sleep(50 * time.Millisecond)
    cancel()

    select {
    case <-done:
    case <-time.After(5 * time.Second):
        t.Fatal("Run did not return after cancel")
    }
}

func TestAuditLog_Handle(t *testing.T) {
    dir := t.TempDir()
    a := &AuditLog{Dir: dir}

    require.NoError(t, a.Handle(context.Background(),
        []byte(`{"kind":"ticket.booked","ticket_id":5,"event_id":1,"user_id":7,"seat_number":"B2","available_seats":9,"occurred_at":"2026-01-01T10:00:00Z"}`)))
    require.NoError(t, a.Handle(context.Background(),
        []byte(`{"kind":"ticket.cancelled","ticket_id":5,"event_id":1,"user_id":7,"seat_number":"B2","available_seats":10,"occurred_at":"2026-01-01T11:00:00Z"}`)))

    data, err := os.ReadFile(filepath.Join(dir, "booking.log"))
    require.NoError(t, err)
    assert.Equal(t,
        "[2026-01-01T10:00:00Z] Ticket booked | ticket_id=5 | user_id=7 | event_id=1 | seat=B2 | available_seats=9\n"+
            "[2026-01-01T11:00:00Z] Ticket cancelled | ticket_id=5 | user_id=7 | event_id=1 | seat=B2 | available_seats=10\n",
        string(data))
}

func TestAuditLog_RejectsMalformed(t *testing.T) {
    a := &AuditLog{Dir: t.TempDir()}
    assert.Error(t, a.Handle(context.Background(), []byte("not json")))
}
