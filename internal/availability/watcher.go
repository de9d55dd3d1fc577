package availability

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/notify"
	"github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

// DefaultPollInterval is the baseline refresh period.
const DefaultPollInterval = 10 * time.Second

// Source fetches the booked set of an event.
type Source interface {
	BookedSeats(ctx context.Context, eventID uint64) (seatmap.SeatSet, error)
}

// Subscriber delivers change notifications for an event.
type Subscriber interface {
	Subscribe(ctx context.Context, eventID uint64) (<-chan notify.Change, error)
}

// Watcher polls the booked set of one event on a fixed interval and, when
// a Subscriber is set, also refreshes as soon as a change is pushed.  Push
// only shortens latency; polling never stops.
type Watcher struct {
	Source     Source
	Subscriber Subscriber
	EventID    uint64
	Interval   time.Duration

	// OnUpdate receives every successfully fetched booked set.
	OnUpdate func(seatmap.SeatSet)
	// OnError receives fetch and subscription failures.  Optional.
	OnError func(error)
}

// Run refreshes immediately and then until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	w.refresh(ctx)

	var changes <-chan notify.Change
	if w.Subscriber != nil {
		ch, err := w.Subscriber.Subscribe(ctx, w.EventID)
		if err != nil {
			w.report(err)
		} else {
			changes = ch
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if c.SeatsChanged() {
				w.refresh(ctx)
			}
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	booked, err := w.Source.BookedSeats(ctx, w.EventID)
	if err != nil {
		if ctx.Err() == nil {
			w.report(err)
		}
		return
	}
	if w.OnUpdate != nil {
		w.OnUpdate(booked)
	}
}

func (w *Watcher) report(err error) {
	if w.OnError != nil {
		w.OnError(err)
	}
}
