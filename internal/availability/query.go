// Package availability answers "which seats of this event are taken" and
// keeps clients' view of that answer reasonably fresh.  Everything here is
// advisory: the booking service re-checks against storage.
package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/notify"
	"github.com/iliyamo/event-ticket-booking/internal/seatmap"
)

// DefaultCacheTTL bounds how long a cached booked set may be served.
const DefaultCacheTTL = 5 * time.Second

// Reader is the storage read used by Query.
type Reader interface {
	BookedSeats(ctx context.Context, eventID uint64) ([]string, error)
}

// Query returns booked seats, optionally through a short-lived Redis cache
// that is dropped on every booking or cancellation.
type Query struct {
	store Reader
	rdb   *redis.Client
	ttl   time.Duration
}

// NewQuery builds a Query.  rdb may be nil to disable caching.
func NewQuery(store Reader, rdb *redis.Client, ttl time.Duration) *Query {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Query{store: store, rdb: rdb, ttl: ttl}
}

func cacheKey(eventID uint64) string { return fmt.Sprintf("booked:%d", eventID) }

// BookedSeats returns the seats held by booked or used tickets.  Cache
// failures fall through to storage.
func (q *Query) BookedSeats(ctx context.Context, eventID uint64) (seatmap.SeatSet, error) {
	key := cacheKey(eventID)
	if q.rdb != nil {
		raw, err := q.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			var ids []string
			if jerr := json.Unmarshal([]byte(raw), &ids); jerr == nil {
				return seatmap.NewSeatSet(ids...), nil
			}
		case !errors.Is(err, redis.Nil):
			logrus.WithError(err).WithField("event_id", eventID).Debug("availability: cache read failed")
		}
	}

	ids, err := q.store.BookedSeats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	set := seatmap.NewSeatSet(ids...)

	if q.rdb != nil {
		payload, _ := json.Marshal(set.Sorted())
		if err := q.rdb.SetEx(ctx, key, string(payload), q.ttl).Err(); err != nil {
			logrus.WithError(err).WithField("event_id", eventID).Debug("availability: cache write failed")
		}
	}
	return set, nil
}

// Invalidate drops the cached booked set of the event.
func (q *Query) Invalidate(ctx context.Context, eventID uint64) error {
	if q.rdb == nil {
		return nil
	}
	return q.rdb.Del(ctx, cacheKey(eventID)).Err()
}

// Notify invalidates the cache when a change affects the booked set, so
// Query can sit in a notify.Multi next to the other listeners.
func (q *Query) Notify(ctx context.Context, c notify.Change) error {
	if !c.SeatsChanged() {
		return nil
	}
	return q.Invalidate(ctx, c.EventID)
}
