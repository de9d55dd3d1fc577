package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Channel is the pub/sub channel carrying changes for one event.
func Channel(eventID uint64) string {
	return fmt.Sprintf("events:%d:changes", eventID)
}

// RedisPublisher publishes changes on the per-event channel.
type RedisPublisher struct {
	rdb redis.Cmdable
}

func NewRedisPublisher(rdb redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Notify(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(c.EventID), string(payload)).Err()
}

// RedisSubscriber delivers changes published by RedisPublisher.
type RedisSubscriber struct {
	rdb *redis.Client
}

func NewRedisSubscriber(rdb *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{rdb: rdb}
}

// Subscribe listens on the event's channel until ctx is done.  The returned
// channel is closed when the subscription ends.
func (s *RedisSubscriber) Subscribe(ctx context.Context, eventID uint64) (<-chan Change, error) {
	ps := s.rdb.Subscribe(ctx, Channel(eventID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(eventID), err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					logrus.WithError(err).WithField("channel", m.Channel).Debug("notify: dropping malformed change")
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
