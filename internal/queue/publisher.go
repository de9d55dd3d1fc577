package queue

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-ticket-booking/internal/notify"
)

const (
    dialTimeout   = 2 * time.Second
    publishBuffer = 256
    maxRetryDelay = 30 * time.Second
)

// ErrPublishBacklog is returned by Notify when the outgoing buffer is full.
var ErrPublishBacklog = errors.New("rabbitmq: publish backlog full")

type outgoing struct {
    queue string
    body  []byte
}

// Publisher sends ticket events to RabbitMQ.  Notify only buffers the
// message; Run delivers the buffer over one long-lived connection, so a
// slow or unreachable broker never adds latency to the request that
// produced the event.
type Publisher struct {
    url     string
    pending chan outgoing

    // owned by Run
    conn     *amqp.Connection
    ch       *amqp.Channel
    declared map[string]bool
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher { return newPublisher(url, publishBuffer) }

func newPublisher(url string, buffer int) *Publisher {
    return &Publisher{url: url, pending: make(chan outgoing, buffer), declared: map[string]bool{}}
}

// Notify queues the change for its broker queue.  Changes without a queue
// are ignored.
func (p *Publisher) Notify(_ context.Context, c notify.Change) error {
    queue, ok := QueueFor(c.Kind)
    if !ok {
        return nil
    }
    body, err := json.Marshal(FromChange(c))
    if err != nil {
        return err
    }
    select {
    case p.pending <- outgoing{queue: queue, body: body}:
        return nil
    default:
        logrus.WithFields(logrus.Fields{"queue": queue, "event_id": c.EventID}).
            Warn("rabbitmq: publish backlog full, event dropped")
        return ErrPublishBacklog
    }
}

// Run delivers buffered events until ctx is done.  A message that fails is
// retried with backoff on a fresh connection.
func (p *Publisher) Run(ctx context.Context) {
    defer p.reset()
    logrus.Info("RabbitMQ publisher started")
    for {
        select {
        case <-ctx.Done():
            logrus.Info("RabbitMQ publisher stopped")
            return
        case msg := <-p.pending:
            if !p.deliver(ctx, msg) {
                return
            }
        }
    }
}

// deliver retries msg until it is published.  It returns false when ctx
// ends first.
func (p *Publisher) deliver(ctx context.Context, msg outgoing) bool {
    delay := time.Second
    for {
        err := p.send(ctx, msg)
        if err == nil {
            return true
        }
        logrus.WithError(err).WithFields(logrus.Fields{"queue": msg.queue, "retry_in": delay.String()}).
            Warn("rabbitmq: publish failed")
        p.reset()
        select {
        case <-ctx.Done():
            return false
        case <-time.After(delay):
        }
        if delay *= 2; delay > maxRetryDelay {
            delay = maxRetryDelay
        }
    }
}

func (p *Publisher) send(ctx context.Context, msg outgoing) error {
    if p.ch == nil || p.ch.IsClosed() {
        if err := p.connect(); err != nil {
            return err
        }
    }
    if !p.declared[msg.queue] {
        if _, err := p.ch.QueueDeclare(msg.queue, true, false, false, false, nil); err != nil {
            return err
        }
        p.declared[msg.queue] = true
    }
    return p.ch.PublishWithContext(ctx, "", msg.queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         msg.body,
    })
}

func (p *Publisher) connect() error {
    p.reset()
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(dialTimeout),
    })
    if err != nil {
        return err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return err
    }
    p.conn, p.ch = conn, ch
    return nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
    p.declared = map[string]bool{}
}
