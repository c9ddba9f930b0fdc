package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// ErrBrokerUnavailable is returned while the publisher waits out the
// redial cooldown after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

const (
	dialTimeout    = 2 * time.Second
	redialCooldown = 30 * time.Second
)

// Publisher sends booking events to RabbitMQ over one long-lived connection.
// The connection is opened lazily and reopened after it breaks; while the
// broker is unreachable publishes fail fast until the cooldown expires.
type Publisher struct {
	url      string
	cooldown time.Duration

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	retryAt  time.Time
}

// NewPublisher returns a Publisher for the given AMQP URL.  No connection is
// made until the first event.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, cooldown: redialCooldown, declared: map[string]bool{}}
}

// Publish marshals ev and sends it to ev.Type's queue as a persistent
// message.  Errors are logged and returned; callers treat them as
// non-fatal.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	entry := log.WithFields(log.Fields{"queue": ev.Type, "booking_id": ev.BookingID})

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		if !errors.Is(err, ErrBrokerUnavailable) {
			entry.WithError(err).Warn("rabbitmq: connect failed")
		}
		return err
	}
	if !p.declared[ev.Type] {
		if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
			entry.WithError(err).Warn("rabbitmq: queue declare failed")
			p.reset()
			return err
		}
		p.declared[ev.Type] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
		entry.WithError(err).Warn("rabbitmq: publish failed")
		p.reset()
		return err
	}
	return nil
}

// channel returns the open channel, dialing when there is none.  p.mu must
// be held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if time.Now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		p.retryAt = time.Now().Add(p.cooldown)
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.retryAt = time.Now().Add(p.cooldown)
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// reset drops the current connection.  p.mu must be held.
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

// Close shuts the connection down.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
