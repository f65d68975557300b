package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// EventsQueue is the durable queue carrying every IAM event.
const EventsQueue = "iam.events"

const (
	defaultBuffer      = 256
	defaultDialTimeout = 2 * time.Second
	publishTimeout     = 2 * time.Second
)

var (
	// ErrBufferFull is returned when events arrive faster than the broker
	// takes them; the event is dropped.
	ErrBufferFull = errors.New("event buffer full")
	// ErrPublisherClosed is returned after Close.
	ErrPublisherClosed = errors.New("event publisher closed")
)

// Publisher publishes IAM events to RabbitMQ. Publish only enqueues; a
// single worker goroutine owns the broker connection, opening it on demand
// and reopening it after a failure. A slow or silent broker therefore never
// holds up the caller.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	log         zerolog.Logger

	pending   chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher starts the worker. It does not dial; the first event does.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return newPublisher(url, log, defaultBuffer, defaultDialTimeout)
}

func newPublisher(url string, log zerolog.Logger, buffer int, dialTimeout time.Duration) *Publisher {
	p := &Publisher{
		url:         url,
		queue:       EventsQueue,
		dialTimeout: dialTimeout,
		log:         log.With().Str("component", "event-publisher").Logger(),
		pending:     make(chan Event, buffer),
		done:        make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish queues ev for delivery and returns at once. Delivery failures
// are logged by the worker.
func (p *Publisher) Publish(_ context.Context, ev Event) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.pending <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	defer p.reset()
	for {
		select {
		case <-p.done:
			if n := len(p.pending); n > 0 {
				p.log.Warn().Int("dropped", n).Msg("publisher closed with undelivered events")
			}
			return
		case ev := <-p.pending:
			if err := p.send(ev); err != nil {
				p.log.Warn().Err(err).Str("event", string(ev.Type)).Str("event_id", ev.ID).Msg("event not delivered")
			}
		}
	}
}

// send publishes one event as a persistent JSON message on the default
// exchange, routed to the events queue.
func (p *Publisher) send(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// channel returns the open channel, dialing and declaring the queue if
// needed. The dial and the AMQP handshake are bounded by dialTimeout.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// durable so events survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.log.Debug().Str("queue", p.queue).Msg("broker connection opened")
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close stops the worker, waiting for an in-flight delivery to finish, and
// releases the broker connection. Queued events are dropped.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
	return nil
}
