package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/config"
)

// Publisher sends booking events to the broker.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error
	Close() error
}

// NewPublisher returns the publisher selected by cfg.Kind.  Unknown kinds
// are an error; "none" yields a publisher that drops events.
func NewPublisher(cfg config.BrokerConfig, log *zap.Logger) (Publisher, error) {
	switch cfg.Kind {
	case config.BrokerAMQP, "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.Queue, log), nil
	case config.BrokerKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log), nil
	case config.BrokerNone, "":
		return NopPublisher{}, nil
	}
	return nil, fmt.Errorf("queue: unknown broker %q", cfg.Kind)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) PublishBookingConfirmed(context.Context, BookingConfirmedEvent) error { return nil }
func (NopPublisher) Close() error                                                         { return nil }

// ErrBrokerUnavailable is returned without dialling while a recent
// connection failure is cooling down.
var ErrBrokerUnavailable = errors.New("queue: broker unavailable")

const (
	defaultDialTimeout  = 5 * time.Second
	defaultDialCooldown = 5 * time.Second
)

// AMQPPublisher publishes to a durable RabbitMQ queue through the default
// exchange.  The connection is opened on first use and re-opened after a
// failed publish.
//
// Every step, including the dial and the AMQP handshake, is bounded by the
// caller's context.  After a failed dial the publisher refuses further
// publishes for a cooldown so that a broker outage costs callers nothing.
type AMQPPublisher struct {
	url      string        // amqp:// URL of the broker
	queue    string        // durable queue fed through the default exchange
	log      *zap.Logger   // component logger
	cooldown time.Duration // how long a failed dial short-circuits publishes

	slot      chan struct{}    // capacity 1; guards the fields below
	conn      *amqp.Connection // nil until first use
	ch        *amqp.Channel    // publish channel on conn
	downUntil time.Time        // end of the current cooldown
}

func NewAMQPPublisher(url, queue string, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{
		url:      url,
		queue:    queue,
		log:      log.Named("rabbitmq"),
		cooldown: defaultDialCooldown,
		slot:     make(chan struct{}, 1),
	}
}

// acquire waits for exclusive use of the connection or gives up when ctx
// is done.
func (p *AMQPPublisher) acquire(ctx context.Context) error {
	select {
	case p.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AMQPPublisher) release() { <-p.slot }

// channel returns an open channel, dialling if needed.  Callers hold the
// slot.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if time.Now().Before(p.downUntil) {
		return nil, ErrBrokerUnavailable
	}
	p.reset()
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialContext(ctx),
	})
	if err != nil {
		p.downUntil = time.Now().Add(p.cooldown)
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.downUntil = time.Time{}
	return ch, nil
}

// dialContext opens the TCP connection under ctx and sets the socket
// deadline for the AMQP handshake to ctx's deadline.  The client clears
// the deadline once the connection is open.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(defaultDialTimeout)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// PublishBookingConfirmed publishes ev as a persistent JSON message keyed
// by the queue name.  The trace context of ctx travels in the headers.
// It returns once ctx is done even if the broker never answers.
func (p *AMQPPublisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	body, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	headers := amqp.Table{}
	for k, v := range traceHeaders(ctx) {
		headers[k] = v
	}

	if err := p.acquire(ctx); err != nil {
		p.log.Warn("publish abandoned", zap.String("reservation_id", ev.ReservationID), zap.Error(err))
		return err
	}
	defer p.release()
	ch, err := p.channel(ctx)
	if err != nil {
		p.log.Warn("publish failed", zap.String("reservation_id", ev.ReservationID), zap.Error(err))
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ReservationID,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		p.log.Warn("publish failed", zap.String("reservation_id", ev.ReservationID), zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.slot <- struct{}{}
	defer p.release()
	p.reset()
	return nil
}

// traceHeaders serialises the span context of ctx with the global
// propagator.
func traceHeaders(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// contextFromHeaders is the inverse of traceHeaders.
func contextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}
