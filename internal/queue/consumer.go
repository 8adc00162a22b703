package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/config"
)

// Handler processes one booking event.
type Handler func(ctx context.Context, ev BookingConfirmedEvent) error

// Consumer is a long-running broker subscription.
type Consumer interface {
	Run(ctx context.Context) error
}

// NewConsumer returns the consumer selected by cfg.Kind.
func NewConsumer(cfg config.BrokerConfig, h Handler, log *zap.Logger) (Consumer, error) {
	switch cfg.Kind {
	case config.BrokerAMQP, "amqp":
		return NewAMQPConsumer(cfg.AMQPURL, cfg.Queue, h, log), nil
	case config.BrokerKafka:
		return NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, h, log), nil
	}
	return nil, fmt.Errorf("queue: no consumer for broker %q", cfg.Kind)
}

func dispatch(ctx context.Context, body []byte, h Handler) error {
	ev, err := DecodeBookingConfirmed(body)
	if err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return h(ctx, ev)
}

// AMQPConsumer consumes the booking queue with manual acks.  It redials
// with exponential backoff whenever the connection drops.
type AMQPConsumer struct {
	url        string
	queue      string
	handler    Handler
	log        *zap.Logger
	maxBackoff time.Duration
}

func NewAMQPConsumer(url, queue string, h Handler, log *zap.Logger) *AMQPConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPConsumer{url: url, queue: queue, handler: h, log: log.Named("booking-consumer"), maxBackoff: 30 * time.Second}
}

// Run keeps consuming until ctx is cancelled, then returns nil.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < c.maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *AMQPConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery acks processed messages and rejects failed ones without
// requeueing, to avoid tight redelivery loops on poison messages.
func (c *AMQPConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	if err := dispatch(contextFromHeaders(ctx, headers), d.Body, c.handler); err != nil {
		c.log.Error("handle message failed", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
