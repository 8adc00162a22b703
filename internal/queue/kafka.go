package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes booking events to a Kafka topic, keyed by
// reservation id so events for one reservation stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		log: log.Named("kafka"),
	}
}

func (p *KafkaPublisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	body, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(ev.ReservationID),
		Value:   body,
		Headers: kafkaHeaders(traceHeaders(ctx)),
		Time:    time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("publish failed", zap.String("reservation_id", ev.ReservationID), zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

func kafkaHeaders(m map[string]string) []kafka.Header {
	out := make([]kafka.Header, 0, len(m))
	for k, v := range m {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

// KafkaConsumer reads booking events as part of a consumer group and
// commits each message once the handler has run.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler Handler
	log     *zap.Logger
}

func NewKafkaConsumer(brokers []string, topic, group string, h Handler, log *zap.Logger) *KafkaConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: group,
		}),
		handler: h,
		log:     log.Named("kafka-consumer"),
	}
}

// Run blocks until ctx is cancelled.  Messages that fail to decode or
// handle are logged and committed so one bad message cannot stall the
// partition.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			c.log.Error("fetch failed", zap.Error(err))
			continue
		}
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		if err := dispatch(contextFromHeaders(ctx, headers), msg.Value, c.handler); err != nil {
			c.log.Error("handle message failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit failed", zap.Error(err))
		}
	}
}
