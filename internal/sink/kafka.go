package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/coachpo/krakenws/internal/config"
)

var _ Publisher = (*KafkaPublisher)(nil)

// kafkaWriter is the subset of *kafka.Writer the publisher needs.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per record, keyed by Record.Key so that
// updates for one symbol stay on one partition.
type KafkaPublisher struct {
	writer kafkaWriter
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for cfg.Topic. Brokers are contacted
// lazily on the first write.
func NewKafkaPublisher(cfg config.KafkaSinkConfig) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	})
}

func newKafkaPublisher(w kafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// Publish writes rec with its channel and feed type as headers.
func (p *KafkaPublisher) Publish(ctx context.Context, rec Record) error {
	msg := kafka.Message{
		Key:   []byte(rec.Key()),
		Value: rec.Payload,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(rec.Channel)},
			{Key: "type", Value: []byte(rec.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", rec.Key(), err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
