package kafka

import (
	"context"
	"fmt"
	"time"

	"ms-events/internal/logger"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	publishBatchTimeout = 5 * time.Millisecond
	publishTimeout      = 3 * time.Second
)

type Producer struct {
	Writer messageWriter
	Logger *logger.Logger
	// Timeout bounds a single Publish. Zero leaves the caller's context alone.
	Timeout time.Duration
}

// NewProducer builds a producer that picks the topic per message.
// Each write is flushed on its own, so callers never sit out the
// writer's default one second batch window.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           publishBatchTimeout,
		WriteTimeout:           publishTimeout,
	}
	return &Producer{Writer: writer, Logger: log, Timeout: publishTimeout}
}

// Publish writes one keyed message to topic.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(value)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
