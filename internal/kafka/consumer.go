package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ms-events/internal/logger"
	"ms-events/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	logger *logger.Logger
}

// NewConsumer creates a group consumer over the registration topics.
func NewConsumer(brokers []string, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// Start reads registration messages until ctx is cancelled. Malformed
// messages and handler failures are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(models.RegistrationMessage) error) error {
	c.logger.Info("KAFKA", "Kafka consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			// the reader reports io.EOF once closed
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var registration models.RegistrationMessage
		if err := json.Unmarshal(msg.Value, &registration); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message from %s: %v", msg.Topic, err))
			continue
		}

		c.logger.LogKafka("CONSUME", msg.Topic, fmt.Sprintf("%s event=%s", registration.Type, registration.EventID))
		if err := handler(registration); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Handler failed for %s: %v", registration.Type, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
