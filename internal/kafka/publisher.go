package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-events/internal/config"
	"ms-events/internal/models"
)

// EventPublisher maps domain changes onto the configured topics.
type EventPublisher struct {
	Producer *Producer
	Topics   config.TopicConfig
}

func NewEventPublisher(producer *Producer, topics config.TopicConfig) *EventPublisher {
	return &EventPublisher{Producer: producer, Topics: topics}
}

func (p *EventPublisher) PublishEventCreated(ctx context.Context, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Producer.Publish(ctx, p.Topics.EventCreated, event.ID, value)
}

func (p *EventPublisher) PublishRegistration(ctx context.Context, msg models.RegistrationMessage) error {
	var topic string
	switch msg.Type {
	case models.MessageRegistrationCreated:
		topic = p.Topics.RegistrationCreated
	case models.MessageRegistrationCancelled:
		topic = p.Topics.RegistrationCancelled
	default:
		return fmt.Errorf("unknown registration message type %q", msg.Type)
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.Producer.Publish(ctx, topic, msg.EventID, value)
}

// NoopPublisher drops every message. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishEventCreated(context.Context, models.Event) error { return nil }

func (NoopPublisher) PublishRegistration(context.Context, models.RegistrationMessage) error {
	return nil
}
