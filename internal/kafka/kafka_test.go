package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ms-events/internal/config"
	"ms-events/internal/logger"
	"ms-events/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// stallingWriter blocks until the caller gives up, like a broker that
// never acknowledges.
type stallingWriter struct{}

func (stallingWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stallingWriter) Close() error { return nil }

type fakeReader struct {
	messages []kafka.Message
	errs     []error
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func testLogger() *logger.Logger {
	return logger.NewConsoleLogger(io.Discard, "ERROR")
}

var topics = config.TopicConfig{
	EventCreated:          "events.event.created",
	RegistrationCreated:   "events.registration.created",
	RegistrationCancelled: "events.registration.cancelled",
}

func TestEventPublisherRoutesByType(t *testing.T) {
	writer := &fakeWriter{}
	publisher := NewEventPublisher(&Producer{Writer: writer, Logger: testLogger()}, topics)
	ctx := context.Background()

	require.NoError(t, publisher.PublishEventCreated(ctx, models.Event{ID: "evt-1", Title: "GopherCon"}))
	require.NoError(t, publisher.PublishRegistration(ctx, models.RegistrationMessage{
		Type: models.MessageRegistrationCreated, EventID: "evt-1", UserID: "usr-1",
	}))
	require.NoError(t, publisher.PublishRegistration(ctx, models.RegistrationMessage{
		Type: models.MessageRegistrationCancelled, EventID: "evt-1", UserID: "usr-1",
	}))

	require.Len(t, writer.messages, 3)
	assert.Equal(t, "events.event.created", writer.messages[0].Topic)
	assert.Equal(t, "events.registration.created", writer.messages[1].Topic)
	assert.Equal(t, "events.registration.cancelled", writer.messages[2].Topic)
	for _, msg := range writer.messages {
		assert.Equal(t, "evt-1", string(msg.Key))
	}

	var decoded models.RegistrationMessage
	require.NoError(t, json.Unmarshal(writer.messages[1].Value, &decoded))
	assert.Equal(t, "usr-1", decoded.UserID)
}

func TestEventPublisherRejectsUnknownType(t *testing.T) {
	writer := &fakeWriter{}
	publisher := NewEventPublisher(&Producer{Writer: writer, Logger: testLogger()}, topics)

	err := publisher.PublishRegistration(context.Background(), models.RegistrationMessage{Type: "registration.moved"})

	assert.Error(t, err)
	assert.Empty(t, writer.messages)
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	producer := &Producer{Writer: writer, Logger: testLogger()}

	err := producer.Publish(context.Background(), "events.event.created", "k", []byte("{}"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "events.event.created")
	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)
}

func TestNewProducerFlushesEachMessage(t *testing.T) {
	producer := NewProducer([]string{"localhost:9092"}, testLogger())
	defer producer.Close()

	writer, ok := producer.Writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, writer.BatchSize)
	assert.LessOrEqual(t, writer.BatchTimeout, 10*time.Millisecond)
	assert.Positive(t, producer.Timeout)
}

func TestProducerDoesNotWaitOnStalledWriter(t *testing.T) {
	producer := &Producer{Writer: stallingWriter{}, Logger: testLogger(), Timeout: 50 * time.Millisecond}

	start := time.Now()
	err := producer.Publish(context.Background(), "events.registration.created", "evt-1", []byte("{}"))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConsumerSkipsBadMessages(t *testing.T) {
	good, err := json.Marshal(models.RegistrationMessage{
		Type:       models.MessageRegistrationCreated,
		EventID:    "evt-1",
		Email:      "ada@example.com",
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	reader := &fakeReader{
		errs: []error{errors.New("coordinator not available")},
		messages: []kafka.Message{
			{Topic: "events.registration.created", Value: []byte("not json")},
			{Topic: "events.registration.created", Value: good},
		},
	}
	consumer := &Consumer{reader: reader, logger: testLogger()}

	var received []models.RegistrationMessage
	err = consumer.Start(context.Background(), func(msg models.RegistrationMessage) error {
		received = append(received, msg)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "ada@example.com", received[0].Email)
}

func TestConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &fakeReader{errs: []error{context.Canceled}}
	consumer := &Consumer{reader: reader, logger: testLogger()}

	err := consumer.Start(ctx, func(models.RegistrationMessage) error { return nil })
	assert.NoError(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.PublishEventCreated(context.Background(), models.Event{}))
	assert.NoError(t, p.PublishRegistration(context.Background(), models.RegistrationMessage{}))
}
