package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

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

func buildMessage(t *testing.T, key string) Message {
	t.Helper()
	msg, err := NewEventMessage(key, EventMeta{Type: "booking.created"}, map[string]string{"id": key})
	require.NoError(t, err)
	return msg
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "bookings.events")

	err := p.Publish(context.Background(), buildMessage(t, "b1"))
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	assert.Equal(t, "b1", string(w.messages[0].Key))
	assert.JSONEq(t, `{"id":"b1"}`, string(w.messages[0].Value))

	headers := map[string]string{}
	for _, h := range w.messages[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "booking.created", headers[HeaderEventType])
	assert.NotEmpty(t, headers[HeaderEventID])
}

func TestProducer_RejectsInvalidMessages(t *testing.T) {
	p := newProducer(&fakeWriter{}, "bookings.events")

	err := p.Publish(context.Background(), Message{Value: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrEmptyKey)

	err = p.Publish(context.Background(), Message{Key: "b1"})
	assert.ErrorIs(t, err, ErrEmptyValue)
	assert.Equal(t, ErrorTypePermanent, ClassifyError(err))
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	p := newProducer(&fakeWriter{}, "bookings.events")

	var calls []string
	for _, name := range []string{"outer", "inner"} {
		name := name
		p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
			calls = append(calls, name)
			assert.Equal(t, "bookings.events", msg.Topic)
			return next(ctx, msg)
		})
	}

	require.NoError(t, p.Publish(context.Background(), buildMessage(t, "b1")))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestProducer_FailureGoesToDLQ(t *testing.T) {
	brokerErr := errors.New("connection refused")
	dlq := &fakeWriter{}
	p := newProducer(&fakeWriter{err: brokerErr}, "bookings.events")
	p.dlqWriter = dlq

	err := p.Publish(context.Background(), buildMessage(t, "b1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, brokerErr)
	assert.Equal(t, ErrorTypeTransient, ClassifyError(err))

	require.Len(t, dlq.messages, 1)
	var original string
	for _, h := range dlq.messages[0].Headers {
		if h.Key == HeaderOriginalTopic {
			original = string(h.Value)
		}
	}
	assert.Equal(t, "bookings.events", original)
}

func TestProducer_Closed(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "bookings.events")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), buildMessage(t, "b1"))
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestNewEventMessage(t *testing.T) {
	msg, err := NewEventMessage("b1", EventMeta{Type: "booking.cancelled", Source: "bookings-service"}, map[string]int{"n": 1})
	require.NoError(t, err)

	assert.Equal(t, "b1", msg.Key)
	assert.NotEmpty(t, msg.Header(HeaderEventID))
	assert.NotEmpty(t, msg.Header(HeaderTimestamp))
	assert.Equal(t, "bookings-service", msg.Header(HeaderSource))
	_, hasCorrelation := msg.Headers[HeaderCorrelationID]
	assert.False(t, hasCorrelation, "empty metadata must not become a header")

	_, err = NewEventMessage("k", EventMeta{}, make(chan int))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestClassifyError_BrokerErrors(t *testing.T) {
	p := newProducer(&fakeWriter{err: kafka.MessageSizeTooLarge}, "bookings.events")
	err := p.Publish(context.Background(), buildMessage(t, "b1"))

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "bookings.events", pubErr.Topic)
	assert.Equal(t, ErrorTypePermanent, ClassifyError(err))

	assert.Equal(t, ErrorTypeTransient, ClassifyError(kafka.LeaderNotAvailable))
	assert.Equal(t, ErrorTypeUnknown, ClassifyError(nil))
}
