package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"roombook/pkg/kafka"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	messages []kafka.Message
	err      error
}

func (f *fakeProducer) Publish(_ context.Context, msg kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := &fakeProducer{}
	p := &kafkaPublisher{producer: producer, log: logger.Discard()}

	booking := &model.Booking{
		ID:        "b-1",
		RoomID:    "room-1",
		OwnerID:   "user-1",
		StartTime: time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2030, 1, 1, 11, 0, 0, 0, time.UTC),
		Status:    model.BookingStatusActive,
	}

	ctx := WithActorID(WithCorrelationID(context.Background(), "req-42"), "user-1")
	require.NoError(t, p.Publish(ctx, TypeCreated, booking))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "b-1", msg.Key)
	assert.Equal(t, TypeCreated, msg.Header(kafka.HeaderEventType))
	assert.Equal(t, "req-42", msg.Header(kafka.HeaderCorrelationID))

	var event BookingEvent
	require.NoError(t, msg.DecodeValue(&event))
	assert.Equal(t, TypeCreated, event.Type)
	assert.Equal(t, "user-1", event.ActorID)
	assert.Equal(t, "room-1", event.Booking.RoomID)
}

func TestKafkaPublisher_PropagatesError(t *testing.T) {
	brokerErr := errors.New("broker down")
	p := &kafkaPublisher{producer: &fakeProducer{err: brokerErr}, log: logger.Discard()}

	err := p.Publish(context.Background(), TypeCancelled, &model.Booking{ID: "b-1"})
	assert.ErrorIs(t, err, brokerErr)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NewNoopPublisher().Publish(context.Background(), TypeUpdated, &model.Booking{}))
}
