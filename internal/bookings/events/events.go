// Package events publishes booking lifecycle notifications.
package events

import (
	"context"
	"fmt"
	"time"

	"roombook/pkg/kafka"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

const (
	TypeCreated   = "booking.created"
	TypeUpdated   = "booking.updated"
	TypeCancelled = "booking.cancelled"

	schemaVersion = "1"
	source        = "bookings-service"
)

// Publisher is called after a booking change has committed. Failures are
// logged by the caller and never undo the change.
type Publisher interface {
	Publish(ctx context.Context, eventType string, booking *model.Booking) error
}

type BookingEvent struct {
	Type      string         `json:"type"`
	Booking   *model.Booking `json:"booking"`
	ActorID   string         `json:"actor_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer messagePublisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) Publisher {
	return &kafkaPublisher{producer: producer, log: log}
}

func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, booking *model.Booking) error {
	now := time.Now().UTC()
	msg, err := kafka.NewEventMessage(booking.ID, kafka.EventMeta{
		Type:          eventType,
		CorrelationID: CorrelationID(ctx),
		SchemaVersion: schemaVersion,
		Source:        source,
		OccurredAt:    now,
	}, BookingEvent{
		Type:      eventType,
		Booking:   booking,
		ActorID:   ActorID(ctx),
		Timestamp: now,
	})
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		if kafka.ClassifyError(err) == kafka.ErrorTypePermanent {
			p.log.Error("Dropping booking event", "event_type", eventType, "booking_id", booking.ID, "error", err)
		}
		return err
	}
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher is used when no broker is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, *model.Booking) error {
	return nil
}

type ctxKey int

const (
	correlationKey ctxKey = iota
	actorKey
)

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

func WithActorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorKey, id)
}

func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorKey).(string)
	return id
}
