package kafkamiddleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"roombook/pkg/kafka"
	"roombook/pkg/logger"
)

func TestLoggingProducerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	mw := LoggingProducerMiddleware(logger.New(logger.Config{Level: logger.DEBUG, Output: &buf, Format: logger.TEXT}))

	msg, err := kafka.NewEventMessage("b1", kafka.EventMeta{Type: "booking.created"}, map[string]string{"id": "b1"})
	if err != nil {
		t.Fatal(err)
	}
	msg.Topic = "bookings.events"

	ok := func(context.Context, kafka.Message) error { return nil }
	if err := mw(context.Background(), msg, ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "booking_id=b1") || !strings.Contains(out, "event_type=booking.created") {
		t.Errorf("success log = %s", out)
	}

	buf.Reset()
	brokerErr := errors.New("broker down")
	fail := func(context.Context, kafka.Message) error { return brokerErr }
	if err := mw(context.Background(), msg, fail); !errors.Is(err, brokerErr) {
		t.Fatalf("error not passed through: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "error_type=transient") {
		t.Errorf("failure log = %s", out)
	}
}
