package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Key       string // partition key, the booking id for lifecycle events
	Value     []byte
	Headers   map[string]string
	Topic     string
	Timestamp time.Time
}

const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderCorrelationID = "correlation-id"
	HeaderSchemaVersion = "schema-version"
	HeaderSource        = "source"
	HeaderTimestamp     = "timestamp"
	HeaderOriginalTopic = "original-topic"
	HeaderDLQError      = "dlq-error"
	HeaderDLQTimestamp  = "dlq-timestamp"
)

// EventMeta becomes the headers of an event message. Empty fields are left
// out; ID and OccurredAt are generated when zero.
type EventMeta struct {
	ID            string
	Type          string
	CorrelationID string
	SchemaVersion string
	Source        string
	OccurredAt    time.Time
}

// NewEventMessage JSON-encodes payload under key and stamps the event
// headers. Consumers use event-id to drop redeliveries.
func NewEventMessage(key string, meta EventMeta, payload any) (Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.OccurredAt.IsZero() {
		meta.OccurredAt = time.Now().UTC()
	}

	headers := map[string]string{
		HeaderEventID:   meta.ID,
		HeaderTimestamp: meta.OccurredAt.Format(time.RFC3339Nano),
	}
	for name, v := range map[string]string{
		HeaderEventType:     meta.Type,
		HeaderCorrelationID: meta.CorrelationID,
		HeaderSchemaVersion: meta.SchemaVersion,
		HeaderSource:        meta.Source,
	} {
		if v != "" {
			headers[name] = v
		}
	}

	return Message{
		Key:       key,
		Value:     value,
		Headers:   headers,
		Timestamp: meta.OccurredAt,
	}, nil
}

func (m *Message) DecodeValue(v any) error {
	return json.Unmarshal(m.Value, v)
}

// Header returns the named header, or "" when absent.
func (m *Message) Header(name string) string {
	return m.Headers[name]
}
