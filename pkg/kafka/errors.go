package kafka

import (
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

var (
	ErrProducerClosed = errors.New("kafka producer is closed")
	ErrInvalidMessage = errors.New("invalid message")
	ErrEmptyKey       = errors.New("message key cannot be empty")
	ErrEmptyValue     = errors.New("message value cannot be empty")
)

type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTransient covers broker or network failures worth retrying.
	ErrorTypeTransient
	ErrorTypePermanent
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// PublishError records which topic rejected a write.
type PublishError struct {
	Type  ErrorType
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func newPublishError(topic string, err error) *PublishError {
	return &PublishError{Type: classifyCause(err), Topic: topic, Err: err}
}

// ClassifyError reports whether err is worth retrying. Validation failures
// on the message itself are permanent.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return pubErr.Type
	}
	return classifyCause(err)
}

func classifyCause(err error) ErrorType {
	switch {
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrEmptyValue),
		errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrProducerClosed):
		return ErrorTypePermanent
	}

	// Broker protocol errors say for themselves whether a retry can help.
	var brokerErr kafka.Error
	if errors.As(err, &brokerErr) && !brokerErr.Temporary() {
		return ErrorTypePermanent
	}
	return ErrorTypeTransient
}
