package kafkamiddleware

import (
	"context"
	"time"

	"roombook/pkg/kafka"
	"roombook/pkg/logger"
)

// slowPublish is the latency above which a successful publish is logged at
// warn level. Booking writes wait on the publish, so this shows up in
// request latency.
const slowPublish = 500 * time.Millisecond

// LoggingProducerMiddleware records each booking event publish. Failures
// carry the permanent/transient classification so operators can tell a
// poisoned message from a broker outage.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		elapsed := time.Since(start)

		attrs := []any{
			"topic", msg.Topic,
			"booking_id", msg.Key,
			"event_id", msg.Header(kafka.HeaderEventID),
			"event_type", msg.Header(kafka.HeaderEventType),
			"correlation_id", msg.Header(kafka.HeaderCorrelationID),
			"duration", elapsed,
		}

		switch {
		case err != nil:
			log.Error("Booking event publish failed",
				append(attrs, "error_type", kafka.ClassifyError(err), "error", err)...)
		case elapsed > slowPublish:
			log.Warn("Slow booking event publish", attrs...)
		default:
			log.Debug("Booking event published", attrs...)
		}
		return err
	}
}
