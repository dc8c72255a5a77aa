package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type traceIDKey struct{}

// TraceIDFromContext returns the trace id attached by TraceIDMiddleware.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// [TRACE_ID_MIDDLEWARE]
// Ensures TraceID persistence through the call chain.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get("trace_id")
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set("trace_id", traceID)
		}

		msg.SetContext(context.WithValue(msg.Context(), traceIDKey{}, traceID))
		return h(msg)
	}
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and TraceID.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("MESSAGE_HANDLED",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get("trace_id"),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}
