package amqp

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic, handling panic recovery and decoding.
func Bind[T any](logger *slog.Logger, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = nil // ACK: a panicking message would panic again.
			}
		}()

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		return fn(msg.Context(), payload)
	}
}
