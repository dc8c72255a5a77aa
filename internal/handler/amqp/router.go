package amqp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"

	"github.com/scrimmage/discord-tracker-service/config"
	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/service"
	"github.com/scrimmage/discord-tracker-service/internal/service/dto"
)

const (
	handlerName = "ON_GATEWAY_DISPATCH"
	opDispatch  = 0
)

// Decoder maps a dispatch onto a raw event; a nil event means "nothing to do".
type Decoder interface {
	Decode(name string, data json.RawMessage) (event.Raw, error)
}

// DispatchHandler consumes gateway dispatches relayed over AMQP by a
// separate gateway process.
type DispatchHandler struct {
	decoder Decoder
	sink    service.Sink
	logger  *slog.Logger
}

func NewDispatchHandler(decoder Decoder, sink service.Sink, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{decoder: decoder, sink: sink, logger: logger}
}

// [ON_GATEWAY_DISPATCH]
// Every outcome ACKs: accepted events are processed asynchronously and
// undecodable ones would fail again on redelivery.
func (h *DispatchHandler) OnDispatchV1(ctx context.Context, d *dto.DispatchV1) error {
	if d.Op != opDispatch || d.T == "" {
		h.logger.Warn("ROUTING_FAILED: dispatch_name_missing", "op", d.Op)
		return nil
	}

	ev, err := h.decoder.Decode(d.T, d.D)
	if err != nil {
		h.logger.Warn("DISPATCH_DECODE_FAILED", "err", err, "dispatch", d.T, "seq", d.S)
		return nil
	}
	if ev == nil {
		return nil
	}

	h.sink.Accept(ctx, ev)
	return nil
}

// NewSubscriberConfig binds one durable queue, shared by all instances, to
// the relay's topic exchange.
func NewSubscriberConfig(cfg *config.Config) wmamqp.Config {
	c := wmamqp.NewDurablePubSubConfig(cfg.AMQP.URI, wmamqp.GenerateQueueNameConstant(cfg.AMQP.Queue))
	c.Exchange.GenerateName = func(string) string { return cfg.AMQP.Exchange }
	c.Exchange.Type = "topic"
	c.QueueBind.GenerateRoutingKey = func(string) string { return cfg.AMQP.RoutingKey }
	c.Consume.Qos.PrefetchCount = cfg.AMQP.Prefetch
	return c
}

func NewSubscriber(cfg *config.Config, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmamqp.NewSubscriber(NewSubscriberConfig(cfg), logger)
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
}

// [REGISTRATION_PIPELINE]
func (h *DispatchHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, topic string) {
	router.AddConsumerHandler(handlerName, topic, sub, Bind(h.logger, h.OnDispatchV1)).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(h.logger),
		middleware.Timeout(30*time.Second),
	)

	h.logger.Info("AMQP_PIPELINE_READY", "topic", topic)
}
