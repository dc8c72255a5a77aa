package amqp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/config"
	adapter "github.com/scrimmage/discord-tracker-service/internal/adapter/discord"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		func(d *adapter.Decoder) Decoder { return d },
		NewSubscriber,
		NewDispatchHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, router *message.Router, sub message.Subscriber, h *DispatchHandler, logger *slog.Logger) {
		h.RegisterHandlers(router, sub, cfg.AMQP.RoutingKey)

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("AMQP_ROUTER_STOPPED", "err", err)
					}
				}()
				select {
				case <-router.Running():
					return nil
				case <-ctx.Done():
					return fmt.Errorf("amqp router start: %w", ctx.Err())
				}
			},
			// [STOP_FIRST] Closing the router stops consumption before the
			// pipeline drains.
			OnStop: func(context.Context) error {
				return router.Close()
			},
		})
	}),
)
