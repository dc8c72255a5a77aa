package gateway

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/infra/discord"
	adapter "github.com/scrimmage/discord-tracker-service/internal/adapter/discord"
)

var Module = fx.Module("gateway-source",
	fx.Provide(
		func(d *adapter.Decoder) Decoder { return d },
		NewSource,
	),
	fx.Invoke(func(lc fx.Lifecycle, gw *discord.Gateway, src *Source, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				gw.Start(src.OnDispatch)
				logger.Info("GATEWAY_SOURCE_STARTED")
				return nil
			},
			// [STOP_FIRST] Registered after the service hooks, so fx stops the
			// source before the pipeline drains.
			OnStop: func(ctx context.Context) error {
				return gw.Stop(ctx)
			},
		})
	}),
)
