package clientdi

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/config"
	"github.com/scrimmage/discord-tracker-service/infra/discord"
	"github.com/scrimmage/discord-tracker-service/infra/ledger"
	"github.com/scrimmage/discord-tracker-service/internal/service"
)

var Module = fx.Module(
	"external_clients",

	// [CONSTRUCTOR] Provides the resilient platform REST client under every
	// port it serves.
	fx.Provide(
		fx.Annotate(
			discord.NewClient,
			fx.As(new(service.Fetcher)),
			fx.As(new(service.InteractionResponder)),
			fx.As(new(service.CommandStore)),
		),
	),

	// [CONSTRUCTOR] Provides the rewards ledger client.
	fx.Provide(
		fx.Annotate(
			ledger.NewClient,
			fx.As(new(service.Ledger)),
			fx.As(new(service.Registrar)),
		),
	),

	// Only built when the gateway source is selected.
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) *discord.Gateway {
		return discord.NewGateway(cfg.Discord.GatewayURL, cfg.Discord.Token, discord.DefaultIntents, logger)
	}),
)
