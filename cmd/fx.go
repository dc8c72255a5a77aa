package cmd

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/config"
	clientdi "github.com/scrimmage/discord-tracker-service/infra/client/di"
	grpcsrv "github.com/scrimmage/discord-tracker-service/infra/server/grpc"
	httpsrv "github.com/scrimmage/discord-tracker-service/infra/server/http"
	discordadapter "github.com/scrimmage/discord-tracker-service/internal/adapter/discord"
	amqpsource "github.com/scrimmage/discord-tracker-service/internal/handler/amqp"
	gatewaysource "github.com/scrimmage/discord-tracker-service/internal/handler/gateway"
	"github.com/scrimmage/discord-tracker-service/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
		),
		fx.Invoke(func(cfg *config.Config, logger *slog.Logger) { cfg.WatchChanges(logger) }),
		clientdi.Module,
		discordadapter.Module,
		service.Module,
		grpcsrv.Module,
		httpsrv.Module,
		// [SOURCE] Registered last so its stop hook runs before the pipeline drains.
		sourceModule(cfg),
	)
}

func sourceModule(cfg *config.Config) fx.Option {
	if cfg.Source.Kind == config.SourceAMQP {
		return amqpsource.Module
	}
	return gatewaysource.Module
}
