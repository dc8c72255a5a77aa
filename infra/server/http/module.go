package httpsrv

import (
	"context"

	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/internal/service"
)

var Module = fx.Module("http-server",
	fx.Provide(
		func(i *service.Ingestor) StatsSource { return i },
		New,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
