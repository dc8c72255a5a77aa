package grpcsrv

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("grpc-server",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Serve() },
			OnStop:  s.Stop,
		})
	}),
)
