package grpcsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/scrimmage/discord-tracker-service/config"
	"github.com/scrimmage/discord-tracker-service/infra/server/grpc/interceptors"
)

// ServiceName is the health service name that tracks pipeline readiness.
const ServiceName = "discord.tracker.v1.Pipeline"

// Server exposes the standard gRPC health protocol for orchestrators.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	addr   string
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger, tp trace.TracerProvider) *Server {
	logger = logger.With("component", "grpc_server")
	logOpts := []logging.Option{logging.WithLogOnEvents(logging.FinishCall)}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithTracerProvider(tp))),
		grpc.ChainUnaryInterceptor(
			interceptors.NewUnaryRequestIDInterceptor(),
			logging.UnaryServerInterceptor(interceptors.SlogLogger(logger), logOpts...),
			recovery.UnaryServerInterceptor(interceptors.RecoveryHandler(logger)),
		),
		grpc.ChainStreamInterceptor(
			interceptors.NewStreamRequestIDInterceptor(),
			logging.StreamServerInterceptor(interceptors.SlogLogger(logger), logOpts...),
			recovery.StreamServerInterceptor(interceptors.RecoveryHandler(logger)),
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{
		srv:    srv,
		health: hs,
		addr:   net.JoinHostPort(cfg.Server.Hostname, fmt.Sprint(cfg.Server.GRPCPort)),
		logger: logger,
	}
}

// Serve starts listening and returns once the socket is bound.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	return s.serve(lis)
}

func (s *Server) serve(lis net.Listener) error {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	go func() {
		if err := s.srv.Serve(lis); err != nil {
			s.logger.Error("GRPC_SERVE_FAILED", "err", err)
		}
	}()
	s.logger.Info("GRPC_SERVER_STARTED", "addr", lis.Addr().String())
	return nil
}

// Stop flips health to NOT_SERVING and drains in-flight calls until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	}
}
