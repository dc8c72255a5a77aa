package httpsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrimmage/discord-tracker-service/config"
	"github.com/scrimmage/discord-tracker-service/internal/service"
)

// StatsSource reports outstanding pipeline work.
type StatsSource interface {
	Stats() service.PipelineStats
}

// Server is the operational HTTP surface: liveness, metrics and pipeline stats.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewRouter(stats StatsSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/debug/pipeline", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.Stats())
	})
	return r
}

func New(cfg *config.Config, stats StatsSource, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Hostname, fmt.Sprint(cfg.Server.Port)),
			Handler:           NewRouter(stats),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("component", "http_server"),
	}
}

// Start binds the socket synchronously so a port clash fails startup.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.srv.Addr, err)
	}
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVE_FAILED", "err", err)
		}
	}()
	s.logger.Info("HTTP_SERVER_STARTED", "addr", lis.Addr().String())
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
