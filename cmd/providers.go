package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/config"
)

// ProvideLogger builds the process logger and installs it as the slog default.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "otel":
		handler = otelslog.NewHandler(ServiceName)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler).With(
		"service", ServiceName,
		"version", version,
	)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

// ProvideTracerProvider registers the SDK provider globally and flushes it on
// shutdown.
func ProvideTracerProvider(lc fx.Lifecycle) trace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.namespace", ServiceNamespace),
		attribute.String("service.version", version),
		attribute.String("vcs.commit", commit),
	)
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp
}
