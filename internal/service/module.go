package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/config"
	"github.com/scrimmage/discord-tracker-service/internal/domain/normalizer"
	"github.com/scrimmage/discord-tracker-service/internal/domain/scope"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain configuration
		func(cfg *config.Config) scope.Config {
			return scope.NewConfig(cfg.Discord.AllowedGuildIDs, cfg.Discord.AllowedChannelIDs)
		},
		func(cfg *config.Config) *normalizer.Normalizer {
			return normalizer.New(normalizer.Options{
				Prefix:               cfg.Rewards.DataTypePrefix,
				ReportAllRoleChanges: cfg.Rewards.ReportAllRoleChanges,
			})
		},

		// Domain services
		fx.Annotate(
			NewEntityResolver,
			fx.As(new(Resolver)),
		),
		fx.Annotate(
			func(ledger Ledger, logger *slog.Logger, cfg *config.Config) *DispatchQueue {
				return NewDispatchQueue(ledger, logger, DispatchOptions{
					MaxConcurrency: cfg.Dispatch.MaxConcurrency,
					WriteTimeout:   cfg.Dispatch.WriteTimeout,
				})
			},
			fx.As(new(Dispatcher)),
		),
		fx.Annotate(
			func(cfg *config.Config, r Registrar, resp InteractionResponder, logger *slog.Logger) *RegistrationHandler {
				return NewRegistrationHandler(cfg.Discord.AllowRegistration, r, resp, logger)
			},
			fx.As(new(InteractionHandler)),
		),
		func(store CommandStore, logger *slog.Logger) *CommandSyncer {
			return NewCommandSyncer(store, DefaultCommands(), logger)
		},
		fx.Annotate(
			NewIngestor,
			fx.As(fx.Self()),
			fx.As(new(Sink)),
		),
	),

	// [DECORATION_LAYER] Intercept Resolver to add cross-cutting concerns
	fx.Decorate(NewResolverMiddleware),

	fx.Invoke(registerLifecycle),
)

// registerLifecycle syncs slash commands on start and drains outstanding work
// on stop. Source modules register their hooks later, so fx stops them first
// and no new events arrive while draining.
func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, syncer *CommandSyncer, ingestor *Ingestor, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Discord.SyncCommands {
				return nil
			}
			// A failed sync leaves the previous command set in place.
			if err := syncer.Sync(ctx); err != nil {
				logger.Error("COMMAND_SYNC_FAILED", "err", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cfg.Dispatch.DrainTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Dispatch.DrainTimeout)
				defer cancel()
			}
			stats := ingestor.Stats()
			logger.Info("PIPELINE_DRAINING",
				"active_ingests", stats.ActiveIngests,
				"in_flight_dispatches", stats.InFlightDispatches,
			)
			if err := ingestor.Drain(ctx); err != nil {
				logger.Error("PIPELINE_DRAIN_INCOMPLETE", "err", err)
				return err
			}
			logger.Info("PIPELINE_DRAINED")
			return nil
		},
	})
}
