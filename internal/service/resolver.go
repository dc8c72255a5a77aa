package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

// Fetcher completes partial platform objects with one remote call each.
type Fetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (*model.Message, error)
	FetchUser(ctx context.Context, userID string) (*model.User, error)
	FetchMember(ctx context.Context, guildID, userID string) (*model.Member, error)
}

// Resolver turns possibly-partial entities into populated ones.
// A false result means "skip this event"; resolvers never return errors.
type Resolver interface {
	ResolveMessage(ctx context.Context, e model.Entity[model.Message]) (*model.Message, bool)
	ResolveUser(ctx context.Context, e model.Entity[model.User]) (*model.User, bool)
	ResolveMember(ctx context.Context, e model.Entity[model.Member]) (*model.Member, bool)
}

type EntityResolver struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func NewEntityResolver(fetcher Fetcher, logger *slog.Logger) *EntityResolver {
	return &EntityResolver{
		fetcher: fetcher,
		logger:  logger,
	}
}

func (r *EntityResolver) ResolveMessage(ctx context.Context, e model.Entity[model.Message]) (*model.Message, bool) {
	return resolve(ctx, r.logger, "message", e, func(ctx context.Context, ref model.Ref) (*model.Message, error) {
		return r.fetcher.FetchMessage(ctx, ref.ChannelID, ref.ID)
	})
}

func (r *EntityResolver) ResolveUser(ctx context.Context, e model.Entity[model.User]) (*model.User, bool) {
	return resolve(ctx, r.logger, "user", e, func(ctx context.Context, ref model.Ref) (*model.User, error) {
		return r.fetcher.FetchUser(ctx, ref.ID)
	})
}

func (r *EntityResolver) ResolveMember(ctx context.Context, e model.Entity[model.Member]) (*model.Member, bool) {
	return resolve(ctx, r.logger, "member", e, func(ctx context.Context, ref model.Ref) (*model.Member, error) {
		return r.fetcher.FetchMember(ctx, ref.GuildID, ref.ID)
	})
}

// resolve implements the two-state contract shared by every entity kind.
func resolve[T any](
	ctx context.Context,
	logger *slog.Logger,
	kind string,
	e model.Entity[T],
	fetch func(context.Context, model.Ref) (*T, error),
) (*T, bool) {
	// [HOT_PATH] Complete entities are returned untouched, no I/O.
	if v, ok := e.Value(); ok {
		return v, true
	}

	// [IDENTITY_GUARD] Nothing to fetch: the event arrived malformed.
	if !e.IsReference() {
		logger.Warn("ENTITY_MISSING", "kind", kind)
		return nil, false
	}

	// [SINGLE_FETCH] Exactly one attempt, no retries.
	ref := e.Ref()
	v, err := fetch(ctx, ref)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, model.ErrNotFound) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "ENTITY_RESOLUTION_FAILED",
			"kind", kind,
			"id", ref.ID,
			"guild_id", ref.GuildID,
			"channel_id", ref.ChannelID,
			"err", err,
		)
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}
