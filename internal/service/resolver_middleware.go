package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

// ResolverMiddleware implements [DECORATOR_PATTERN] to add timing and
// outcome logging to entity resolution without touching the resolver.
type ResolverMiddleware struct {
	Next   Resolver
	Logger *slog.Logger
}

// NewResolverMiddleware creates a logging decorator for a Resolver.
func NewResolverMiddleware(next Resolver, logger *slog.Logger) Resolver {
	return &ResolverMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *ResolverMiddleware) ResolveMessage(ctx context.Context, e model.Entity[model.Message]) (*model.Message, bool) {
	start := time.Now()
	v, ok := m.Next.ResolveMessage(ctx, e)
	m.observe("message", e.IsReference(), ok, start)
	return v, ok
}

func (m *ResolverMiddleware) ResolveUser(ctx context.Context, e model.Entity[model.User]) (*model.User, bool) {
	start := time.Now()
	v, ok := m.Next.ResolveUser(ctx, e)
	m.observe("user", e.IsReference(), ok, start)
	return v, ok
}

func (m *ResolverMiddleware) ResolveMember(ctx context.Context, e model.Entity[model.Member]) (*model.Member, bool) {
	start := time.Now()
	v, ok := m.Next.ResolveMember(ctx, e)
	m.observe("member", e.IsReference(), ok, start)
	return v, ok
}

// observe only reports lookups that went to the network.
func (m *ResolverMiddleware) observe(kind string, fetched, found bool, start time.Time) {
	if !fetched {
		return
	}
	outcome := "found"
	if !found {
		outcome = "absent"
	}
	resolutionsTotal.WithLabelValues(kind, outcome).Inc()

	m.Logger.Debug("ENTITY_RESOLVED",
		"kind", kind,
		"found", found,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
