package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
	"github.com/scrimmage/discord-tracker-service/internal/domain/normalizer"
	"github.com/scrimmage/discord-tracker-service/internal/domain/scope"
)

const tracerName = "github.com/scrimmage/discord-tracker-service/internal/service"

// Reasons an event produced nothing. Every one of them is a normal outcome.
const (
	skipMalformed  = "malformed"
	skipOutOfScope = "out_of_scope"
	skipUnresolved = "unresolved"
	skipNoChange   = "no_change"
	skipCommand    = "command"
	skipPanic      = "panic"
)

// PipelineStats is a point-in-time view of outstanding work.
type PipelineStats struct {
	ActiveIngests      int `json:"active_ingests"`
	InFlightDispatches int `json:"in_flight_dispatches"`
}

// Sink accepts raw events for asynchronous processing.
type Sink interface {
	Accept(ctx context.Context, ev event.Raw)
}

// Ingestor is the ingestion router: scope, resolve, normalize, dispatch.
//
// [STATELESS] Events are handled independently. The only shared state is the
// immutable scope and the in-flight bookkeeping of tasks and dispatches.
type Ingestor struct {
	resolver   Resolver
	scope      scope.Config
	normalizer *normalizer.Normalizer
	dispatcher Dispatcher
	commands   InteractionHandler
	logger     *slog.Logger
	tracer     trace.Tracer
	tasks      *taskGroup[event.Kind]
}

func NewIngestor(
	resolver Resolver,
	scope scope.Config,
	normalizer *normalizer.Normalizer,
	dispatcher Dispatcher,
	commands InteractionHandler,
	logger *slog.Logger,
	tp trace.TracerProvider,
) *Ingestor {
	return &Ingestor{
		resolver:   resolver,
		scope:      scope,
		normalizer: normalizer,
		dispatcher: dispatcher,
		commands:   commands,
		logger:     logger,
		tracer:     tp.Tracer(tracerName),
		tasks:      newTaskGroup[event.Kind](),
	}
}

// Accept schedules ev on its own goroutine and returns immediately.
// The task outlives cancellation of ctx; in-flight work is not cancellable.
func (i *Ingestor) Accept(ctx context.Context, ev event.Raw) {
	if ev == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	id := i.tasks.add(ev.Kind())
	go func() {
		defer i.tasks.done(id)
		i.Process(ctx, ev)
	}()
}

// Process runs one event through the pipeline synchronously. Failures are
// logged and never propagate to the caller.
func (i *Ingestor) Process(ctx context.Context, ev event.Raw) {
	if ev == nil {
		return
	}
	kind := ev.Kind()

	ctx, span := i.tracer.Start(ctx, "ingest."+kind.String())
	defer span.End()

	// [PANIC_RECOVERY] One bad event must not take the consumer down.
	defer func() {
		if r := recover(); r != nil {
			eventsSkippedTotal.WithLabelValues(kind.String(), skipPanic).Inc()
			span.SetStatus(codes.Error, fmt.Sprint(r))
			i.logger.Error("INGEST_PANIC_RECOVERED",
				"err", r,
				"kind", kind.String(),
				"stack", string(debug.Stack()),
			)
		}
	}()

	eventsReceivedTotal.WithLabelValues(kind.String()).Inc()

	out, reason := i.route(ctx, ev)
	if reason != "" {
		eventsSkippedTotal.WithLabelValues(kind.String(), reason).Inc()
		span.SetAttributes(attribute.String("ingest.skip_reason", reason))
		i.logger.Debug("EVENT_SKIPPED", "kind", kind.String(), "reason", reason)
		return
	}

	// [FAN_OUT_DISPATCH] Order within the fan-out is irrelevant.
	for _, t := range out {
		i.dispatcher.Submit(t)
	}
	span.SetAttributes(attribute.Int("ingest.trackable_count", len(out)))
}

// Drain waits for accepted events and then for their ledger writes.
func (i *Ingestor) Drain(ctx context.Context) error {
	if err := i.tasks.wait(ctx); err != nil {
		return fmt.Errorf("drain ingest tasks (%d outstanding): %w", i.tasks.size(), err)
	}
	return i.dispatcher.Drain(ctx)
}

func (i *Ingestor) Stats() PipelineStats {
	return PipelineStats{
		ActiveIngests:      i.tasks.size(),
		InFlightDispatches: i.dispatcher.InFlight(),
	}
}

// route matches the closed set of raw events. The scope check runs before any
// resolution so out-of-scope events never cost a fetch.
func (i *Ingestor) route(ctx context.Context, ev event.Raw) ([]event.Trackable, string) {
	switch e := ev.(type) {
	case *event.MessageCreate:
		return i.onMessageCreate(ctx, e)
	case *event.ReactionAdd:
		return i.onReactionAdd(ctx, e)
	case *event.MemberAdd:
		return i.onMemberAdd(ctx, e)
	case *event.MemberUpdate:
		return i.onMemberUpdate(ctx, e)
	case *event.MemberRemove:
		return i.onMemberRemove(ctx, e)
	case *event.ThreadCreate:
		return i.onThreadCreate(e)
	case *event.VoiceStateUpdate:
		return i.onVoiceStateUpdate(e)
	case *event.ScheduledEventUserAdd:
		return i.onScheduledEventUser(ctx, e.Guild, e.User, func(u *model.User) event.Trackable {
			return i.normalizer.ScheduledEventUserAdd(e.Guild, e.ScheduledEventID, u, e.ReceivedAt)
		})
	case *event.ScheduledEventUserRemove:
		return i.onScheduledEventUser(ctx, e.Guild, e.User, func(u *model.User) event.Trackable {
			return i.normalizer.ScheduledEventUserRemove(e.Guild, e.ScheduledEventID, u, e.ReceivedAt)
		})
	case *event.InteractionCreate:
		if err := i.commands.HandleInteraction(ctx, e.Interaction); err != nil {
			i.logger.Error("INTERACTION_FAILED", "err", err)
		}
		return nil, skipCommand
	default:
		i.logger.Warn("UNKNOWN_EVENT", "kind", ev.Kind().String())
		return nil, skipMalformed
	}
}

func (i *Ingestor) onMessageCreate(ctx context.Context, e *event.MessageCreate) ([]event.Trackable, string) {
	// [DM_GUARD] Direct messages carry no guild and are never tracked.
	if e.GuildID == "" {
		return nil, skipMalformed
	}
	if !i.scope.InScope(e.GuildID, e.ChannelID) {
		return nil, skipOutOfScope
	}

	msg, ok := i.resolver.ResolveMessage(ctx, e.Message)
	if !ok || msg.AuthorID() == "" {
		return nil, skipUnresolved
	}
	msg = withGuild(msg, e.GuildID)

	return []event.Trackable{i.normalizer.MessageSent(msg)}, ""
}

func (i *Ingestor) onReactionAdd(ctx context.Context, e *event.ReactionAdd) ([]event.Trackable, string) {
	if e.GuildID == "" {
		return nil, skipMalformed
	}
	if !i.scope.InScope(e.GuildID, e.ChannelID) {
		return nil, skipOutOfScope
	}

	// [CONCURRENT_RESOLUTION] Message and reactor are independent lookups.
	var (
		msg           *model.Message
		user          *model.User
		msgOK, userOK bool
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msg, msgOK = i.resolver.ResolveMessage(gCtx, e.Message)
		return nil
	})
	g.Go(func() error {
		user, userOK = i.resolver.ResolveUser(gCtx, e.User)
		return nil
	})
	_ = g.Wait()

	if !msgOK || !userOK || msg.AuthorID() == "" {
		return nil, skipUnresolved
	}
	msg = withGuild(msg, e.GuildID)

	return i.normalizer.ReactionAdd(msg, user, e.Emoji), ""
}

func (i *Ingestor) onMemberAdd(ctx context.Context, e *event.MemberAdd) ([]event.Trackable, string) {
	if reason := i.guildScope(e.Guild); reason != "" {
		return nil, reason
	}
	m, ok := i.resolver.ResolveMember(ctx, e.Member)
	if !ok || m.UserID() == "" {
		return nil, skipUnresolved
	}
	return []event.Trackable{i.normalizer.MemberAdd(e.Guild, m)}, ""
}

func (i *Ingestor) onMemberUpdate(ctx context.Context, e *event.MemberUpdate) ([]event.Trackable, string) {
	if reason := i.guildScope(e.Guild); reason != "" {
		return nil, reason
	}

	var (
		old, cur     *model.Member
		oldOK, curOK bool
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		old, oldOK = i.resolver.ResolveMember(gCtx, e.Old)
		return nil
	})
	g.Go(func() error {
		cur, curOK = i.resolver.ResolveMember(gCtx, e.New)
		return nil
	})
	_ = g.Wait()

	if !oldOK || !curOK || cur.UserID() == "" {
		return nil, skipUnresolved
	}

	out := i.normalizer.MemberUpdate(e.Guild, old, cur, e.ReceivedAt)
	if len(out) == 0 {
		return nil, skipNoChange
	}
	return out, ""
}

func (i *Ingestor) onMemberRemove(ctx context.Context, e *event.MemberRemove) ([]event.Trackable, string) {
	if reason := i.guildScope(e.Guild); reason != "" {
		return nil, reason
	}
	m, ok := i.resolver.ResolveMember(ctx, e.Member)
	if !ok || m.UserID() == "" {
		return nil, skipUnresolved
	}
	return []event.Trackable{i.normalizer.MemberRemove(e.Guild, m, e.ReceivedAt)}, ""
}

func (i *Ingestor) onThreadCreate(e *event.ThreadCreate) ([]event.Trackable, string) {
	if reason := i.guildScope(e.Guild); reason != "" {
		return nil, reason
	}
	if e.Thread == nil || e.Thread.OwnerID == "" {
		return nil, skipMalformed
	}
	return []event.Trackable{i.normalizer.ThreadCreate(e.Guild, e.Thread)}, ""
}

func (i *Ingestor) onVoiceStateUpdate(e *event.VoiceStateUpdate) ([]event.Trackable, string) {
	if reason := i.guildScope(e.Guild); reason != "" {
		return nil, reason
	}
	if e.New == nil || e.New.UserID == "" {
		return nil, skipMalformed
	}
	old := e.Old
	if old == nil {
		old = &model.VoiceState{GuildID: e.New.GuildID, UserID: e.New.UserID}
	}

	out := i.normalizer.VoiceStateUpdate(e.Guild, old, e.New, e.ChannelMembers, e.ReceivedAt)
	if len(out) == 0 {
		return nil, skipNoChange
	}
	return out, ""
}

func (i *Ingestor) onScheduledEventUser(
	ctx context.Context,
	guild model.Guild,
	user model.Entity[model.User],
	normalize func(*model.User) event.Trackable,
) ([]event.Trackable, string) {
	if reason := i.guildScope(guild); reason != "" {
		return nil, reason
	}
	u, ok := i.resolver.ResolveUser(ctx, user)
	if !ok || u.ID == "" {
		return nil, skipUnresolved
	}
	return []event.Trackable{normalize(u)}, ""
}

// guildScope applies the scope filter to guild-level events, which have no
// channel of their own and are scoped by the guild's system channel.
func (i *Ingestor) guildScope(g model.Guild) string {
	if g.ID == "" {
		return skipMalformed
	}
	if !i.scope.InScope(g.ID, g.SystemChannelID) {
		return skipOutOfScope
	}
	return ""
}

// withGuild fills the guild id that REST-fetched messages do not carry.
func withGuild(msg *model.Message, guildID string) *model.Message {
	if msg.GuildID != "" {
		return msg
	}
	cp := *msg
	cp.GuildID = guildID
	return &cp
}
