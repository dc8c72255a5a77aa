package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
	"github.com/scrimmage/discord-tracker-service/internal/domain/normalizer"
	"github.com/scrimmage/discord-tracker-service/internal/domain/scope"
)

type ingestFixture struct {
	fetcher    *fakeFetcher
	dispatcher *recordingDispatcher
	commands   *fakeInteractions
	ingestor   *Ingestor
}

func newIngestFixture(sc scope.Config) *ingestFixture {
	f := &ingestFixture{
		fetcher:    newFakeFetcher(),
		dispatcher: &recordingDispatcher{},
		commands:   &fakeInteractions{},
	}
	f.ingestor = NewIngestor(
		NewEntityResolver(f.fetcher, discardLogger()),
		sc,
		normalizer.New(normalizer.Options{}),
		f.dispatcher,
		f.commands,
		discardLogger(),
		noop.NewTracerProvider(),
	)
	return f
}

func (f *ingestFixture) types() []string {
	var out []string
	for _, ev := range f.dispatcher.Submitted() {
		out = append(out, ev.EventType)
	}
	sort.Strings(out)
	return out
}

var (
	at          = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	author      = &model.User{ID: "author"}
	reactor     = &model.User{ID: "reactor"}
	scopedGuild = model.Guild{ID: "g1", SystemChannelID: "sys", MemberCount: 10}
)

func TestIngest_MessageCreate(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))

	f.ingestor.Process(context.Background(), &event.MessageCreate{
		GuildID:   "g1",
		ChannelID: "c1",
		Message:   model.Complete(&model.Message{ID: "m1", ChannelID: "c1", GuildID: "g1", Author: author}),
	})

	got := f.dispatcher.Submitted()
	require.Len(t, got, 1)
	assert.Equal(t, normalizer.MessageSent, got[0].EventType)
	assert.Equal(t, "author", got[0].UserID)
	assert.Equal(t, "m1", got[0].DedupeKey)
	assert.Empty(t, f.fetcher.Calls())
}

func TestIngest_DirectMessageIgnored(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))

	f.ingestor.Process(context.Background(), &event.MessageCreate{
		ChannelID: "dm",
		Message:   model.Complete(&model.Message{ID: "m1", Author: author}),
	})

	assert.Empty(t, f.dispatcher.Submitted())
}

func TestIngest_OutOfScopeSkipsResolution(t *testing.T) {
	f := newIngestFixture(scope.NewConfig([]string{"g1"}, []string{"allowed"}))

	f.ingestor.Process(context.Background(), &event.MessageCreate{
		GuildID:   "g1",
		ChannelID: "other",
		Message:   model.Reference[model.Message](model.Ref{GuildID: "g1", ChannelID: "other", ID: "m1"}),
	})
	f.ingestor.Process(context.Background(), &event.ReactionAdd{
		GuildID:   "g2",
		ChannelID: "allowed",
		Message:   model.Reference[model.Message](model.Ref{ChannelID: "allowed", ID: "m2"}),
		User:      model.Reference[model.User](model.Ref{ID: "reactor"}),
	})

	assert.Empty(t, f.dispatcher.Submitted())
	assert.Empty(t, f.fetcher.Calls())
}

func TestIngest_ReactionResolvesPartials(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	f.fetcher.messages["m1"] = &model.Message{ID: "m1", ChannelID: "c1", Author: author}
	f.fetcher.users["reactor"] = reactor

	f.ingestor.Process(context.Background(), &event.ReactionAdd{
		GuildID:   "g1",
		ChannelID: "c1",
		Message:   model.Reference[model.Message](model.Ref{GuildID: "g1", ChannelID: "c1", ID: "m1"}),
		User:      model.Reference[model.User](model.Ref{ID: "reactor"}),
		Emoji:     model.Emoji{Name: "🔥"},
	})

	got := f.dispatcher.Submitted()
	require.Len(t, got, 2)
	for _, ev := range got {
		assert.Equal(t, "m1::🔥", ev.DedupeKey)
		assert.Equal(t, "g1", ev.Payload["guildId"], "fetched messages inherit the event guild")
	}
	assert.Equal(t, []string{normalizer.MessageReactionAdd, normalizer.MessageReactionReceived}, f.types())
	assert.ElementsMatch(t, []string{"message:c1/m1", "user:reactor"}, f.fetcher.Calls())
}

func TestIngest_ReactionDroppedWhenMessageGone(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	f.fetcher.users["reactor"] = reactor

	f.ingestor.Process(context.Background(), &event.ReactionAdd{
		GuildID:   "g1",
		ChannelID: "c1",
		Message:   model.Reference[model.Message](model.Ref{ChannelID: "c1", ID: "deleted"}),
		User:      model.Reference[model.User](model.Ref{ID: "reactor"}),
		Emoji:     model.Emoji{ID: "e1"},
	})

	assert.Empty(t, f.dispatcher.Submitted(), "no partial fan-out")
}

func TestIngest_FetchFailureYieldsNoEvents(t *testing.T) {
	memberRef := model.Reference[model.Member](model.Ref{GuildID: "g1", ID: "author"})
	userRef := model.Reference[model.User](model.Ref{ID: "author"})
	complete := model.Complete(&model.Member{User: author, Roles: []string{"r1"}})

	tests := []struct {
		name string
		ev   event.Raw
	}{
		{"message create", &event.MessageCreate{
			GuildID:   "g1",
			ChannelID: "c1",
			Message:   model.Reference[model.Message](model.Ref{GuildID: "g1", ChannelID: "c1", ID: "m1"}),
		}},
		{"reaction user", &event.ReactionAdd{
			GuildID:   "g1",
			ChannelID: "c1",
			Message:   model.Complete(&model.Message{ID: "m1", ChannelID: "c1", GuildID: "g1", Author: author}),
			User:      model.Reference[model.User](model.Ref{ID: "reactor"}),
			Emoji:     model.Emoji{ID: "e1"},
		}},
		{"member add", &event.MemberAdd{Guild: scopedGuild, Member: memberRef}},
		{"member update old", &event.MemberUpdate{
			Guild: scopedGuild,
			Old:   memberRef,
			New:   model.Complete(&model.Member{User: author, Roles: []string{"r1", "r2"}}),
		}},
		{"member update new", &event.MemberUpdate{Guild: scopedGuild, Old: complete, New: memberRef}},
		{"member remove", &event.MemberRemove{Guild: scopedGuild, Member: memberRef}},
		{"scheduled event add", &event.ScheduledEventUserAdd{Guild: scopedGuild, ScheduledEventID: "se1", User: userRef}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(scope.NewConfig(nil, nil))
			f.fetcher.err = errBoom

			require.NotPanics(t, func() { f.ingestor.Process(context.Background(), tt.ev) })

			assert.Empty(t, f.dispatcher.Submitted())
			assert.NotEmpty(t, f.fetcher.Calls(), "the reference was looked up")
		})
	}
}

func TestIngest_MemberUpdateRoleAndBoost(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	since := at.Add(-time.Hour)

	f.ingestor.Process(context.Background(), &event.MemberUpdate{
		Guild:      scopedGuild,
		Old:        model.Complete(&model.Member{User: author, Roles: []string{"r1"}}),
		New:        model.Complete(&model.Member{User: author, Roles: []string{"r1", "r2"}, PremiumSince: &since}),
		ReceivedAt: at,
	})

	assert.Equal(t, []string{normalizer.GuildMemberBoostStart, normalizer.GuildMemberRoleAdd}, f.types())
	for _, ev := range f.dispatcher.Submitted() {
		assert.False(t, ev.HasDedupeKey())
	}
}

func TestIngest_MemberUpdateUnknownOldIsFetched(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	f.fetcher.members["author"] = &model.Member{User: author, Roles: []string{"r1", "r2"}}

	f.ingestor.Process(context.Background(), &event.MemberUpdate{
		Guild:      scopedGuild,
		Old:        model.Reference[model.Member](model.Ref{GuildID: "g1", ID: "author"}),
		New:        model.Complete(&model.Member{User: author, Roles: []string{"r1"}}),
		ReceivedAt: at,
	})

	assert.Equal(t, []string{normalizer.GuildMemberRoleRemove}, f.types())
	assert.Equal(t, []string{"member:g1/author"}, f.fetcher.Calls())
}

func TestIngest_MemberUpdateWithoutChangeEmitsNothing(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	m := &model.Member{User: author, Roles: []string{"r1"}}

	f.ingestor.Process(context.Background(), &event.MemberUpdate{
		Guild: scopedGuild,
		Old:   model.Complete(m),
		New:   model.Complete(m),
	})

	assert.Empty(t, f.dispatcher.Submitted())
}

func TestIngest_GuildEventsScopedBySystemChannel(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, []string{"sys"}))
	member := model.Complete(&model.Member{User: author})

	f.ingestor.Process(context.Background(), &event.MemberAdd{Guild: scopedGuild, Member: member})
	f.ingestor.Process(context.Background(), &event.MemberAdd{
		Guild:  model.Guild{ID: "g2", SystemChannelID: "elsewhere"},
		Member: member,
	})
	f.ingestor.Process(context.Background(), &event.MemberRemove{
		Guild:  model.Guild{ID: "g3"},
		Member: member,
	})

	assert.Equal(t, []string{normalizer.GuildMemberAdd}, f.types())
}

func TestIngest_MemberRemove(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))

	f.ingestor.Process(context.Background(), &event.MemberRemove{
		Guild:      scopedGuild,
		Member:     model.Complete(&model.Member{User: author}),
		ReceivedAt: at,
	})

	got := f.dispatcher.Submitted()
	require.Len(t, got, 1)
	assert.Equal(t, normalizer.GuildMemberRemove, got[0].EventType)
	assert.Equal(t, "author", got[0].DedupeKey)
}

func TestIngest_VoiceSwitchEmitsLeaveAndJoin(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))

	f.ingestor.Process(context.Background(), &event.VoiceStateUpdate{
		Guild:          scopedGuild,
		Old:            &model.VoiceState{UserID: "author", ChannelID: "v1"},
		New:            &model.VoiceState{UserID: "author", ChannelID: "v2"},
		ChannelMembers: 3,
		ReceivedAt:     at,
	})

	assert.Equal(t, []string{normalizer.VoiceChannelJoin, normalizer.VoiceChannelLeave}, f.types())
}

func TestIngest_VoiceJoinWithoutPreviousState(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))

	f.ingestor.Process(context.Background(), &event.VoiceStateUpdate{
		Guild: scopedGuild,
		New:   &model.VoiceState{UserID: "author", ChannelID: "v1"},
	})

	assert.Equal(t, []string{normalizer.VoiceChannelJoin}, f.types())
}

func TestIngest_ThreadAndScheduledEvents(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	f.fetcher.users["author"] = author

	f.ingestor.Process(context.Background(), &event.ThreadCreate{
		Guild:  scopedGuild,
		Thread: &model.Thread{ID: "t1", OwnerID: "author", ParentID: "c1"},
	})
	f.ingestor.Process(context.Background(), &event.ThreadCreate{Guild: scopedGuild, Thread: &model.Thread{ID: "t2"}})
	f.ingestor.Process(context.Background(), &event.ScheduledEventUserAdd{
		Guild:            scopedGuild,
		ScheduledEventID: "s1",
		User:             model.Reference[model.User](model.Ref{ID: "author"}),
		ReceivedAt:       at,
	})
	f.ingestor.Process(context.Background(), &event.ScheduledEventUserRemove{
		Guild:            scopedGuild,
		ScheduledEventID: "s1",
		User:             model.Reference[model.User](model.Ref{ID: "missing"}),
		ReceivedAt:       at,
	})

	assert.Equal(t, []string{normalizer.ScheduledEventUserAdd, normalizer.ThreadCreate}, f.types())
}

func TestIngest_InteractionRoutedToCommands(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	f.commands.err = errBoom
	in := &model.Interaction{ID: "i1", Type: model.InteractionTypeApplicationCommand}

	f.ingestor.Process(context.Background(), &event.InteractionCreate{Interaction: in})

	assert.Equal(t, []*model.Interaction{in}, f.commands.handled)
	assert.Empty(t, f.dispatcher.Submitted())
}

// panickyResolver simulates a defect deep in the pipeline.
type panickyResolver struct{ Resolver }

func (panickyResolver) ResolveMessage(context.Context, model.Entity[model.Message]) (*model.Message, bool) {
	panic("resolver defect")
}

func TestIngest_PanicIsContained(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))
	f.ingestor.resolver = panickyResolver{}

	assert.NotPanics(t, func() {
		f.ingestor.Process(context.Background(), &event.MessageCreate{
			GuildID:   "g1",
			ChannelID: "c1",
			Message:   model.Reference[model.Message](model.Ref{ChannelID: "c1", ID: "m1"}),
		})
	})
	assert.Empty(t, f.dispatcher.Submitted())
}

func TestIngest_AcceptAndDrain(t *testing.T) {
	f := newIngestFixture(scope.NewConfig(nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	for _, id := range []string{"m1", "m2", "m3"} {
		f.ingestor.Accept(ctx, &event.MessageCreate{
			GuildID:   "g1",
			ChannelID: "c1",
			Message:   model.Complete(&model.Message{ID: id, Author: author}),
		})
	}
	cancel()

	drainCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	require.NoError(t, f.ingestor.Drain(drainCtx))

	assert.Len(t, f.dispatcher.Submitted(), 3, "accepted work survives cancellation of the source context")
	assert.Equal(t, PipelineStats{}, f.ingestor.Stats())
}
