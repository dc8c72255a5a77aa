package event

import (
	"time"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

type Kind int16

const (
	KindMessageCreate Kind = iota + 1
	KindReactionAdd
	KindMemberAdd
	KindMemberUpdate
	KindMemberRemove
	KindThreadCreate
	KindVoiceStateUpdate
	KindScheduledEventUserAdd
	KindScheduledEventUserRemove
	KindInteractionCreate
)

var kindNames = map[Kind]string{
	KindMessageCreate:            "message_create",
	KindReactionAdd:              "reaction_add",
	KindMemberAdd:                "member_add",
	KindMemberUpdate:             "member_update",
	KindMemberRemove:             "member_remove",
	KindThreadCreate:             "thread_create",
	KindVoiceStateUpdate:         "voice_state_update",
	KindScheduledEventUserAdd:    "scheduled_event_user_add",
	KindScheduledEventUserRemove: "scheduled_event_user_remove",
	KindInteractionCreate:        "interaction_create",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Raw is a platform occurrence as delivered by the event source.
//
// [CLOSED_SET] Only the types declared in this file implement Raw; the
// ingestion router matches on them exhaustively.
type Raw interface {
	Kind() Kind
	isRaw()
}

var (
	_ Raw = (*MessageCreate)(nil)
	_ Raw = (*ReactionAdd)(nil)
	_ Raw = (*MemberAdd)(nil)
	_ Raw = (*MemberUpdate)(nil)
	_ Raw = (*MemberRemove)(nil)
	_ Raw = (*ThreadCreate)(nil)
	_ Raw = (*VoiceStateUpdate)(nil)
	_ Raw = (*ScheduledEventUserAdd)(nil)
	_ Raw = (*ScheduledEventUserRemove)(nil)
	_ Raw = (*InteractionCreate)(nil)
)

// MessageCreate carries the guild and channel of the message separately so the
// event can be scoped even when the message itself is only a reference.
type MessageCreate struct {
	GuildID   string
	ChannelID string
	Message   model.Entity[model.Message]
}

type ReactionAdd struct {
	GuildID   string
	ChannelID string
	Message   model.Entity[model.Message]
	User      model.Entity[model.User]
	Emoji     model.Emoji
}

type MemberAdd struct {
	Guild  model.Guild
	Member model.Entity[model.Member]
}

// MemberUpdate pairs the last known snapshot with the new one. Old is a
// reference when no snapshot was observed before the update.
type MemberUpdate struct {
	Guild      model.Guild
	Old        model.Entity[model.Member]
	New        model.Entity[model.Member]
	ReceivedAt time.Time
}

type MemberRemove struct {
	Guild      model.Guild
	Member     model.Entity[model.Member]
	ReceivedAt time.Time
}

type ThreadCreate struct {
	Guild  model.Guild
	Thread *model.Thread
}

// VoiceStateUpdate carries both states; Old has an empty ChannelID when the
// user was not connected. ChannelMembers counts users in the new channel.
type VoiceStateUpdate struct {
	Guild          model.Guild
	Old            *model.VoiceState
	New            *model.VoiceState
	ChannelMembers int
	ReceivedAt     time.Time
}

type ScheduledEventUserAdd struct {
	Guild            model.Guild
	ScheduledEventID string
	User             model.Entity[model.User]
	ReceivedAt       time.Time
}

type ScheduledEventUserRemove struct {
	Guild            model.Guild
	ScheduledEventID string
	User             model.Entity[model.User]
	ReceivedAt       time.Time
}

// InteractionCreate is not tracked; it drives the registration command.
type InteractionCreate struct {
	Interaction *model.Interaction
}

func (*MessageCreate) Kind() Kind            { return KindMessageCreate }
func (*ReactionAdd) Kind() Kind              { return KindReactionAdd }
func (*MemberAdd) Kind() Kind                { return KindMemberAdd }
func (*MemberUpdate) Kind() Kind             { return KindMemberUpdate }
func (*MemberRemove) Kind() Kind             { return KindMemberRemove }
func (*ThreadCreate) Kind() Kind             { return KindThreadCreate }
func (*VoiceStateUpdate) Kind() Kind         { return KindVoiceStateUpdate }
func (*ScheduledEventUserAdd) Kind() Kind    { return KindScheduledEventUserAdd }
func (*ScheduledEventUserRemove) Kind() Kind { return KindScheduledEventUserRemove }
func (*InteractionCreate) Kind() Kind        { return KindInteractionCreate }

func (*MessageCreate) isRaw()            {}
func (*ReactionAdd) isRaw()              {}
func (*MemberAdd) isRaw()                {}
func (*MemberUpdate) isRaw()             {}
func (*MemberRemove) isRaw()             {}
func (*ThreadCreate) isRaw()             {}
func (*VoiceStateUpdate) isRaw()         {}
func (*ScheduledEventUserAdd) isRaw()    {}
func (*ScheduledEventUserRemove) isRaw() {}
func (*InteractionCreate) isRaw()        {}
