package discord

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
	"github.com/scrimmage/discord-tracker-service/internal/service/dto"
)

// Gateway dispatch names.
const (
	DispatchReady                    = "READY"
	DispatchResumed                  = "RESUMED"
	DispatchGuildCreate              = "GUILD_CREATE"
	DispatchGuildUpdate              = "GUILD_UPDATE"
	DispatchGuildDelete              = "GUILD_DELETE"
	DispatchMessageCreate            = "MESSAGE_CREATE"
	DispatchReactionAdd              = "MESSAGE_REACTION_ADD"
	DispatchMemberAdd                = "GUILD_MEMBER_ADD"
	DispatchMemberUpdate             = "GUILD_MEMBER_UPDATE"
	DispatchMemberRemove             = "GUILD_MEMBER_REMOVE"
	DispatchThreadCreate             = "THREAD_CREATE"
	DispatchVoiceStateUpdate         = "VOICE_STATE_UPDATE"
	DispatchScheduledEventUserAdd    = "GUILD_SCHEDULED_EVENT_USER_ADD"
	DispatchScheduledEventUserRemove = "GUILD_SCHEDULED_EVENT_USER_REMOVE"
	DispatchInteractionCreate        = "INTERACTION_CREATE"
)

// Decoder maps one dispatch onto a raw event while keeping State current.
// It is safe for concurrent use.
type Decoder struct {
	state *State
	now   func() time.Time
}

func NewDecoder(state *State) *Decoder {
	return &Decoder{state: state, now: time.Now}
}

// Decode returns a nil event for dispatches that only feed the state or that
// the pipeline does not track. An error means the payload was malformed.
func (d *Decoder) Decode(name string, data json.RawMessage) (event.Raw, error) {
	switch name {
	case DispatchGuildCreate:
		return nil, d.guildCreate(data)
	case DispatchGuildUpdate:
		var g dto.GuildV1
		if err := unmarshal(name, data, &g); err != nil {
			return nil, err
		}
		d.state.UpdateGuild(g.ToDomain())
		return nil, nil
	case DispatchGuildDelete:
		var g dto.GuildDeleteV1
		if err := unmarshal(name, data, &g); err != nil {
			return nil, err
		}
		// An outage is reported as a delete with unavailable set; keep the record.
		if !g.Unavailable {
			d.state.RemoveGuild(g.ID)
		}
		return nil, nil
	case DispatchMessageCreate:
		return d.messageCreate(data)
	case DispatchReactionAdd:
		return d.reactionAdd(data)
	case DispatchMemberAdd:
		return d.memberAdd(data)
	case DispatchMemberUpdate:
		return d.memberUpdate(data)
	case DispatchMemberRemove:
		return d.memberRemove(data)
	case DispatchThreadCreate:
		var t dto.ThreadV1
		if err := unmarshal(name, data, &t); err != nil {
			return nil, err
		}
		return &event.ThreadCreate{Guild: d.state.Guild(t.GuildID), Thread: t.ToDomain(data)}, nil
	case DispatchVoiceStateUpdate:
		return d.voiceStateUpdate(data)
	case DispatchScheduledEventUserAdd, DispatchScheduledEventUserRemove:
		return d.scheduledEventUser(name, data)
	case DispatchInteractionCreate:
		var in dto.InteractionV1
		if err := unmarshal(name, data, &in); err != nil {
			return nil, err
		}
		return &event.InteractionCreate{Interaction: in.ToDomain()}, nil
	default:
		return nil, nil
	}
}

func unmarshal(name string, data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (d *Decoder) guildCreate(data json.RawMessage) error {
	var g dto.GuildV1
	if err := unmarshal(DispatchGuildCreate, data, &g); err != nil {
		return err
	}
	if g.Unavailable {
		return nil
	}
	d.state.PutGuild(g.ToDomain())
	for i := range g.Members {
		if m := g.Members[i].ToDomain(g.ID, nil); m != nil {
			d.state.PutMember(*m)
		}
	}
	for i := range g.VoiceStates {
		d.state.PutVoiceState(*g.VoiceStates[i].ToDomain(g.ID, nil))
	}
	return nil
}

func (d *Decoder) messageCreate(data json.RawMessage) (event.Raw, error) {
	var m dto.MessageV1
	if err := unmarshal(DispatchMessageCreate, data, &m); err != nil {
		return nil, err
	}
	return &event.MessageCreate{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Message:   model.Complete(m.ToDomain(data)),
	}, nil
}

// reactionAdd never carries the reacted message, and only carries the
// reactor inside guilds.
func (d *Decoder) reactionAdd(data json.RawMessage) (event.Raw, error) {
	var r dto.ReactionAddV1
	if err := unmarshal(DispatchReactionAdd, data, &r); err != nil {
		return nil, err
	}

	user := model.Reference[model.User](model.Ref{GuildID: r.GuildID, ID: r.UserID})
	if m := r.Member.ToDomain(r.GuildID, nil); m != nil && m.User != nil {
		d.state.PutMember(*m)
		user = model.Complete(m.User)
	}

	return &event.ReactionAdd{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		Message: model.Reference[model.Message](model.Ref{
			GuildID:   r.GuildID,
			ChannelID: r.ChannelID,
			ID:        r.MessageID,
		}),
		User:  user,
		Emoji: r.Emoji.ToDomain(),
	}, nil
}

func (d *Decoder) memberAdd(data json.RawMessage) (event.Raw, error) {
	var m dto.MemberV1
	if err := unmarshal(DispatchMemberAdd, data, &m); err != nil {
		return nil, err
	}
	member := m.ToDomain("", data)
	d.state.PutMember(*member)
	return &event.MemberAdd{
		Guild:  d.state.AdjustMemberCount(member.GuildID, 1),
		Member: model.Complete(member),
	}, nil
}

// memberUpdate diffs against the cached snapshot. Without one the previous
// state is left as a reference for the resolver.
func (d *Decoder) memberUpdate(data json.RawMessage) (event.Raw, error) {
	var m dto.MemberV1
	if err := unmarshal(DispatchMemberUpdate, data, &m); err != nil {
		return nil, err
	}
	cur := m.ToDomain("", data)
	userID := cur.UserID()

	old := model.Reference[model.Member](model.Ref{GuildID: cur.GuildID, ID: userID})
	if prev, ok := d.state.Member(cur.GuildID, userID); ok {
		old = model.Complete(&prev)
	}
	d.state.PutMember(*cur)

	return &event.MemberUpdate{
		Guild:      d.state.Guild(cur.GuildID),
		Old:        old,
		New:        model.Complete(cur),
		ReceivedAt: d.now(),
	}, nil
}

func (d *Decoder) memberRemove(data json.RawMessage) (event.Raw, error) {
	var r dto.MemberRemoveV1
	if err := unmarshal(DispatchMemberRemove, data, &r); err != nil {
		return nil, err
	}
	user := r.User.ToDomain(nil)
	if user == nil {
		return nil, fmt.Errorf("decode %s: missing user", DispatchMemberRemove)
	}

	member := &model.Member{GuildID: r.GuildID, User: user, Raw: data}
	if prev, ok := d.state.Member(r.GuildID, user.ID); ok {
		prev.Raw = data
		member = &prev
	}
	d.state.RemoveMember(r.GuildID, user.ID)

	return &event.MemberRemove{
		Guild:      d.state.AdjustMemberCount(r.GuildID, -1),
		Member:     model.Complete(member),
		ReceivedAt: d.now(),
	}, nil
}

func (d *Decoder) voiceStateUpdate(data json.RawMessage) (event.Raw, error) {
	var v dto.VoiceStateV1
	if err := unmarshal(DispatchVoiceStateUpdate, data, &v); err != nil {
		return nil, err
	}
	cur := v.ToDomain("", data)

	var old *model.VoiceState
	if prev, ok := d.state.VoiceState(cur.GuildID, cur.UserID); ok {
		old = &prev
	}
	d.state.PutVoiceState(*cur)
	if cur.Member != nil {
		d.state.PutMember(*cur.Member)
	}

	return &event.VoiceStateUpdate{
		Guild:          d.state.Guild(cur.GuildID),
		Old:            old,
		New:            cur,
		ChannelMembers: d.state.ChannelMembers(cur.GuildID, cur.ChannelID),
		ReceivedAt:     d.now(),
	}, nil
}

func (d *Decoder) scheduledEventUser(name string, data json.RawMessage) (event.Raw, error) {
	var s dto.ScheduledEventUserV1
	if err := unmarshal(name, data, &s); err != nil {
		return nil, err
	}

	user := model.Reference[model.User](model.Ref{GuildID: s.GuildID, ID: s.UserID})
	if m, ok := d.state.Member(s.GuildID, s.UserID); ok && m.User != nil {
		user = model.Complete(m.User)
	}
	guild := d.state.Guild(s.GuildID)
	at := d.now()

	if name == DispatchScheduledEventUserAdd {
		return &event.ScheduledEventUserAdd{Guild: guild, ScheduledEventID: s.ScheduledEventID, User: user, ReceivedAt: at}, nil
	}
	return &event.ScheduledEventUserRemove{Guild: guild, ScheduledEventID: s.ScheduledEventID, User: user, ReceivedAt: at}, nil
}
