package normalizer

import (
	"time"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

// VoiceStateUpdate yields a leave for the previous channel and a join for the
// new one. A direct switch between two channels yields both.
func (n *Normalizer) VoiceStateUpdate(guild model.Guild, old, cur *model.VoiceState, channelMembers int, at time.Time) []event.Trackable {
	var out []event.Trackable

	payload := func(channelID string) map[string]any {
		return map[string]any{
			"guildId":                guild.ID,
			"channelId":              channelID,
			"oldChannelId":           old.ChannelID,
			"newChannelId":           cur.ChannelID,
			"timestamp":              millis(at),
			"date":                   eventDate(at),
			"amountOfUsersInChannel": channelMembers,
			"selfMute":               cur.SelfMute,
			"selfDeaf":               cur.SelfDeaf,
			"original":               cur.Raw,
		}
	}

	if old.ChannelID != "" && old.ChannelID != cur.ChannelID {
		out = append(out, n.track(cur.UserID, "", VoiceChannelLeave, payload(old.ChannelID)))
	}
	if cur.ChannelID != "" && cur.ChannelID != old.ChannelID {
		out = append(out, n.track(cur.UserID, "", VoiceChannelJoin, payload(cur.ChannelID)))
	}
	return out
}

// ThreadCreate credits the owner of a new thread, once per thread.
func (n *Normalizer) ThreadCreate(guild model.Guild, th *model.Thread) event.Trackable {
	return n.track(th.OwnerID, th.ID, ThreadCreate, map[string]any{
		"guildId":      guild.ID,
		"threadId":     th.ID,
		"parentId":     th.ParentID,
		"name":         th.Name,
		"type":         th.Type,
		"newlyCreated": th.NewlyCreated,
		"memberCount":  th.MemberCount,
		"messageCount": th.MessageCount,
		"timestamp":    millis(th.CreatedAt),
		"date":         eventDate(th.CreatedAt),
		"original":     th.Raw,
	})
}

// ScheduledEventUserAdd credits an RSVP, once per scheduled event.
func (n *Normalizer) ScheduledEventUserAdd(guild model.Guild, scheduledEventID string, u *model.User, at time.Time) event.Trackable {
	return n.track(u.ID, scheduledEventID, ScheduledEventUserAdd, scheduledPayload(guild, scheduledEventID, u, at))
}

// ScheduledEventUserRemove records a withdrawn RSVP, once per scheduled event.
func (n *Normalizer) ScheduledEventUserRemove(guild model.Guild, scheduledEventID string, u *model.User, at time.Time) event.Trackable {
	return n.track(u.ID, scheduledEventID, ScheduledEventUserRemove, scheduledPayload(guild, scheduledEventID, u, at))
}

func scheduledPayload(guild model.Guild, scheduledEventID string, u *model.User, at time.Time) map[string]any {
	return map[string]any{
		"guildId":          guild.ID,
		"scheduledEventId": scheduledEventID,
		"isBot":            u.Bot,
		"timestamp":        millis(at),
		"date":             eventDate(at),
		"original":         u.Raw,
	}
}
