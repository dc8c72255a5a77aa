// Package normalizer maps resolved platform objects onto ledger events.
//
// Every rule is a pure transform: no rule performs I/O or reads the clock,
// timestamps come from the objects or from the raw event's receive time.
package normalizer

import (
	"time"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
)

// Event names, prefixed with the configured data type prefix at runtime.
const (
	MessageSent              = "discordMessageSent"
	MessageReactionAdd       = "discordMessageReactionAdd"
	MessageReactionReceived  = "discordMessageReactionReceived"
	GuildMemberAdd           = "discordGuildMemberAdd"
	GuildMemberRemove        = "discordGuildMemberRemove"
	GuildMemberRoleAdd       = "discordGuildMemberRoleAdd"
	GuildMemberRoleRemove    = "discordGuildMemberRoleRemove"
	GuildMemberBoostStart    = "discordGuildMemberBoostStart"
	GuildMemberBoostStop     = "discordGuildMemberBoostStop"
	ThreadCreate             = "discordThreadCreate"
	VoiceChannelJoin         = "discordVoiceChannelJoin"
	VoiceChannelLeave        = "discordVoiceChannelLeave"
	ScheduledEventUserAdd    = "discordGuildScheduledEventUserAdd"
	ScheduledEventUserRemove = "discordGuildScheduledEventUserRemove"
)

const dedupeSeparator = "::"

type Options struct {
	// Prefix is prepended to every event name to form the ledger data type.
	Prefix string
	// ReportAllRoleChanges emits one event per changed role instead of only
	// the first differing role of a member update.
	ReportAllRoleChanges bool
}

type Normalizer struct {
	prefix         string
	reportAllRoles bool
}

func New(opts Options) *Normalizer {
	return &Normalizer{
		prefix:         opts.Prefix,
		reportAllRoles: opts.ReportAllRoleChanges,
	}
}

// EventType returns the ledger data type for an event name.
func (n *Normalizer) EventType(name string) string {
	return n.prefix + name
}

func (n *Normalizer) track(userID, dedupeKey, name string, payload map[string]any) event.Trackable {
	return event.Trackable{
		UserID:    userID,
		DedupeKey: dedupeKey,
		EventType: n.EventType(name),
		Payload:   payload,
	}
}

// eventDate breaks a timestamp down the way the ledger's rules expect it.
// The month is zero-based.
func eventDate(t time.Time) map[string]any {
	t = t.UTC()
	return map[string]any{
		"year":   t.Year(),
		"month":  int(t.Month()) - 1,
		"day":    t.Day(),
		"hour":   t.Hour(),
		"minute": t.Minute(),
		"second": t.Second(),
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
