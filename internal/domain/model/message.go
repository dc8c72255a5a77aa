package model

import (
	"encoding/json"
	"time"
)

type MessageType int

// nonSystemMessageTypes are the message types a regular user can author.
var nonSystemMessageTypes = map[MessageType]struct{}{
	0:  {}, // Default
	19: {}, // Reply
	20: {}, // ChatInputCommand
	23: {}, // ContextMenuCommand
}

var messageTypeNames = map[MessageType]string{
	0:  "Default",
	1:  "RecipientAdd",
	2:  "RecipientRemove",
	3:  "Call",
	4:  "ChannelNameChange",
	5:  "ChannelIconChange",
	6:  "ChannelPinnedMessage",
	7:  "UserJoin",
	8:  "GuildBoost",
	9:  "GuildBoostTier1",
	10: "GuildBoostTier2",
	11: "GuildBoostTier3",
	12: "ChannelFollowAdd",
	14: "GuildDiscoveryDisqualified",
	15: "GuildDiscoveryRequalified",
	16: "GuildDiscoveryGracePeriodInitialWarning",
	17: "GuildDiscoveryGracePeriodFinalWarning",
	18: "ThreadCreated",
	19: "Reply",
	20: "ChatInputCommand",
	21: "ThreadStarterMessage",
	22: "GuildInviteReminder",
	23: "ContextMenuCommand",
	24: "AutoModerationAction",
	25: "RoleSubscriptionPurchase",
	26: "InteractionPremiumUpsell",
	27: "StageStart",
	28: "StageEnd",
	29: "StageSpeaker",
	31: "StageTopic",
	32: "GuildApplicationPremiumSubscription",
}

// Name returns the symbolic name of the type, or "" when unknown.
func (t MessageType) Name() string {
	return messageTypeNames[t]
}

type Embed struct {
	Type         string
	ProviderName string
}

type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	Author      *User
	WebhookID   string
	Type        MessageType
	Content     string
	CreatedAt   time.Time
	Embeds      []Embed
	Attachments int
	Components  int
	Stickers    int

	Raw json.RawMessage
}

// IsSystem reports whether the message was generated by the platform.
func (m *Message) IsSystem() bool {
	_, regular := nonSystemMessageTypes[m.Type]
	return !regular
}

// AuthorID returns the author id, or "" when the author is unknown.
func (m *Message) AuthorID() string {
	if m.Author == nil {
		return ""
	}
	return m.Author.ID
}

type Emoji struct {
	ID       string
	Name     string
	Animated bool
}

// Key identifies the emoji for deduplication. Unicode emojis have no id and
// are keyed by their name.
func (e Emoji) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}
