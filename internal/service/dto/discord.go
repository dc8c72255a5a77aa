// Package dto holds the gateway and REST wire shapes and their mapping onto
// domain objects. Only fields the pipeline reads are declared.
package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

// discordEpoch is the first millisecond of 2015, the origin of snowflake ids.
const discordEpoch = 1420070400000

// SnowflakeTime extracts the creation time encoded in a snowflake id.
func SnowflakeTime(id string) time.Time {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(v>>22) + discordEpoch).UTC()
}

type UserV1 struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Bot        bool   `json:"bot"`
	System     bool   `json:"system"`
}

func (u *UserV1) ToDomain(raw json.RawMessage) *model.User {
	if u == nil || u.ID == "" {
		return nil
	}
	return &model.User{
		ID:         u.ID,
		Username:   u.Username,
		GlobalName: u.GlobalName,
		Avatar:     u.Avatar,
		Bot:        u.Bot,
		System:     u.System,
		Raw:        raw,
	}
}

type MemberV1 struct {
	GuildID      string     `json:"guild_id"`
	User         *UserV1    `json:"user"`
	Nick         string     `json:"nick"`
	Roles        []string   `json:"roles"`
	JoinedAt     time.Time  `json:"joined_at"`
	PremiumSince *time.Time `json:"premium_since"`
}

// ToDomain maps the member; guildID wins over the payload's own guild_id,
// which is absent when the member is nested in another object.
func (m *MemberV1) ToDomain(guildID string, raw json.RawMessage) *model.Member {
	if m == nil {
		return nil
	}
	if guildID == "" {
		guildID = m.GuildID
	}
	return &model.Member{
		GuildID:      guildID,
		User:         m.User.ToDomain(nil),
		Nick:         m.Nick,
		Roles:        append([]string(nil), m.Roles...),
		JoinedAt:     m.JoinedAt,
		PremiumSince: m.PremiumSince,
		Raw:          raw,
	}
}

type EmbedV1 struct {
	Type     string `json:"type"`
	Provider *struct {
		Name string `json:"name"`
	} `json:"provider"`
}

type MessageV1 struct {
	ID           string            `json:"id"`
	ChannelID    string            `json:"channel_id"`
	GuildID      string            `json:"guild_id"`
	Author       *UserV1           `json:"author"`
	WebhookID    string            `json:"webhook_id"`
	Type         int               `json:"type"`
	Content      string            `json:"content"`
	Timestamp    time.Time         `json:"timestamp"`
	Embeds       []EmbedV1         `json:"embeds"`
	Attachments  []json.RawMessage `json:"attachments"`
	Components   []json.RawMessage `json:"components"`
	StickerItems []json.RawMessage `json:"sticker_items"`
}

func (m *MessageV1) ToDomain(raw json.RawMessage) *model.Message {
	embeds := make([]model.Embed, 0, len(m.Embeds))
	for _, e := range m.Embeds {
		embed := model.Embed{Type: e.Type}
		if e.Provider != nil {
			embed.ProviderName = e.Provider.Name
		}
		embeds = append(embeds, embed)
	}

	createdAt := m.Timestamp
	if createdAt.IsZero() {
		createdAt = SnowflakeTime(m.ID)
	}

	return &model.Message{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		Author:      m.Author.ToDomain(nil),
		WebhookID:   m.WebhookID,
		Type:        model.MessageType(m.Type),
		Content:     m.Content,
		CreatedAt:   createdAt,
		Embeds:      embeds,
		Attachments: len(m.Attachments),
		Components:  len(m.Components),
		Stickers:    len(m.StickerItems),
		Raw:         raw,
	}
}

type EmojiV1 struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated"`
}

func (e EmojiV1) ToDomain() model.Emoji {
	return model.Emoji{ID: e.ID, Name: e.Name, Animated: e.Animated}
}

type ReactionAddV1 struct {
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	GuildID   string    `json:"guild_id"`
	Member    *MemberV1 `json:"member"`
	Emoji     EmojiV1   `json:"emoji"`
}

type GuildV1 struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	SystemChannelID string         `json:"system_channel_id"`
	MemberCount     int            `json:"member_count"`
	Unavailable     bool           `json:"unavailable"`
	Members         []MemberV1     `json:"members"`
	VoiceStates     []VoiceStateV1 `json:"voice_states"`
}

func (g *GuildV1) ToDomain() model.Guild {
	return model.Guild{
		ID:              g.ID,
		Name:            g.Name,
		SystemChannelID: g.SystemChannelID,
		MemberCount:     g.MemberCount,
	}
}

type MemberRemoveV1 struct {
	GuildID string  `json:"guild_id"`
	User    *UserV1 `json:"user"`
}

type ThreadV1 struct {
	ID             string `json:"id"`
	GuildID        string `json:"guild_id"`
	ParentID       string `json:"parent_id"`
	OwnerID        string `json:"owner_id"`
	Name           string `json:"name"`
	Type           int    `json:"type"`
	MemberCount    int    `json:"member_count"`
	MessageCount   int    `json:"message_count"`
	NewlyCreated   bool   `json:"newly_created"`
	ThreadMetadata *struct {
		CreateTimestamp *time.Time `json:"create_timestamp"`
	} `json:"thread_metadata"`
}

func (t *ThreadV1) ToDomain(raw json.RawMessage) *model.Thread {
	createdAt := SnowflakeTime(t.ID)
	if t.ThreadMetadata != nil && t.ThreadMetadata.CreateTimestamp != nil {
		createdAt = *t.ThreadMetadata.CreateTimestamp
	}
	return &model.Thread{
		ID:           t.ID,
		GuildID:      t.GuildID,
		ParentID:     t.ParentID,
		OwnerID:      t.OwnerID,
		Name:         t.Name,
		Type:         t.Type,
		MemberCount:  t.MemberCount,
		MessageCount: t.MessageCount,
		NewlyCreated: t.NewlyCreated,
		CreatedAt:    createdAt,
		Raw:          raw,
	}
}

type VoiceStateV1 struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	SelfMute  bool      `json:"self_mute"`
	SelfDeaf  bool      `json:"self_deaf"`
	Member    *MemberV1 `json:"member"`
}

func (v *VoiceStateV1) ToDomain(guildID string, raw json.RawMessage) *model.VoiceState {
	if guildID == "" {
		guildID = v.GuildID
	}
	return &model.VoiceState{
		GuildID:   guildID,
		UserID:    v.UserID,
		ChannelID: v.ChannelID,
		SessionID: v.SessionID,
		SelfMute:  v.SelfMute,
		SelfDeaf:  v.SelfDeaf,
		Member:    v.Member.ToDomain(guildID, nil),
		Raw:       raw,
	}
}

type ScheduledEventUserV1 struct {
	ScheduledEventID string `json:"guild_scheduled_event_id"`
	UserID           string `json:"user_id"`
	GuildID          string `json:"guild_id"`
}

type InteractionV1 struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Type          int       `json:"type"`
	Token         string    `json:"token"`
	GuildID       string    `json:"guild_id"`
	ChannelID     string    `json:"channel_id"`
	Member        *MemberV1 `json:"member"`
	User          *UserV1   `json:"user"`
	Data          *struct {
		Name string `json:"name"`
	} `json:"data"`
}

// ToDomain picks the invoking user from the member in guilds and from the
// top-level user in direct messages.
func (i *InteractionV1) ToDomain() *model.Interaction {
	in := &model.Interaction{
		ID:            i.ID,
		Token:         i.Token,
		ApplicationID: i.ApplicationID,
		Type:          i.Type,
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
	}
	if i.Data != nil {
		in.CommandName = i.Data.Name
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		in.User = i.Member.User.ToDomain(nil)
	case i.User != nil:
		in.User = i.User.ToDomain(nil)
	}
	return in
}

type ReadyV1 struct {
	SessionID        string    `json:"session_id"`
	ResumeGatewayURL string    `json:"resume_gateway_url"`
	User             *UserV1   `json:"user"`
	Guilds           []GuildV1 `json:"guilds"`
}

type GuildDeleteV1 struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

// DispatchV1 is a gateway dispatch envelope as relayed over the bus.
type DispatchV1 struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  int64           `json:"s"`
	D  json.RawMessage `json:"d"`
}
