package model

import (
	"encoding/json"
	"time"
)

// Guild carries the guild attributes the pipeline needs for scoping and payloads.
type Guild struct {
	ID              string
	Name            string
	SystemChannelID string
	MemberCount     int
}

type Thread struct {
	ID           string
	GuildID      string
	ParentID     string
	OwnerID      string
	Name         string
	Type         int
	MemberCount  int
	MessageCount int
	NewlyCreated bool
	CreatedAt    time.Time

	Raw json.RawMessage
}

// VoiceState is a user's voice connection within a guild. An empty ChannelID
// means the user is not connected.
type VoiceState struct {
	GuildID   string
	UserID    string
	ChannelID string
	SessionID string
	SelfMute  bool
	SelfDeaf  bool
	Member    *Member

	Raw json.RawMessage
}

const (
	InteractionTypePing               = 1
	InteractionTypeApplicationCommand = 2
)

type Interaction struct {
	ID            string
	Token         string
	ApplicationID string
	Type          int
	CommandName   string
	GuildID       string
	ChannelID     string
	User          *User
}

// Command is an application (slash) command definition.
type Command struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        int    `json:"type,omitempty"`
}
