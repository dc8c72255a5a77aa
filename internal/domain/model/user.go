package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const cdnBaseURL = "https://cdn.discordapp.com"

type User struct {
	ID         string
	Username   string
	GlobalName string
	Avatar     string
	Bot        bool
	System     bool

	// Raw is the verbatim platform object, forwarded to the ledger for audit.
	Raw json.RawMessage
}

// DisplayName prefers the global display name over the unique username.
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL returns the CDN location of the user's avatar, or "" when unset.
func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("%s/avatars/%s/%s.png", cdnBaseURL, u.ID, u.Avatar)
}

// Member is a user's membership in a single guild.
type Member struct {
	GuildID      string
	User         *User
	Nick         string
	Roles        []string
	JoinedAt     time.Time
	PremiumSince *time.Time

	Raw json.RawMessage
}

// UserID returns the id of the underlying user, or "" for a malformed member.
func (m *Member) UserID() string {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.ID
}

// Clone returns a copy that does not share the roles slice.
func (m Member) Clone() Member {
	m.Roles = append([]string(nil), m.Roles...)
	return m
}
