package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

func TestChannelMembersFollowVoiceMoves(t *testing.T) {
	s, err := NewState(100)
	require.NoError(t, err)

	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: "v1"})
	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u2", ChannelID: "v1"})
	s.PutVoiceState(model.VoiceState{GuildID: "g2", UserID: "u3", ChannelID: "v1"})
	assert.Equal(t, 2, s.ChannelMembers("g1", "v1"))
	assert.Equal(t, 1, s.ChannelMembers("g2", "v1"))

	// Repeated update in the same channel (mute, deafen) is not a new member.
	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: "v1"})
	assert.Equal(t, 2, s.ChannelMembers("g1", "v1"))

	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: "v2"})
	assert.Equal(t, 1, s.ChannelMembers("g1", "v1"))
	assert.Equal(t, 1, s.ChannelMembers("g1", "v2"))

	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u2"})
	assert.Equal(t, 0, s.ChannelMembers("g1", "v1"))
	_, ok := s.VoiceState("g1", "u2")
	assert.False(t, ok)

	assert.Equal(t, 0, s.ChannelMembers("g1", ""))
}

func TestChannelMembersReleaseEvictedEntries(t *testing.T) {
	s, err := NewState(2)
	require.NoError(t, err)

	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: "v1"})
	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u2", ChannelID: "v1"})
	s.PutVoiceState(model.VoiceState{GuildID: "g1", UserID: "u3", ChannelID: "v2"})

	assert.Equal(t, 1, s.ChannelMembers("g1", "v1"))
	assert.Equal(t, 1, s.ChannelMembers("g1", "v2"))
}
