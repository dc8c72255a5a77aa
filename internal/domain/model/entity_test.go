package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityStates(t *testing.T) {
	complete := Complete(&User{ID: "u1"})
	v, ok := complete.Value()
	assert.True(t, ok)
	assert.Equal(t, "u1", v.ID)
	assert.False(t, complete.IsReference())

	ref := Reference[User](Ref{ID: "u2"})
	_, ok = ref.Value()
	assert.False(t, ok)
	assert.True(t, ref.IsReference())
	assert.Equal(t, "u2", ref.Ref().ID)

	var zero Entity[User]
	_, ok = zero.Value()
	assert.False(t, ok)
	assert.False(t, zero.IsReference())
}

func TestUserDisplay(t *testing.T) {
	u := &User{ID: "1", Username: "name", Avatar: "abc"}
	assert.Equal(t, "name", u.DisplayName())
	assert.Equal(t, "https://cdn.discordapp.com/avatars/1/abc.png", u.AvatarURL())

	u.GlobalName = "Display"
	assert.Equal(t, "Display", u.DisplayName())
	assert.Empty(t, (&User{ID: "2"}).AvatarURL())
}

func TestEmojiKey(t *testing.T) {
	assert.Equal(t, "123", Emoji{ID: "123", Name: "custom"}.Key())
	assert.Equal(t, "👍", Emoji{Name: "👍"}.Key())
}
