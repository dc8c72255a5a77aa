package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInScope(t *testing.T) {
	cases := []struct {
		name     string
		guilds   []string
		channels []string
		guildID  string
		channel  string
		want     bool
	}{
		{name: "empty lists admit everything", guildID: "g1", channel: "c1", want: true},
		{name: "empty lists admit missing channel", guildID: "g1", channel: "", want: true},
		{name: "guild allowed", guilds: []string{"g1"}, guildID: "g1", channel: "c9", want: true},
		{name: "guild rejected", guilds: []string{"g1"}, guildID: "g2", channel: "c1", want: false},
		{name: "channel allowed", channels: []string{"c1"}, guildID: "g7", channel: "c1", want: true},
		{name: "channel rejected", channels: []string{"c1"}, guildID: "g1", channel: "c2", want: false},
		{name: "missing channel rejected by channel list", channels: []string{"c1"}, guildID: "g1", channel: "", want: false},
		{name: "both lists must match", guilds: []string{"g1"}, channels: []string{"c1"}, guildID: "g1", channel: "c2", want: false},
		{name: "blank entries ignored", guilds: []string{"", " "}, guildID: "any", channel: "c", want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig(tc.guilds, tc.channels)
			assert.Equal(t, tc.want, cfg.InScope(tc.guildID, tc.channel))
		})
	}
}
