// Package scope decides which guilds and channels the pipeline observes.
package scope

import "strings"

// Config is the immutable operating scope. An empty allow-list admits everything.
type Config struct {
	guilds   map[string]struct{}
	channels map[string]struct{}
}

// NewConfig builds a scope from raw allow-lists; blank entries are ignored.
func NewConfig(guildIDs, channelIDs []string) Config {
	return Config{
		guilds:   toSet(guildIDs),
		channels: toSet(channelIDs),
	}
}

// InScope reports whether an event from guildID/channelID may be tracked.
// An empty channelID (no applicable channel) only passes an empty channel list.
func (c Config) InScope(guildID, channelID string) bool {
	return c.guildAllowed(guildID) && c.channelAllowed(channelID)
}

func (c Config) guildAllowed(guildID string) bool {
	if len(c.guilds) == 0 {
		return true
	}
	_, ok := c.guilds[guildID]
	return ok
}

func (c Config) channelAllowed(channelID string) bool {
	if len(c.channels) == 0 {
		return true
	}
	if channelID == "" {
		return false
	}
	_, ok := c.channels[channelID]
	return ok
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
