// Package discord turns gateway dispatches into raw pipeline events.
package discord

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

const defaultStateSize = 50_000

// State is a bounded cache of what the gateway has told us so far. It lets
// updates be diffed against the previous snapshot without a fetch.
//
// [BOUNDED] Every collection is an LRU; an evicted entry only costs one REST
// lookup later.
type State struct {
	// mu serialises read-modify-write of guild records.
	mu      sync.Mutex
	guilds  *lru.Cache[string, model.Guild]
	members *lru.Cache[string, model.Member]
	voice   *lru.Cache[string, model.VoiceState]

	// voiceMu serialises voice writes. countMu guards channelCounts, which the
	// voice cache's eviction callback also updates.
	voiceMu       sync.Mutex
	countMu       sync.Mutex
	channelCounts map[string]int
}

func NewState(size int) (*State, error) {
	if size <= 0 {
		size = defaultStateSize
	}
	guilds, err := lru.New[string, model.Guild](size)
	if err != nil {
		return nil, fmt.Errorf("state: guild cache: %w", err)
	}
	members, err := lru.New[string, model.Member](size)
	if err != nil {
		return nil, fmt.Errorf("state: member cache: %w", err)
	}
	s := &State{guilds: guilds, members: members, channelCounts: make(map[string]int)}
	s.voice, err = lru.NewWithEvict(size, func(_ string, v model.VoiceState) {
		s.adjustChannel(v.GuildID, v.ChannelID, -1)
	})
	if err != nil {
		return nil, fmt.Errorf("state: voice cache: %w", err)
	}
	return s, nil
}

func memberKey(guildID, userID string) string {
	return guildID + ":" + userID
}

// Guild returns the cached guild or a bare one carrying only its id.
func (s *State) Guild(id string) model.Guild {
	if g, ok := s.guilds.Get(id); ok {
		return g
	}
	return model.Guild{ID: id}
}

func (s *State) PutGuild(g model.Guild) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds.Add(g.ID, g)
}

// UpdateGuild refreshes guild attributes but keeps the tracked member count,
// which update dispatches do not carry.
func (s *State) UpdateGuild(g model.Guild) model.Guild {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.guilds.Get(g.ID); ok && g.MemberCount == 0 {
		g.MemberCount = prev.MemberCount
	}
	s.guilds.Add(g.ID, g)
	return g
}

func (s *State) RemoveGuild(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds.Remove(id)
}

// AdjustMemberCount applies a join or leave to the guild and returns it.
func (s *State) AdjustMemberCount(id string, delta int) model.Guild {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds.Get(id)
	if !ok {
		return model.Guild{ID: id}
	}
	g.MemberCount = max(g.MemberCount+delta, 0)
	s.guilds.Add(id, g)
	return g
}

// Member returns a copy of the cached member.
func (s *State) Member(guildID, userID string) (model.Member, bool) {
	m, ok := s.members.Get(memberKey(guildID, userID))
	if !ok {
		return model.Member{}, false
	}
	return m.Clone(), true
}

func (s *State) PutMember(m model.Member) {
	if m.GuildID == "" || m.UserID() == "" {
		return
	}
	s.members.Add(memberKey(m.GuildID, m.UserID()), m.Clone())
}

func (s *State) RemoveMember(guildID, userID string) {
	s.members.Remove(memberKey(guildID, userID))
}

func (s *State) VoiceState(guildID, userID string) (model.VoiceState, bool) {
	return s.voice.Get(memberKey(guildID, userID))
}

// PutVoiceState records a connection; a disconnect removes the entry.
func (s *State) PutVoiceState(v model.VoiceState) {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()

	key := memberKey(v.GuildID, v.UserID)
	// Remove runs the eviction callback, which frees the previous channel slot.
	s.voice.Remove(key)
	if v.ChannelID == "" {
		return
	}
	s.voice.Add(key, v)
	s.adjustChannel(v.GuildID, v.ChannelID, 1)
}

// ChannelMembers counts users currently connected to a voice channel.
func (s *State) ChannelMembers(guildID, channelID string) int {
	if channelID == "" {
		return 0
	}
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.channelCounts[memberKey(guildID, channelID)]
}

func (s *State) adjustChannel(guildID, channelID string, delta int) {
	key := memberKey(guildID, channelID)
	s.countMu.Lock()
	defer s.countMu.Unlock()
	if n := s.channelCounts[key] + delta; n > 0 {
		s.channelCounts[key] = n
	} else {
		delete(s.channelCounts, key)
	}
}
