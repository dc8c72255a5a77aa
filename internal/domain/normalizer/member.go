package normalizer

import (
	"time"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

// MemberAdd credits a user for joining a guild, once per user.
func (n *Normalizer) MemberAdd(guild model.Guild, m *model.Member) event.Trackable {
	return n.track(m.UserID(), m.UserID(), GuildMemberAdd, map[string]any{
		"guildId":          guild.ID,
		"joinedTimestamp":  millis(m.JoinedAt),
		"joinedDate":       eventDate(m.JoinedAt),
		"guildMemberCount": guild.MemberCount,
		"nickname":         m.Nick,
		"roles":            append([]string{}, m.Roles...),
		"original":         m.Raw,
	})
}

// MemberRemove records a user leaving a guild, once per user.
func (n *Normalizer) MemberRemove(guild model.Guild, m *model.Member, at time.Time) event.Trackable {
	return n.track(m.UserID(), m.UserID(), GuildMemberRemove, map[string]any{
		"guildId":          guild.ID,
		"joinedTimestamp":  millis(m.JoinedAt),
		"timestamp":        millis(at),
		"date":             eventDate(at),
		"guildMemberCount": guild.MemberCount,
		"roles":            append([]string{}, m.Roles...),
		"original":         m.Raw,
	})
}

// MemberUpdate derives role and boost transitions by diffing two snapshots of
// the same member. It yields nothing when neither changed.
func (n *Normalizer) MemberUpdate(guild model.Guild, old, cur *model.Member, at time.Time) []event.Trackable {
	var out []event.Trackable
	userID := cur.UserID()

	payload := func(extra map[string]any) map[string]any {
		p := map[string]any{
			"guildId":   guild.ID,
			"timestamp": millis(at),
			"date":      eventDate(at),
			"original":  cur.Raw,
		}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}

	added, removed := n.roleChanges(old.Roles, cur.Roles)
	for _, id := range added {
		out = append(out, n.track(userID, "", GuildMemberRoleAdd, payload(map[string]any{"roleId": id})))
	}
	for _, id := range removed {
		out = append(out, n.track(userID, "", GuildMemberRoleRemove, payload(map[string]any{"roleId": id})))
	}

	switch {
	case old.PremiumSince == nil && cur.PremiumSince != nil:
		out = append(out, n.track(userID, "", GuildMemberBoostStart, payload(map[string]any{
			"premiumSinceTimestamp": millis(*cur.PremiumSince),
		})))
	case old.PremiumSince != nil && cur.PremiumSince == nil:
		out = append(out, n.track(userID, "", GuildMemberBoostStop, payload(map[string]any{
			"premiumSinceTimestamp": millis(*old.PremiumSince),
		})))
	}

	return out
}

// roleChanges compares role collections. By default the collection sizes pick
// the direction and only the first differing role is reported, so an update
// that swaps roles without changing the count reports nothing.
func (n *Normalizer) roleChanges(old, cur []string) (added, removed []string) {
	if n.reportAllRoles {
		return difference(cur, old), difference(old, cur)
	}

	switch {
	case len(cur) > len(old):
		if diff := difference(cur, old); len(diff) > 0 {
			added = diff[:1]
		}
	case len(cur) < len(old):
		if diff := difference(old, cur); len(diff) > 0 {
			removed = diff[:1]
		}
	}
	return added, removed
}

// difference returns the elements of a missing from b, in a's order.
func difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
