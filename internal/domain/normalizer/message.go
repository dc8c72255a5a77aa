package normalizer

import (
	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

// MessageSent credits the author of a new message, once per message id.
func (n *Normalizer) MessageSent(msg *model.Message) event.Trackable {
	embedTypes := make([]string, 0, len(msg.Embeds))
	providers := make([]string, 0, len(msg.Embeds))
	for _, e := range msg.Embeds {
		embedTypes = append(embedTypes, e.Type)
		providers = append(providers, e.ProviderName)
	}

	isBot := msg.Author != nil && msg.Author.Bot

	return n.track(msg.AuthorID(), msg.ID, MessageSent, map[string]any{
		"isBot":               isBot,
		"isWebhook":           msg.WebhookID != "",
		"isSystem":            msg.IsSystem(),
		"type":                int(msg.Type),
		"typeName":            msg.Type.Name(),
		"channelId":           msg.ChannelID,
		"guildId":             msg.GuildID,
		"message":             msg.Content,
		"content":             msg.Content,
		"timestamp":           millis(msg.CreatedAt),
		"date":                eventDate(msg.CreatedAt),
		"embedsAmount":        len(msg.Embeds),
		"embedsTypes":         embedTypes,
		"embedsProviderNames": providers,
		"stickersAmount":      msg.Stickers,
		"attachmentsAmount":   msg.Attachments,
		"componentsAmount":    msg.Components,
		"original":            msg.Raw,
	})
}

// ReactionAdd fans one reaction out to two events: one crediting the reactor
// and one crediting the author of the reacted message. Both share the
// messageId::emojiKey dedupe key; the ledger distinguishes them by type.
func (n *Normalizer) ReactionAdd(msg *model.Message, reactor *model.User, emoji model.Emoji) []event.Trackable {
	key := msg.ID + dedupeSeparator + emoji.Key()

	base := func(role string) map[string]any {
		return map[string]any{
			"guildId":       msg.GuildID,
			"channelId":     msg.ChannelID,
			"messageId":     msg.ID,
			"emojiId":       emoji.ID,
			"emojiName":     emoji.Name,
			"emojiAnimated": emoji.Animated,
			"reactorId":     reactor.ID,
			"reactorIsBot":  reactor.Bot,
			"authorId":      msg.AuthorID(),
			"role":          role,
		}
	}

	return []event.Trackable{
		n.track(reactor.ID, key, MessageReactionAdd, base("reactor")),
		n.track(msg.AuthorID(), key, MessageReactionReceived, base("author")),
	}
}
