// Package filters decides which incoming messages the bot handles at all.
package filters

import (
	log "github.com/sirupsen/logrus"

	"github.com/bwmarrin/discordgo"
)

// ChannelFilter accepts messages from the home guild and direct messages.
// Everything else (other guilds the bot was dragged into, webhooks) is
// dropped before any handler runs.
type ChannelFilter struct {
	guildID string
}

func NewChannelFilter(guildID string) *ChannelFilter {
	return &ChannelFilter{guildID: guildID}
}

func (f *ChannelFilter) CheckAccess(m *discordgo.MessageCreate) bool {
	if m == nil || m.Author == nil {
		log.WithField("component", "ChannelFilter").Warn("nil message/author")
		return false
	}
	if m.Author.Bot {
		return false
	}
	if m.WebhookID != "" {
		return false
	}
	if f.guildID == "" {
		log.WithField("component", "ChannelFilter").Error("guildID is empty (config bug)")
		return false
	}

	// DMs have no guild ID. They are allowed through for the admin login.
	if m.GuildID == "" {
		return true
	}
	if m.GuildID == f.guildID {
		return true
	}

	log.WithFields(log.Fields{
		"component": "ChannelFilter",
		"guild_id":  m.GuildID,
		"user_id":   m.Author.ID,
	}).Debug("deny: foreign guild")
	return false
}
