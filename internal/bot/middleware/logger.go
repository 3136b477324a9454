// Package middleware holds the cross-cutting handlers: incoming message
// logging, panic recovery and per-user rate limiting.
package middleware

import (
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
)

// LogMessage logs an incoming message: user, channel, the first 50
// characters of the content.
func LogMessage(m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":    m.Author.ID,
		"channel_id": m.ChannelID,
		"username":   m.Author.Username,
		"text":       common.TruncateText(m.Content, 50),
		"time":       time.Now().Format("15:04:05"),
	}).Debug("incoming message")
}
