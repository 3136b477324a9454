package xp

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Handler handles the !xp command.
type Handler struct {
	service *Service
	session *discordgo.Session
}

// NewHandler creates the XP command handler.
func NewHandler(service *Service, session *discordgo.Session) *Handler {
	return &Handler{service: service, session: session}
}

// HandleXP handles !xp.
func (h *Handler) HandleXP(_ context.Context, channelID, userID string) {
	total, weekly, rank := h.service.Stats(userID)
	text := fmt.Sprintf("⚡ <@%s> XP: **%d** total, **%d** this week (rank #%d)",
		userID, total, weekly, rank)
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}
