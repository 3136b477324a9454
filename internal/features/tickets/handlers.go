package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
)

// Handler handles the !ticket and !closeticket commands.
type Handler struct {
	service *Service
	session *discordgo.Session
}

// NewHandler creates the ticket command handler.
func NewHandler(service *Service, session *discordgo.Session) *Handler {
	return &Handler{service: service, session: session}
}

// HandleOpen handles !ticket.
func (h *Handler) HandleOpen(ctx context.Context, channelID, guildID, userID string) {
	t, err := h.service.Open(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, common.ErrPendingConflict) {
			h.reply(channelID, fmt.Sprintf("❌ <@%s> you already have an open ticket: <#%s>", userID, t.ChannelID))
			return
		}
		log.WithError(err).Error("ticket open failed")
		h.reply(channelID, "❌ Could not open a ticket, try again later.")
		return
	}

	h.reply(channelID, fmt.Sprintf("🎫 <@%s> your ticket is ready: <#%s>", userID, t.ChannelID))
	h.reply(t.ChannelID, fmt.Sprintf(
		"👋 <@%s> describe your issue here. A moderator will close this with `!closeticket` when resolved.", userID))
}

// HandleClose handles !closeticket, run inside the ticket channel.
func (h *Handler) HandleClose(ctx context.Context, channelID string) {
	t, err := h.service.Close(ctx, channelID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			h.reply(channelID, "❌ This channel is not an open ticket.")
			return
		}
		log.WithError(err).Error("ticket close failed")
		h.reply(channelID, "❌ Could not close the ticket, try again.")
		return
	}
	h.reply(channelID, fmt.Sprintf("✅ Ticket for <@%s> closed and archived.", t.UserID))
}

func (h *Handler) reply(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}
