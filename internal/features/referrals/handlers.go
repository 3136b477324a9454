package referrals

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Handler handles the !ref command.
type Handler struct {
	service *Service
	session *discordgo.Session
}

// NewHandler creates the referral command handler.
func NewHandler(service *Service, session *discordgo.Session) *Handler {
	return &Handler{service: service, session: session}
}

// HandleInvite handles !invite. It hands the member their permanent
// referral link, minting one if needed.
func (h *Handler) HandleInvite(ctx context.Context, channelID, userID string) {
	url, _, err := h.service.PersonalInvite(ctx, channelID, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("personal invite failed")
		h.reply(channelID, "❌ Could not fetch your referral link, try again later.")
		return
	}
	h.reply(channelID, fmt.Sprintf(
		"🔗 Here is your personal referral link, <@%s>: `%s`\nShare it with friends to earn bonus points when they join!",
		userID, url))
}

// HandleReferrals handles !ref.
func (h *Handler) HandleReferrals(_ context.Context, channelID, userID string) {
	count, referredBy := h.service.ReferralStats(userID)

	text := fmt.Sprintf("🤝 <@%s> you have brought in **%d** verified member", userID, count)
	if count != 1 {
		text += "s"
	}
	text += "."
	if referredBy != "" {
		text += fmt.Sprintf("\nYou were referred by <@%s>.", referredBy)
	}
	h.reply(channelID, text)
}

func (h *Handler) reply(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}
