// Command handlers for the proof flow:
// !submit (proof link), !verify (moderator approve), !reject (moderator drop).
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
)

// Handler handles the task-proof commands.
type Handler struct {
	service *Service
	cfg     *config.Config
	session *discordgo.Session
}

// NewHandler creates the task command handler.
func NewHandler(service *Service, cfg *config.Config, session *discordgo.Session) *Handler {
	return &Handler{service: service, cfg: cfg, session: session}
}

// HandleSubmit handles !submit <tweet-url>.
func (h *Handler) HandleSubmit(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 1 {
		h.reply(channelID, "❌ Usage: `!submit <tweet link>`")
		return
	}

	sub, err := h.service.Submit(ctx, userID, args[0])
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidProofURL):
			h.reply(channelID, "❌ That doesn't look like a tweet link. Paste the full status URL.")
		case errors.Is(err, common.ErrPendingConflict):
			h.reply(channelID, "❌ You already have a submission waiting for review. One at a time.")
		case errors.Is(err, common.ErrDuplicateSubmission):
			h.reply(channelID, "❌ That tweet has already been submitted or rewarded.")
		default:
			log.WithError(err).Error("task submit failed")
			h.reply(channelID, "❌ Could not record your submission, try again later.")
		}
		return
	}

	h.reply(channelID, fmt.Sprintf("✅ <@%s> your proof is in the review queue.", userID))

	if h.cfg.ModTaskReviewChannelID != "" {
		h.reply(h.cfg.ModTaskReviewChannelID, fmt.Sprintf(
			"📋 New task proof from <@%s>\n%s\nApprove with `!verify @user <likes> <retweets> <comments>`",
			userID, sub.URL))
	}
}

// HandleVerify handles !verify @user <likes> <retweets> <comments>.
// Moderator only; the router gates on role before calling.
func (h *Handler) HandleVerify(ctx context.Context, channelID, guildID string, args []string) {
	if len(args) < 4 {
		h.reply(channelID, "❌ Usage: `!verify @user <likes> <retweets> <comments>`")
		return
	}
	targetID := common.ParseMention(args[0])
	if targetID == "" {
		h.reply(channelID, "❌ Mention the member whose proof you are verifying.")
		return
	}

	counts := make([]int, 3)
	for i, raw := range args[1:4] {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.reply(channelID, "❌ Engagement counts must be non-negative numbers.")
			return
		}
		counts[i] = n
	}

	res, err := h.service.Verify(ctx, targetID, Engagement{
		Likes:    counts[0],
		Retweets: counts[1],
		Comments: counts[2],
	}, h.multiplierFor(guildID, targetID))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			h.reply(channelID, "❌ No pending submission from that member.")
		case errors.Is(err, common.ErrDuplicateSubmission):
			h.reply(channelID, "❌ That proof was already rewarded.")
		case errors.Is(err, common.ErrInvalidAmount):
			h.reply(channelID, "❌ All counts are zero, nothing to reward. Use `!reject` instead.")
		case errors.Is(err, common.ErrInsufficientTreasury):
			h.reply(channelID, "⚠️ Treasury cannot cover this reward right now. Submission kept.")
		default:
			log.WithError(err).Error("task verify failed")
			h.reply(channelID, "❌ Verification failed, try again.")
		}
		return
	}

	h.reply(channelID, fmt.Sprintf("✅ Approved. <@%s> earned %s (x%.2g multiplier).",
		res.UserID, common.FormatPoints(res.Points), res.Multiplier))
}

// HandleReject handles !reject @user.
func (h *Handler) HandleReject(ctx context.Context, channelID string, args []string) {
	if len(args) < 1 {
		h.reply(channelID, "❌ Usage: `!reject @user`")
		return
	}
	targetID := common.ParseMention(args[0])
	if targetID == "" {
		h.reply(channelID, "❌ Mention the member whose proof you are rejecting.")
		return
	}

	if err := h.service.Reject(ctx, targetID); err != nil {
		h.reply(channelID, "❌ No pending submission from that member.")
		return
	}
	h.reply(channelID, fmt.Sprintf("🗑️ Submission from <@%s> rejected. They may submit again.", targetID))
}

// multiplierFor picks the highest configured role multiplier the member
// holds, 1 when none match.
func (h *Handler) multiplierFor(guildID, userID string) float64 {
	member, err := h.session.GuildMember(guildID, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("could not fetch member for multiplier")
		return 1
	}

	best := 1.0
	for _, roleID := range member.Roles {
		if m, ok := h.cfg.RoleMultipliers[roleID]; ok && m > best {
			best = m
		}
	}
	return best
}

func (h *Handler) reply(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}
