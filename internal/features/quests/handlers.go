// Command handlers for the quest flow:
// !quests (show board), !questsubmit (proof), !questverify (moderator),
// !postquests (moderator, new week).
package quests

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
)

// Handler handles the quest commands.
type Handler struct {
	service *Service
	cfg     *config.Config
	session *discordgo.Session
}

// NewHandler creates the quest command handler.
func NewHandler(service *Service, cfg *config.Config, session *discordgo.Session) *Handler {
	return &Handler{service: service, cfg: cfg, session: session}
}

// HandleBoard handles !quests.
func (h *Handler) HandleBoard(_ context.Context, channelID, userID string) {
	board := h.service.Board()
	if board == nil {
		h.reply(channelID, "📭 No quests posted yet. Check back soon!")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗺️ **Week %d quests**\n", board.Week)
	for i, q := range board.Quests {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}

	status := map[string]string{StatusPending: "⏳", StatusApproved: "✅", StatusRejected: "❌"}
	subs := h.service.Submissions(userID)
	if len(subs) > 0 {
		b.WriteString("\nYour progress: ")
		for _, sub := range subs {
			fmt.Fprintf(&b, "%d%s ", sub.QuestNumber, status[sub.Status])
		}
	}
	b.WriteString("\nSubmit with `!questsubmit <number> <tweet link>`")
	h.reply(channelID, b.String())
}

// HandleSubmit handles !questsubmit <number> <tweet-url>.
func (h *Handler) HandleSubmit(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 2 {
		h.reply(channelID, "❌ Usage: `!questsubmit <number> <tweet link>`")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		h.reply(channelID, "❌ First argument must be the quest number (1-3).")
		return
	}

	sub, err := h.service.Submit(ctx, userID, n, args[1])
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNoActiveQuests):
			h.reply(channelID, "📭 No quests are live right now.")
		case errors.Is(err, common.ErrInvalidQuestNumber):
			h.reply(channelID, "❌ Quest number must be 1, 2 or 3.")
		case errors.Is(err, common.ErrInvalidProofURL):
			h.reply(channelID, "❌ That doesn't look like a tweet link.")
		case errors.Is(err, common.ErrAlreadyApproved):
			h.reply(channelID, "✅ That quest is already approved for you.")
		case errors.Is(err, common.ErrPendingConflict):
			h.reply(channelID, "⏳ Your proof for that quest is still in review.")
		case errors.Is(err, common.ErrDuplicateSubmission):
			h.reply(channelID, "❌ That tweet has already been used.")
		default:
			log.WithError(err).Error("quest submit failed")
			h.reply(channelID, "❌ Could not record your submission, try again later.")
		}
		return
	}

	h.reply(channelID, fmt.Sprintf("✅ <@%s> quest %d proof is in review.", userID, sub.QuestNumber))
	if h.cfg.ModQuestReviewChannelID != "" {
		h.reply(h.cfg.ModQuestReviewChannelID, fmt.Sprintf(
			"🗺️ Quest %d proof from <@%s> (week %d)\n%s\n`!questverify @user %d approve|reject`",
			sub.QuestNumber, userID, sub.Week, sub.URL, sub.QuestNumber))
	}
}

// HandleVerify handles !questverify @user <number> approve|reject.
func (h *Handler) HandleVerify(ctx context.Context, channelID string, args []string) {
	if len(args) < 3 {
		h.reply(channelID, "❌ Usage: `!questverify @user <number> approve|reject`")
		return
	}
	targetID := common.ParseMention(args[0])
	n, convErr := strconv.Atoi(args[1])
	verdict := strings.ToLower(args[2])
	if targetID == "" || convErr != nil || (verdict != "approve" && verdict != "reject") {
		h.reply(channelID, "❌ Usage: `!questverify @user <number> approve|reject`")
		return
	}

	res, err := h.service.Verify(ctx, targetID, n, verdict == "approve")
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			h.reply(channelID, "❌ No pending proof in that slot.")
		case errors.Is(err, common.ErrAlreadyApproved):
			h.reply(channelID, "✅ Already approved.")
		case errors.Is(err, common.ErrInsufficientTreasury):
			h.reply(channelID, "⚠️ Treasury cannot cover the reward right now. Submission kept.")
		default:
			log.WithError(err).Error("quest verify failed")
			h.reply(channelID, "❌ Verification failed, try again.")
		}
		return
	}

	if res == nil {
		h.reply(channelID, fmt.Sprintf("🗑️ Quest %d proof from <@%s> rejected. The slot is open again.", n, targetID))
		return
	}
	h.reply(channelID, fmt.Sprintf("✅ Quest %d approved. <@%s> earned %s.",
		n, targetID, common.FormatPoints(res.Amount)))
}

// HandlePost handles !postquests <q1> | <q2> | <q3> (moderator).
func (h *Handler) HandlePost(ctx context.Context, channelID string, argLine string) {
	parts := strings.Split(argLine, "|")
	quests := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			quests = append(quests, p)
		}
	}

	board, err := h.service.PostQuests(ctx, quests)
	if err != nil {
		h.reply(channelID, "❌ Usage: `!postquests quest one | quest two | quest three`")
		return
	}

	h.reply(channelID, fmt.Sprintf("📣 Week %d quests posted.", board.Week))
	if h.cfg.QuestBoardChannelID != "" {
		var b strings.Builder
		fmt.Fprintf(&b, "🗺️ **Week %d quests are live!** Each pays %s.\n", board.Week,
			common.FormatPoints(h.service.points))
		for i, q := range board.Quests {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
		b.WriteString("Submit with `!questsubmit <number> <tweet link>`")
		h.reply(h.cfg.QuestBoardChannelID, b.String())
	}
}

func (h *Handler) reply(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}
