// Member-facing command handlers:
// !points (balance), !transactions (history), !gm (check-in), !box
// (mystery box), !payout / !confirm (withdrawal flow), !top (leaderboard).
package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
)

// Handler handles the economy commands.
type Handler struct {
	ledger  *Ledger
	cfg     *config.Config
	session *discordgo.Session
	usdRate decimal.Decimal
}

// NewHandler creates the economy command handler.
func NewHandler(ledger *Ledger, cfg *config.Config, session *discordgo.Session) *Handler {
	return &Handler{
		ledger:  ledger,
		cfg:     cfg,
		session: session,
		usdRate: decimal.NewFromFloat(cfg.PointsToUSD),
	}
}

// HandleBalance handles !points.
func (h *Handler) HandleBalance(_ context.Context, channelID, userID string) {
	available := h.ledger.Balance(userID)
	allTime := h.ledger.AllTimePoints(userID)
	rank, total := h.ledger.Rank(userID)

	h.reply(channelID, fmt.Sprintf(
		"💰 <@%s>\nAvailable: **%s** (~%s)\nAll-time: **%s**\nRank: **#%d** of %d",
		userID,
		common.FormatPoints(available), common.FormatUSD(available, h.usdRate),
		common.FormatPoints(allTime), rank, total))
}

// HandleHistory handles !transactions.
func (h *Handler) HandleHistory(_ context.Context, channelID, userID string) {
	hist := h.ledger.History(userID, 10)
	if len(hist) == 0 {
		h.reply(channelID, fmt.Sprintf("📒 <@%s> no transactions yet.", userID))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📒 <@%s> last %d transactions:\n", userID, len(hist))
	for _, tx := range hist {
		sign := "+"
		if tx.Amount.IsNegative() {
			sign = ""
		}
		fmt.Fprintf(&b, "`%s` %s%s — %s\n",
			common.FormatDateTime(tx.Timestamp), sign, tx.Amount.StringFixed(2), tx.Purpose)
	}
	h.reply(channelID, b.String())
}

// HandleCheckIn handles !gm. The router resolves isAdmin from the caller's
// roles before delegating here.
func (h *Handler) HandleCheckIn(ctx context.Context, channelID, userID string, isAdmin bool) {
	res, err := h.ledger.CheckIn(ctx, userID, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyCheckedIn):
			h.reply(channelID, fmt.Sprintf("🌞 <@%s> already checked in today. See you tomorrow!", userID))
		case errors.Is(err, common.ErrInsufficientTreasury):
			h.reply(channelID, "⚠️ The treasury is empty, check-ins are paused.")
		default:
			log.WithError(err).Error("check-in failed")
			h.reply(channelID, "❌ Check-in failed, try again.")
		}
		return
	}

	if res.AdminBooked {
		h.reply(channelID, fmt.Sprintf("🌞 GM <@%s>! %s booked to the staff pool.",
			userID, common.FormatPoints(res.Amount)))
		return
	}
	h.reply(channelID, fmt.Sprintf("🌞 GM <@%s>! +%s — balance %s.",
		userID, common.FormatPoints(res.Amount), common.FormatPoints(res.NewBalance)))
}

// HandleMysteryBox handles !box.
func (h *Handler) HandleMysteryBox(ctx context.Context, channelID, userID string) {
	res, err := h.ledger.OpenMysteryBox(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDailyLimitExceeded):
			wait := h.ledger.NextBoxAvailable(userID)
			h.reply(channelID, fmt.Sprintf("📦 <@%s> no boxes left. Next one in %s.",
				userID, common.FormatWait(wait)))
		case errors.Is(err, common.ErrInsufficientBalance):
			h.reply(channelID, fmt.Sprintf("❌ <@%s> a box costs %s and you don't have it.",
				userID, common.FormatPoints(h.ledger.params.BoxCost)))
		default:
			log.WithError(err).Error("mystery box failed")
			h.reply(channelID, "❌ The box jammed, try again.")
		}
		return
	}

	net := res.Reward.Sub(res.Cost)
	var verdict string
	switch {
	case res.Capped:
		verdict = "the vault ran dry, you get your stake back"
	case net.IsPositive():
		verdict = fmt.Sprintf("**+%s** profit!", net.StringFixed(2))
	case net.IsZero():
		verdict = "broke even"
	default:
		verdict = fmt.Sprintf("%s this time", net.StringFixed(2))
	}
	h.reply(channelID, fmt.Sprintf("📦 <@%s> opened a box: %s inside — %s\nBalance: %s",
		userID, common.FormatPoints(res.Reward), verdict, common.FormatPoints(res.NewBalance)))
}

// HandlePayout handles !payout <amount> <uid> <exchange>.
func (h *Handler) HandlePayout(ctx context.Context, channelID, userID string, args []string) {
	if len(args) < 3 {
		h.reply(channelID, fmt.Sprintf("❌ Usage: `!payout <amount> <exchange UID> <%s>`",
			strings.Join(h.ledger.params.ApprovedExchanges, "|")))
		return
	}
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		h.reply(channelID, "❌ Amount must be a number.")
		return
	}

	quote, err := h.ledger.RequestPayout(ctx, userID, amount, args[1], args[2])
	if err != nil {
		switch {
		case errors.Is(err, common.ErrPayoutTooSmall):
			h.reply(channelID, fmt.Sprintf("❌ Minimum payout is %s.",
				common.FormatPoints(h.ledger.params.MinPayout)))
		case errors.Is(err, common.ErrUnknownExchange):
			h.reply(channelID, fmt.Sprintf("❌ Supported exchanges: %s.",
				strings.Join(h.ledger.params.ApprovedExchanges, ", ")))
		case errors.Is(err, common.ErrInvalidDestination):
			h.reply(channelID, "❌ The exchange UID must be numeric.")
		case errors.Is(err, common.ErrInsufficientBalance):
			h.reply(channelID, "❌ Your balance cannot cover the amount plus the fee.")
		case errors.Is(err, common.ErrPendingConflict):
			h.reply(channelID, "⏳ You already have a payout in progress.")
		default:
			log.WithError(err).Error("payout request failed")
			h.reply(channelID, "❌ Payout request failed, try again.")
		}
		return
	}

	h.reply(channelID, fmt.Sprintf(
		"💸 <@%s> payout quote:\nAmount: %s (~%s)\nFee: %s\nTotal deduction: **%s**\nDestination: %s UID `%s`\nType `!confirm` within **%d seconds**.",
		userID,
		common.FormatPoints(quote.Amount), common.FormatUSD(quote.Amount, h.usdRate),
		common.FormatPoints(quote.Fee), common.FormatPoints(quote.TotalDeduction),
		quote.Exchange, quote.UID, int(quote.ConfirmWithin.Seconds())))
}

// HandleConfirm handles !confirm.
func (h *Handler) HandleConfirm(ctx context.Context, channelID, userID string) {
	conf, err := h.ledger.ConfirmPayout(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			h.reply(channelID, "❌ Nothing to confirm. Start with `!payout`.")
		case errors.Is(err, common.ErrRequestExpired):
			h.reply(channelID, "⌛ Your quote expired. Request a new one with `!payout`.")
		case errors.Is(err, common.ErrPendingConflict):
			h.reply(channelID, "⏳ Already confirmed; a moderator will process it.")
		case errors.Is(err, common.ErrInsufficientBalance):
			h.reply(channelID, "❌ Your balance dropped below the quoted total. Request a new quote.")
		default:
			log.WithError(err).Error("payout confirm failed")
			h.reply(channelID, "❌ Confirmation failed, try again.")
		}
		return
	}

	h.reply(channelID, fmt.Sprintf(
		"✅ <@%s> payout confirmed. %s deducted, balance %s. A moderator will send the funds.",
		userID, common.FormatPoints(conf.TotalDeduction), common.FormatPoints(conf.NewBalance)))

	if h.cfg.ModPaymentReviewChannelID != "" {
		h.reply(h.cfg.ModPaymentReviewChannelID, fmt.Sprintf(
			"💸 Payout ready: <@%s> — %s (~%s) to %s UID `%s`. Mark sent with `!paid @user`.",
			userID, common.FormatPoints(conf.Amount), common.FormatUSD(conf.Amount, h.usdRate),
			conf.Exchange, conf.UID))
	}
}

// HandleLeaderboard handles !top.
func (h *Handler) HandleLeaderboard(_ context.Context, channelID string) {
	top := h.ledger.Leaderboard(10)
	if len(top) == 0 {
		h.reply(channelID, "🏆 Nobody has earned anything yet.")
		return
	}

	medals := []string{"🥇", "🥈", "🥉"}
	var b strings.Builder
	b.WriteString("🏆 **All-time leaderboard**\n")
	for i, e := range top {
		tag := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			tag = medals[i]
		}
		fmt.Fprintf(&b, "%s <@%s> — %s\n", tag, e.UserID, common.FormatPoints(e.AllTimePoints))
	}
	h.reply(channelID, b.String())
}

func (h *Handler) reply(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}
