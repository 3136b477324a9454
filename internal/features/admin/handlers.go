// Staff command handlers:
// !login (DM), !logout, !award, !remove, !paid (settle payout), !status.
package admin

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
	"manaverse.gg/discord-bot/internal/features/economy"
)

// Handler handles the staff commands. The router gates these on the staff
// role; the handler additionally requires a logged-in session for anything
// that moves points.
type Handler struct {
	service *Service
	ledger  *economy.Ledger
	cfg     *config.Config
	session *discordgo.Session
}

// NewHandler creates the admin command handler.
func NewHandler(service *Service, ledger *economy.Ledger, cfg *config.Config, session *discordgo.Session) *Handler {
	return &Handler{service: service, ledger: ledger, cfg: cfg, session: session}
}

// HandleLogin handles !login <password>, DMs only.
func (h *Handler) HandleLogin(_ context.Context, channelID, userID string, args []string) {
	if len(args) < 1 {
		h.reply(channelID, "❌ Usage: `!login <password>` (here in DM only)")
		return
	}

	err := h.service.VerifyPassword(userID, strings.Join(args, " "))
	switch {
	case err == nil:
		h.reply(channelID, "🔓 Logged in for 24 hours.")
	case errors.Is(err, common.ErrTooManyAttempts):
		h.reply(channelID, "🚫 Too many attempts. Try again in an hour.")
	default:
		h.reply(channelID, "❌ Wrong password.")
	}
}

// HandleLogout handles !logout.
func (h *Handler) HandleLogout(_ context.Context, channelID, userID string) {
	h.service.Logout(userID)
	h.reply(channelID, "🔒 Logged out.")
}

// HandleAward handles !award @user <amount> [reason...].
func (h *Handler) HandleAward(ctx context.Context, channelID, adminID string, args []string) {
	if !h.requireSession(channelID, adminID) {
		return
	}
	if len(args) < 2 {
		h.reply(channelID, "❌ Usage: `!award @user <amount> [reason]`")
		return
	}
	targetID := common.ParseMention(args[0])
	amount, convErr := decimal.NewFromString(args[1])
	if targetID == "" || convErr != nil {
		h.reply(channelID, "❌ Usage: `!award @user <amount> [reason]`")
		return
	}
	purpose := "staff award"
	if len(args) > 2 {
		purpose = strings.Join(args[2:], " ")
	}

	res, err := h.ledger.Award(ctx, targetID, amount, purpose)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAmount):
			h.reply(channelID, "❌ Amount must be positive.")
		case errors.Is(err, common.ErrInsufficientTreasury):
			h.reply(channelID, "⚠️ The treasury cannot issue that much.")
		default:
			log.WithError(err).Error("staff award failed")
			h.reply(channelID, "❌ Award failed.")
		}
		return
	}
	h.reply(channelID, fmt.Sprintf("✅ <@%s> +%s (balance %s).",
		targetID, common.FormatPoints(res.Amount), common.FormatPoints(res.NewBalance)))
}

// HandleRemove handles !remove @user <amount> [reason...].
func (h *Handler) HandleRemove(ctx context.Context, channelID, adminID string, args []string) {
	if !h.requireSession(channelID, adminID) {
		return
	}
	if len(args) < 2 {
		h.reply(channelID, "❌ Usage: `!remove @user <amount> [reason]`")
		return
	}
	targetID := common.ParseMention(args[0])
	amount, convErr := decimal.NewFromString(args[1])
	if targetID == "" || convErr != nil {
		h.reply(channelID, "❌ Usage: `!remove @user <amount> [reason]`")
		return
	}
	purpose := "staff deduction"
	if len(args) > 2 {
		purpose = strings.Join(args[2:], " ")
	}

	res, err := h.ledger.Spend(ctx, targetID, amount, purpose)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAmount):
			h.reply(channelID, "❌ Amount must be positive.")
		case errors.Is(err, common.ErrInsufficientBalance):
			h.reply(channelID, "❌ The member doesn't have that much available.")
		default:
			log.WithError(err).Error("staff deduction failed")
			h.reply(channelID, "❌ Deduction failed.")
		}
		return
	}
	h.reply(channelID, fmt.Sprintf("✅ <@%s> %s (balance %s).",
		targetID, common.FormatPoints(res.Amount), common.FormatPoints(res.NewBalance)))
}

// HandlePaid handles !paid @user, marking an escrowed payout as sent.
func (h *Handler) HandlePaid(ctx context.Context, channelID, adminID string, args []string) {
	if !h.requireSession(channelID, adminID) {
		return
	}
	if len(args) < 1 {
		h.reply(channelID, "❌ Usage: `!paid @user`")
		return
	}
	targetID := common.ParseMention(args[0])
	if targetID == "" {
		h.reply(channelID, "❌ Mention the member whose payout you sent.")
		return
	}

	fin, err := h.ledger.FinalizePayout(ctx, targetID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			h.reply(channelID, "❌ No confirmed payout from that member.")
		case errors.Is(err, common.ErrInsufficientTreasury):
			h.reply(channelID, "🚨 Treasury cannot absorb this payout. The escrow is HELD; resolve the treasury first, the member's funds stay locked until then.")
		default:
			log.WithError(err).Error("payout finalize failed")
			h.reply(channelID, "❌ Could not finalize the payout.")
		}
		return
	}

	h.reply(channelID, fmt.Sprintf("✅ Payout settled: %s burned, %s fee to the treasury.",
		common.FormatPoints(fin.Amount), common.FormatPoints(fin.Fee)))
}

// HandleAnnounce handles !announce <title> | <message>, posting a server
// announcement to the announcement channel. Without a "|" the whole line
// is the message body.
func (h *Handler) HandleAnnounce(_ context.Context, channelID, adminID string, argLine string) {
	if !h.requireSession(channelID, adminID) {
		return
	}
	if h.cfg.AnnouncementChannelID == "" {
		h.reply(channelID, "❌ No announcement channel is configured.")
		return
	}

	text, ok := formatAnnouncement(argLine)
	if !ok {
		h.reply(channelID, "❌ Usage: `!announce <title> | <message>`")
		return
	}

	h.reply(h.cfg.AnnouncementChannelID, text)
	h.reply(channelID, "✅ Announcement posted.")
	log.WithField("admin_id", adminID).Info("announcement posted")
}

// formatAnnouncement renders "<title> | <message>" as the broadcast text.
// Without a "|" the whole line is the body under a stock title. An empty
// body makes the announcement invalid.
func formatAnnouncement(argLine string) (string, bool) {
	title := "Announcement"
	body := strings.TrimSpace(argLine)
	if i := strings.Index(argLine, "|"); i >= 0 {
		title = strings.TrimSpace(argLine[:i])
		body = strings.TrimSpace(argLine[i+1:])
	}
	if body == "" {
		return "", false
	}
	return fmt.Sprintf("📣 **%s**\n%s\n\n*Official Server Announcement*", title, body), true
}

// HandleStatus handles !status, the treasury overview.
func (h *Handler) HandleStatus(_ context.Context, channelID, adminID string) {
	if !h.requireSession(channelID, adminID) {
		return
	}
	h.reply(channelID, FormatEconomyStatus(h.ledger.Snapshot()))
}

// FormatEconomyStatus renders the treasury snapshot. Shared with the
// periodic status message job.
func FormatEconomyStatus(snap economy.TreasurySnapshot) string {
	var b strings.Builder
	b.WriteString("🏦 **Economy status**\n")
	fmt.Fprintf(&b, "Total supply: %s\n", common.FormatPoints(snap.TotalSupply))
	fmt.Fprintf(&b, "Treasury: %s\n", common.FormatPoints(snap.Balance))
	fmt.Fprintf(&b, "In circulation: %s\n", common.FormatPoints(snap.InCirculation))
	fmt.Fprintf(&b, "Burned: %s\n", common.FormatPoints(snap.Burned))
	fmt.Fprintf(&b, "Fees collected: %s\n", common.FormatPoints(snap.TreasuryFees))
	fmt.Fprintf(&b, "Staff pool: %s\n", common.FormatPoints(snap.AdminEarned))
	fmt.Fprintf(&b, "Accounts: %d · Transactions: %d", snap.Accounts, snap.Transactions)
	return b.String()
}

func (h *Handler) requireSession(channelID, userID string) bool {
	if h.service.HasActiveSession(userID) {
		return true
	}
	h.reply(channelID, "🔒 Log in first: DM me `!login <password>`.")
	return false
}

func (h *Handler) reply(channelID, text string) {
	if _, err := h.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}
