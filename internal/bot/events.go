package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/bot/middleware"
	"manaverse.gg/discord-bot/internal/common"
)

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	b.submit(func() { b.handleMessage(b.ctx, m) })
}

func (b *Bot) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	middleware.LogMessage(m)

	if !b.channelFilter.CheckAccess(m) {
		return
	}
	if !b.rateLimiter.Allow(m.Author.ID) {
		log.WithField("user_id", m.Author.ID).Debug("rate limited")
		return
	}

	// DMs only carry the admin login commands.
	if m.GuildID == "" {
		cmd, args, isCommand := b.parser.ParseCommand(m.Content)
		if !isCommand {
			return
		}
		switch cmd {
		case "login":
			b.adminHandler.HandleLogin(ctx, m.ChannelID, m.Author.ID, args)
		case "logout":
			b.adminHandler.HandleLogout(ctx, m.ChannelID, m.Author.ID)
		}
		return
	}

	roles := b.memberRoles(m.GuildID, m.Author.ID, m.Member)
	isAdmin := hasRole(roles, b.cfg.AdminRoleID)
	isMod := hasRole(roles, b.cfg.ModRoleID)
	isStaff := isAdmin || isMod

	if !isStaff {
		if word := b.moderationService.BannedWord(m.Content); word != "" {
			b.deleteMessage(m.ChannelID, m.ID)
			b.sendDM(m.Author.ID, "⚠️ Your message was removed: it contains a banned word.")
			log.WithFields(log.Fields{
				"user_id": m.Author.ID,
				"word":    word,
			}).Info("banned word removed")
			return
		}

		if b.cfg.EngagementChannelID != "" && m.ChannelID == b.cfg.EngagementChannelID &&
			hasRole(roles, b.cfg.VIPRoleID) {
			if _, err := b.moderationService.AllowVIPPost(ctx, m.Author.ID); errors.Is(err, common.ErrDailyLimitExceeded) {
				b.deleteMessage(m.ChannelID, m.ID)
				b.sendDM(m.Author.ID, "📅 You reached today's post limit in the engagement channel. It resets at midnight UTC.")
				return
			}
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(m.Content)
	if isCommand {
		b.routeCommand(ctx, m, cmd, args, isAdmin, isMod)
		return
	}

	if b.cfg.FeatureXPEnabled {
		b.xpService.OnMessage(ctx, m.Author.ID)
	}
}

// staff commands mirrored to the command log channel
var auditedCommands = map[string]struct{}{
	"award": {}, "remove": {}, "paid": {}, "status": {}, "announce": {},
	"verify": {}, "reject": {}, "questverify": {}, "postquests": {},
}

func (b *Bot) routeCommand(ctx context.Context, m *discordgo.MessageCreate, cmd string, args []string, isAdmin, isMod bool) {
	isStaff := isAdmin || isMod
	channelID := m.ChannelID
	userID := m.Author.ID

	log.WithFields(log.Fields{
		"cmd":     cmd,
		"args":    args,
		"user_id": userID,
	}).Debug("routing command")

	if _, audited := auditedCommands[cmd]; audited && b.cfg.CommandLogChannelID != "" {
		b.sendMessage(b.cfg.CommandLogChannelID,
			fmt.Sprintf("📋 <@%s> in <#%s>: `!%s %s`", userID, channelID, cmd, strings.Join(args, " ")))
	}

	switch cmd {
	case "help", "start":
		b.sendMessage(channelID, helpText(isStaff))

	case "points", "balance":
		b.economyHandler.HandleBalance(ctx, channelID, userID)

	case "transactions", "history":
		b.economyHandler.HandleHistory(ctx, channelID, userID)

	case "gm", "checkin":
		if !b.requireChannel(channelID, b.cfg.CheckInChannelID) {
			return
		}
		b.economyHandler.HandleCheckIn(ctx, channelID, userID, isAdmin)

	case "box":
		if !b.cfg.FeatureMysteryBoxEnabled {
			b.sendMessage(channelID, "📦 Mystery boxes are temporarily disabled.")
			return
		}
		if !b.requireChannel(channelID, b.cfg.MysteryBoxChannelID) {
			return
		}
		b.economyHandler.HandleMysteryBox(ctx, channelID, userID)

	case "payout":
		if !b.requireChannel(channelID, b.cfg.PayoutRequestChannelID) {
			return
		}
		b.economyHandler.HandlePayout(ctx, channelID, userID, args)

	case "confirm":
		if !b.requireChannel(channelID, b.cfg.PayoutRequestChannelID) {
			return
		}
		b.economyHandler.HandleConfirm(ctx, channelID, userID)

	case "top", "leaderboard":
		b.economyHandler.HandleLeaderboard(ctx, channelID)

	case "submit":
		if !b.requireChannel(channelID, b.cfg.TaskSubmitChannelID) {
			return
		}
		b.taskHandler.HandleSubmit(ctx, channelID, userID, args)

	case "verify":
		if isStaff {
			b.taskHandler.HandleVerify(ctx, channelID, m.GuildID, args)
		}

	case "reject":
		if isStaff {
			b.taskHandler.HandleReject(ctx, channelID, args)
		}

	case "quests":
		if b.cfg.FeatureQuestsEnabled {
			b.questHandler.HandleBoard(ctx, channelID, userID)
		}

	case "questsubmit":
		if !b.cfg.FeatureQuestsEnabled {
			return
		}
		if !b.requireChannel(channelID, b.cfg.QuestSubmitChannelID) {
			return
		}
		b.questHandler.HandleSubmit(ctx, channelID, userID, args)

	case "questverify":
		if b.cfg.FeatureQuestsEnabled && isStaff {
			b.questHandler.HandleVerify(ctx, channelID, args)
		}

	case "postquests":
		if b.cfg.FeatureQuestsEnabled && isStaff {
			b.questHandler.HandlePost(ctx, channelID, strings.Join(args, " "))
		}

	case "ref", "referrals":
		if !b.requireChannel(channelID, b.cfg.ReferralChannelID) {
			return
		}
		b.referralHandler.HandleReferrals(ctx, channelID, userID)

	case "invite":
		if !b.requireChannel(channelID, b.cfg.ReferralChannelID) {
			return
		}
		b.referralHandler.HandleInvite(ctx, channelID, userID)

	case "xp", "rank":
		if b.cfg.FeatureXPEnabled {
			b.xpHandler.HandleXP(ctx, channelID, userID)
		}

	case "ticket":
		if !b.cfg.FeatureTicketsEnabled {
			b.sendMessage(channelID, "🎫 Tickets are temporarily disabled.")
			return
		}
		if !b.requireChannel(channelID, b.cfg.SupportChannelID) {
			return
		}
		b.ticketHandler.HandleOpen(ctx, channelID, m.GuildID, userID)

	case "closeticket":
		if b.cfg.FeatureTicketsEnabled && isStaff {
			b.ticketHandler.HandleClose(ctx, channelID)
		}

	case "login":
		b.sendMessage(channelID, "🔒 DM me `!login <password>`, not here.")

	case "logout":
		b.adminHandler.HandleLogout(ctx, channelID, userID)

	case "award":
		if isStaff {
			b.adminHandler.HandleAward(ctx, channelID, userID, args)
		}

	case "remove":
		if isStaff {
			b.adminHandler.HandleRemove(ctx, channelID, userID, args)
		}

	case "paid":
		if isStaff {
			b.adminHandler.HandlePaid(ctx, channelID, userID, args)
		}

	case "status":
		if isStaff {
			b.adminHandler.HandleStatus(ctx, channelID, userID)
		}

	case "announce":
		if isAdmin {
			b.adminHandler.HandleAnnounce(ctx, channelID, userID, strings.Join(args, " "))
		}
	}
}

func (b *Bot) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	b.submit(func() { b.handleReaction(b.ctx, r) })
}

func (b *Bot) handleReaction(ctx context.Context, r *discordgo.MessageReactionAdd) {
	if r.GuildID != b.cfg.GuildID {
		return
	}

	// Reaction-role assignment on the verification message.
	if b.cfg.VerifyMessageID != "" && r.MessageID == b.cfg.VerifyMessageID {
		if b.cfg.VerifyChannelID != "" && r.ChannelID != b.cfg.VerifyChannelID {
			return
		}
		roleID, ok := b.moderationService.RoleForEmoji(r.Emoji.Name)
		if !ok {
			return
		}
		if err := b.session.GuildMemberRoleAdd(r.GuildID, r.UserID, roleID); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"user_id": r.UserID,
				"role_id": roleID,
			}).Error("reaction role assignment failed")
			return
		}
		if roleID == b.cfg.VerifiedRoleID {
			b.referralService.OnMemberVerified(ctx, r.UserID)
		}
		return
	}

	// Staff reward reaction: pays the message author.
	if r.Emoji.Name != b.cfg.ReactionEmoji {
		return
	}
	if !b.reactionChannelAllowed(r.ChannelID) {
		return
	}

	roles := b.memberRoles(r.GuildID, r.UserID, r.Member)
	if !hasRole(roles, b.cfg.AdminRoleID) && !hasRole(roles, b.cfg.ModRoleID) {
		return
	}

	msg, err := b.session.ChannelMessage(r.ChannelID, r.MessageID)
	if err != nil {
		log.WithError(err).WithField("message_id", r.MessageID).Warn("failed to fetch reacted message")
		return
	}
	if msg.Author == nil || msg.Author.Bot || msg.Author.ID == r.UserID {
		return
	}

	res, err := b.ledger.ReactionAward(ctx, r.MessageID, r.UserID, msg.Author.ID)
	if err != nil || res == nil {
		return
	}
	b.sendMessage(r.ChannelID, fmt.Sprintf("🌟 <@%s> earned %s for this message!",
		res.UserID, common.FormatPoints(res.Amount)))
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, g *discordgo.GuildMemberAdd) {
	if g.User == nil || g.User.Bot || g.GuildID != b.cfg.GuildID {
		return
	}
	b.submit(func() { b.referralService.OnMemberJoin(b.ctx, g.User.ID) })
}

func (b *Bot) onGuildMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.User == nil || m.GuildID != b.cfg.GuildID || b.cfg.VerifiedRoleID == "" {
		return
	}
	if !hasRole(m.Roles, b.cfg.VerifiedRoleID) {
		return
	}
	if m.BeforeUpdate != nil && hasRole(m.BeforeUpdate.Roles, b.cfg.VerifiedRoleID) {
		return // already verified before this update
	}
	b.submit(func() { b.referralService.OnMemberVerified(b.ctx, m.User.ID) })
}

func (b *Bot) onInviteCreate(_ *discordgo.Session, i *discordgo.InviteCreate) {
	if i.GuildID != b.cfg.GuildID {
		return
	}
	b.submit(func() { b.refreshInvites() })
}

func (b *Bot) onInviteDelete(_ *discordgo.Session, i *discordgo.InviteDelete) {
	if i.GuildID != b.cfg.GuildID {
		return
	}
	b.submit(func() { b.refreshInvites() })
}

func (b *Bot) refreshInvites() {
	if err := b.referralService.RefreshInvites(b.ctx); err != nil {
		log.WithError(err).Warn("invite snapshot refresh failed")
	}
}

// requireChannel ignores a command in the wrong channel and points the
// user to the right one. An unconfigured channel ID disables the gate.
func (b *Bot) requireChannel(actual, configured string) bool {
	if configured == "" || actual == configured {
		return true
	}
	b.sendMessage(actual, fmt.Sprintf("➡️ Use this command in <#%s>.", configured))
	return false
}

func (b *Bot) reactionChannelAllowed(channelID string) bool {
	if len(b.cfg.ReactionChannels) == 0 {
		return true
	}
	for _, id := range b.cfg.ReactionChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

// memberRoles returns the member's role IDs, fetching from the API when
// the gateway payload did not include the member object.
func (b *Bot) memberRoles(guildID, userID string, member *discordgo.Member) []string {
	if member != nil {
		return member.Roles
	}
	fetched, err := b.session.GuildMember(guildID, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("member fetch failed")
		return nil
	}
	return fetched.Roles
}

func hasRole(roles []string, roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, r := range roles {
		if r == roleID {
			return true
		}
	}
	return false
}

func (b *Bot) deleteMessage(channelID, messageID string) {
	if err := b.session.ChannelMessageDelete(channelID, messageID); err != nil {
		log.WithError(err).WithField("message_id", messageID).Warn("failed to delete message")
	}
}

func helpText(isStaff bool) string {
	var b strings.Builder
	b.WriteString("**Commands**\n")
	b.WriteString("`!points` balance · `!transactions` history · `!top` leaderboard\n")
	b.WriteString("`!gm` daily check-in · `!box` mystery box · `!xp` activity rank\n")
	b.WriteString("`!submit <tweet>` task proof · `!quests` board · `!questsubmit <n> <tweet>`\n")
	b.WriteString("`!payout <amount> <uid> <exchange>` then `!confirm`\n")
	b.WriteString("`!ref` referrals · `!invite` referral link · `!ticket` support ticket\n")
	if isStaff {
		b.WriteString("\n**Staff**: `!verify` `!reject` `!questverify` `!postquests` `!award` `!remove` `!paid` `!status` `!announce` `!closeticket` (login via DM)")
	}
	return b.String()
}
