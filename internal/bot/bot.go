// Package bot is the Discord-facing shell: it owns the gateway session,
// filters and rate-limits incoming events, and routes commands to the
// feature handlers. bot.go holds the wiring and lifecycle; events.go holds
// the gateway event handlers and the command router.
package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/bot/filters"
	"manaverse.gg/discord-bot/internal/bot/middleware"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/admin"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/features/moderation"
	"manaverse.gg/discord-bot/internal/features/quests"
	"manaverse.gg/discord-bot/internal/features/referrals"
	"manaverse.gg/discord-bot/internal/features/tasks"
	"manaverse.gg/discord-bot/internal/features/tickets"
	"manaverse.gg/discord-bot/internal/features/xp"
)

const maxInflight = 64

// Bot ties the session, the filters and every feature handler together.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config

	channelFilter *filters.ChannelFilter
	rateLimiter   *middleware.RateLimiter

	ledger            *economy.Ledger
	moderationService *moderation.Service
	referralService   *referrals.Service
	xpService         *xp.Service
	adminService      *admin.Service

	economyHandler  *economy.Handler
	taskHandler     *tasks.Handler
	questHandler    *quests.Handler
	referralHandler *referrals.Handler
	xpHandler       *xp.Handler
	ticketHandler   *tickets.Handler
	adminHandler    *admin.Handler

	parser *CommandParser

	// bounds the number of concurrently handled gateway events
	inflight chan struct{}

	ctx context.Context
}

// New creates the bot with all its dependencies.
func New(
	session *discordgo.Session,
	cfg *config.Config,
	ledger *economy.Ledger,
	moderationService *moderation.Service,
	referralService *referrals.Service,
	xpService *xp.Service,
	adminService *admin.Service,
	economyHandler *economy.Handler,
	taskHandler *tasks.Handler,
	questHandler *quests.Handler,
	referralHandler *referrals.Handler,
	xpHandler *xp.Handler,
	ticketHandler *tickets.Handler,
	adminHandler *admin.Handler,
) *Bot {
	return &Bot{
		session:           session,
		cfg:               cfg,
		channelFilter:     filters.NewChannelFilter(cfg.GuildID),
		rateLimiter:       middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		ledger:            ledger,
		moderationService: moderationService,
		referralService:   referralService,
		xpService:         xpService,
		adminService:      adminService,
		economyHandler:    economyHandler,
		taskHandler:       taskHandler,
		questHandler:      questHandler,
		referralHandler:   referralHandler,
		xpHandler:         xpHandler,
		ticketHandler:     ticketHandler,
		adminHandler:      adminHandler,
		parser:            NewCommandParser(),
		inflight:          make(chan struct{}, maxInflight),
	}
}

// Start opens the gateway connection and blocks until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	b.session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentGuildInvites |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberUpdate)
	b.session.AddHandler(b.onInviteCreate)
	b.session.AddHandler(b.onInviteDelete)

	if err := b.session.Open(); err != nil {
		return err
	}

	// Baseline invite snapshot, joins before this are unattributable.
	if err := b.referralService.RefreshInvites(ctx); err != nil {
		log.WithError(err).Warn("initial invite snapshot failed")
	}

	log.WithFields(log.Fields{
		"guild_id":     b.cfg.GuildID,
		"max_inflight": maxInflight,
	}).Info("bot connected, waiting for events...")

	<-ctx.Done()
	log.Info("bot stopping (ctx done)...")

	b.rateLimiter.Close()
	return b.session.Close()
}

// submit runs fn on a goroutine, bounded by the inflight channel and
// protected by panic recovery.
func (b *Bot) submit(fn func()) {
	b.inflight <- struct{}{}
	go func() {
		defer func() { <-b.inflight }()
		defer middleware.RecoverFromPanic()
		fn()
	}()
}

// sendMessage is the plain-text send utility.
func (b *Bot) sendMessage(channelID, text string) {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("failed to send message")
	}
}

// SendMessage sends a plain-text message (used by the scheduler for
// announcements).
func (b *Bot) SendMessage(channelID, text string) {
	b.sendMessage(channelID, text)
}

// sendDM opens (or reuses) the DM channel to a user and sends text there.
func (b *Bot) sendDM(userID, text string) {
	ch, err := b.session.UserChannelCreate(userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("failed to open DM channel")
		return
	}
	if _, err := b.session.ChannelMessageSend(ch.ID, text); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("failed to DM user")
	}
}

// CommandParser parses prefixed commands. Both ! and / are accepted.
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser creates the command parser.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", "/"},
	}
}

// ParseCommand splits a message into command and arguments.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	text = strings.TrimSpace(text)
	parts := strings.Fields(text)

	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
