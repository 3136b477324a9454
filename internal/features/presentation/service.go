// Package presentation keeps the long-lived status messages fresh: the
// economy overview and the combined leaderboard. Each message is edited in
// place; its ID survives restarts in the bot_data table so the channels
// never fill up with stale copies.
package presentation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/admin"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/features/xp"
	"manaverse.gg/discord-bot/internal/store"
)

// Gateway is the slice of the Discord session the service needs.
type Gateway interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// BotData holds the IDs of the messages the service edits in place.
type BotData struct {
	LeaderboardMessageID   string `json:"leaderboard_message_id"`
	EconomyStatusMessageID string `json:"economy_status_message_id"`
}

// Service refreshes the pinned status messages.
type Service struct {
	mu      sync.Mutex
	store   store.Store
	gateway Gateway
	ledger  *economy.Ledger
	xp      *xp.Service
	cfg     *config.Config
	data    BotData
}

// NewService creates the presentation service. Call Load before serving.
func NewService(st store.Store, gateway Gateway, ledger *economy.Ledger, xpService *xp.Service, cfg *config.Config) *Service {
	return &Service{
		store:   st,
		gateway: gateway,
		ledger:  ledger,
		xp:      xpService,
		cfg:     cfg,
	}
}

// Load restores the stored message IDs.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx, store.TableBotData, &s.data)
}

// RefreshEconomyStatus updates the treasury overview message.
func (s *Service) RefreshEconomyStatus(ctx context.Context) {
	if s.cfg.EconomyStatusChannelID == "" {
		return
	}

	text := admin.FormatEconomyStatus(s.ledger.Snapshot())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.EconomyStatusMessageID = s.upsertMessage(
		ctx, s.cfg.EconomyStatusChannelID, s.data.EconomyStatusMessageID, text)
}

// RefreshLeaderboard updates the combined points/referral/XP ranking
// message.
func (s *Service) RefreshLeaderboard(ctx context.Context) {
	if s.cfg.LeaderboardChannelID == "" {
		return
	}

	text := s.renderLeaderboard()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LeaderboardMessageID = s.upsertMessage(
		ctx, s.cfg.LeaderboardChannelID, s.data.LeaderboardMessageID, text)
}

func (s *Service) renderLeaderboard() string {
	var b strings.Builder
	b.WriteString("🏆 **Leaderboards**\n\n")

	b.WriteString("**Points (all-time)**\n")
	points := s.ledger.Leaderboard(10)
	if len(points) == 0 {
		b.WriteString("Nobody has earned points yet.\n")
	}
	for i, e := range points {
		fmt.Fprintf(&b, "%d. <@%s> %s\n", i+1, e.UserID, common.FormatPoints(e.AllTimePoints))
	}

	b.WriteString("\n**Referrals**\n")
	refs := s.ledger.TopReferrers(5)
	if len(refs) == 0 {
		b.WriteString("No completed referrals yet.\n")
	}
	for i, r := range refs {
		fmt.Fprintf(&b, "%d. <@%s> %d invited\n", i+1, r.UserID, r.Count)
	}

	b.WriteString("\n**Weekly activity**\n")
	active := s.xp.Top(5)
	if len(active) == 0 {
		b.WriteString("Quiet week so far.\n")
	}
	for i, w := range active {
		fmt.Fprintf(&b, "%d. <@%s> %d XP\n", i+1, w.UserID, w.Weekly)
	}

	return strings.TrimRight(b.String(), "\n")
}

// upsertMessage edits the known message or sends a new one when there is
// nothing to edit (first run, or the message was deleted by hand). Returns
// the current message ID. Caller holds s.mu.
func (s *Service) upsertMessage(ctx context.Context, channelID, messageID, text string) string {
	if messageID != "" {
		_, err := s.gateway.ChannelMessageEdit(channelID, messageID, text)
		if err == nil {
			return messageID
		}
		log.WithError(err).WithFields(log.Fields{
			"channel_id": channelID,
			"message_id": messageID,
		}).Warn("status message edit failed, sending a new one")
	}

	msg, err := s.gateway.ChannelMessageSend(channelID, text)
	if err != nil {
		log.WithError(err).WithField("channel_id", channelID).Error("status message send failed")
		return messageID
	}

	if err := s.persistWith(ctx, msg.ID, channelID); err != nil {
		log.WithError(err).Error("failed to persist status message IDs")
	}
	return msg.ID
}

// persistWith stores the new message ID for whichever channel it belongs
// to before saving. Caller holds s.mu.
func (s *Service) persistWith(ctx context.Context, messageID, channelID string) error {
	switch channelID {
	case s.cfg.LeaderboardChannelID:
		s.data.LeaderboardMessageID = messageID
	case s.cfg.EconomyStatusChannelID:
		s.data.EconomyStatusMessageID = messageID
	}
	return s.store.Save(ctx, store.TableBotData, s.data)
}
