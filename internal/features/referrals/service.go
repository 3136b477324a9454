// Package referrals attributes new members to the invite that brought
// them in and pays the referral award once the member clears verification.
//
// Discord does not say which invite a joining member used, so the service
// keeps a use-count snapshot of every guild invite and diffs it on each
// join. The award waits for verification to keep throwaway accounts from
// farming referral points.
package referrals

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
)

// Gateway is the slice of the Discord session the service needs.
type Gateway interface {
	GuildInvites(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Invite, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	ChannelInviteCreate(channelID string, i discordgo.Invite, options ...discordgo.RequestOption) (*discordgo.Invite, error)
}

// LedgerAPI is the slice of the ledger the service needs.
type LedgerAPI interface {
	SetPendingReferral(ctx context.Context, refereeID, referrerID string)
	PendingReferrer(refereeID string) string
	Referrer(refereeID string) string
	ReferralCount(referrerID string) int
	ReferralAward(ctx context.Context, referrerID, refereeID string, referrerAmount, refereeAmount decimal.Decimal) (*economy.ReferralResult, error)
}

// Service owns the invite-use snapshot and the award tiering.
type Service struct {
	mu      sync.Mutex
	gateway Gateway
	ledger  LedgerAPI
	cfg     *config.Config
	uses    map[string]inviteSnapshot // invite code -> last seen state
}

type inviteSnapshot struct {
	uses      int
	inviterID string
}

// NewService creates the referral service.
func NewService(gateway Gateway, ledger LedgerAPI, cfg *config.Config) *Service {
	return &Service{
		gateway: gateway,
		ledger:  ledger,
		cfg:     cfg,
		uses:    make(map[string]inviteSnapshot),
	}
}

// RefreshInvites snapshots the current invite use counts. Call at startup
// and whenever an invite is created or deleted.
func (s *Service) RefreshInvites(_ context.Context) error {
	invites, err := s.gateway.GuildInvites(s.cfg.GuildID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make(map[string]inviteSnapshot, len(invites))
	for _, inv := range invites {
		if inv.Inviter == nil {
			continue
		}
		inviterID := inv.Inviter.ID
		// Invites minted through PersonalInvite list the bot as the
		// inviter; the earlier attribution to the member wins.
		if prev, ok := s.uses[inv.Code]; ok {
			inviterID = prev.inviterID
		}
		fresh[inv.Code] = inviteSnapshot{uses: inv.Uses, inviterID: inviterID}
	}
	s.uses = fresh
	return nil
}

// OnMemberJoin diffs invite uses to find which invite the member used and
// records the pending referral. Ambiguous diffs (several invites moved, or
// none did, which happens with vanity URLs) record nothing.
func (s *Service) OnMemberJoin(ctx context.Context, userID string) {
	invites, err := s.gateway.GuildInvites(s.cfg.GuildID)
	if err != nil {
		log.WithError(err).Warn("invite fetch failed on member join, referral not attributed")
		return
	}

	s.mu.Lock()
	var referrerID string
	bumped := 0
	for _, inv := range invites {
		if inv.Inviter == nil {
			continue
		}
		inviterID := inv.Inviter.ID
		prev, known := s.uses[inv.Code]
		if known {
			inviterID = prev.inviterID
		}
		if inv.Uses > prev.uses {
			bumped++
			referrerID = inviterID
		}
		s.uses[inv.Code] = inviteSnapshot{uses: inv.Uses, inviterID: inviterID}
	}
	s.mu.Unlock()

	if bumped != 1 || referrerID == "" || referrerID == userID {
		if bumped > 1 {
			log.WithField("user_id", userID).Warn("several invites moved at once, referral skipped")
		}
		return
	}

	s.ledger.SetPendingReferral(ctx, userID, referrerID)
	log.WithFields(log.Fields{
		"referee":  userID,
		"referrer": referrerID,
	}).Info("pending referral recorded")
}

// OnMemberVerified completes the referral once the member holds the
// verified role: picks the referrer's tier from their roles and pays both
// sides atomically. A referrer on the staff earns nothing, but the new
// member still gets the welcome share.
func (s *Service) OnMemberVerified(ctx context.Context, refereeID string) {
	referrerID := s.ledger.PendingReferrer(refereeID)
	if referrerID == "" {
		return
	}

	referrerAmount, refereeAmount := s.tierAmounts(referrerID)

	res, err := s.ledger.ReferralAward(ctx, referrerID, refereeID, referrerAmount, refereeAmount)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"referee":  refereeID,
			"referrer": referrerID,
		}).Warn("referral award failed")
		return
	}
	log.WithFields(log.Fields{
		"referee":         res.RefereeID,
		"referrer":        res.ReferrerID,
		"referrer_amount": res.ReferrerAmount.String(),
		"referee_amount":  res.RefereeAmount.String(),
	}).Info("referral completed")
}

// ReferralStats returns a member's completed referral count and who
// referred them (empty when organic).
func (s *Service) ReferralStats(userID string) (count int, referredBy string) {
	return s.ledger.ReferralCount(userID), s.ledger.Referrer(userID)
}

// PersonalInvite returns the member's permanent referral link, creating a
// new unlimited invite in channelID when they do not have one yet. The
// created flag tells the caller whether a fresh invite was minted.
func (s *Service) PersonalInvite(_ context.Context, channelID, userID string) (url string, created bool, err error) {
	invites, err := s.gateway.GuildInvites(s.cfg.GuildID)
	if err != nil {
		return "", false, err
	}
	// Invites the bot mints on a member's behalf list the bot as the
	// inviter, so the snapshot's code-to-member mapping is checked too.
	s.mu.Lock()
	for _, inv := range invites {
		direct := inv.Inviter != nil && inv.Inviter.ID == userID
		tracked := s.uses[inv.Code].inviterID == userID
		if inv.MaxUses == 0 && (direct || tracked) {
			s.mu.Unlock()
			return "https://discord.gg/" + inv.Code, false, nil
		}
	}
	s.mu.Unlock()

	inv, err := s.gateway.ChannelInviteCreate(channelID, discordgo.Invite{MaxAge: 0, MaxUses: 0})
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	s.uses[inv.Code] = inviteSnapshot{uses: 0, inviterID: userID}
	s.mu.Unlock()

	log.WithFields(log.Fields{"user_id": userID, "code": inv.Code}).Info("referral invite created")
	return "https://discord.gg/" + inv.Code, true, nil
}

// tierAmounts resolves the award pair from the referrer's roles: the
// highest configured referrer tier wins, with the "default" row as
// fallback. Staff referrers are forced to zero on their own share.
func (s *Service) tierAmounts(referrerID string) (decimal.Decimal, decimal.Decimal) {
	referrerPts := s.cfg.ReferrerPointsPerRole["default"]
	refereePts := s.cfg.RefereePointsPerRole["default"]

	member, err := s.gateway.GuildMember(s.cfg.GuildID, referrerID)
	if err != nil {
		log.WithError(err).WithField("user_id", referrerID).Warn("referrer lookup failed, using default tier")
		return decimal.NewFromFloat(referrerPts), decimal.NewFromFloat(refereePts)
	}

	staff := false
	for _, roleID := range member.Roles {
		if roleID == s.cfg.AdminRoleID || roleID == s.cfg.ModRoleID {
			staff = true
		}
		if pts, ok := s.cfg.ReferrerPointsPerRole[roleID]; ok && pts > referrerPts {
			referrerPts = pts
		}
		if pts, ok := s.cfg.RefereePointsPerRole[roleID]; ok && pts > refereePts {
			refereePts = pts
		}
	}
	if staff {
		referrerPts = 0
	}
	return decimal.NewFromFloat(referrerPts), decimal.NewFromFloat(refereePts)
}
