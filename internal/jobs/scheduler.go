// Package jobs runs the background schedule: periodic ledger flushes,
// payout-request expiry, the weekly activity bonus and the status message
// refreshes.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/features/presentation"
	"manaverse.gg/discord-bot/internal/features/xp"
)

// Scheduler manages the background jobs.
type Scheduler struct {
	cron         *cron.Cron
	cfg          *config.Config
	ledger       *economy.Ledger
	xpService    *xp.Service
	presentation *presentation.Service

	// isStaff answers whether a member holds the admin or mod role;
	// staff never collect the weekly activity bonus.
	isStaff  func(userID string) bool
	sendFunc func(channelID, text string)
}

// NewScheduler creates the scheduler. All times are UTC, matching the
// daily reset semantics of check-ins and VIP post limits.
func NewScheduler(
	cfg *config.Config,
	ledger *economy.Ledger,
	xpService *xp.Service,
	pres *presentation.Service,
	isStaff func(userID string) bool,
	sendFunc func(channelID, text string),
) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(time.UTC)),
		cfg:          cfg,
		ledger:       ledger,
		xpService:    xpService,
		presentation: pres,
		isStaff:      isStaff,
		sendFunc:     sendFunc,
	}
}

// Start registers and starts all background jobs.
func (s *Scheduler) Start(ctx context.Context) {
	flushSpec := fmt.Sprintf("@every %ds", s.cfg.FlushIntervalSec)
	s.cron.AddFunc(flushSpec, func() {
		log.Debug("[CRON] ledger flush")
		if err := s.ledger.Flush(ctx); err != nil {
			log.WithError(err).Error("[CRON] ledger flush failed")
		}
	})

	// Unconfirmed payout requests lapse within a minute of their timeout.
	s.cron.AddFunc("* * * * *", func() {
		if n := s.ledger.ExpirePayouts(ctx); n > 0 {
			log.WithField("expired", n).Info("[CRON] expired payout requests pruned")
		}
	})

	// Weekly activity bonus, Monday midnight UTC.
	s.cron.AddFunc("0 0 * * 1", func() {
		log.Info("[CRON] weekly activity bonus")
		s.payWeeklyBonus(ctx)
	})

	s.cron.AddFunc("@every 10m", func() {
		s.presentation.RefreshEconomyStatus(ctx)
		s.presentation.RefreshLeaderboard(ctx)
	})

	s.cron.Start()
	log.WithField("flush", flushSpec).Info("scheduler started (UTC)")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}

func (s *Scheduler) payWeeklyBonus(ctx context.Context) {
	excluded := make(map[string]bool)
	for _, w := range s.xpService.Top(10) {
		if s.isStaff(w.UserID) {
			excluded[w.UserID] = true
		}
	}

	winners := s.xpService.WeeklyBonus(ctx, excluded)
	if len(winners) == 0 || s.cfg.AnnouncementChannelID == "" {
		return
	}

	var b strings.Builder
	b.WriteString("🎉 **Weekly activity bonus**\n")
	for i, w := range winners {
		fmt.Fprintf(&b, "%d. <@%s> (%d XP) +%s\n", i+1, w.UserID, w.Weekly, common.FormatPoints(w.Bonus))
	}
	s.sendFunc(s.cfg.AnnouncementChannelID, strings.TrimRight(b.String(), "\n"))
}
