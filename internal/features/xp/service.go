// Package xp tracks chat activity experience: a small random XP drop per
// message and a weekly bonus for the three most active members. XP itself
// is not spendable; only the weekly bonus touches the points ledger.
package xp

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/store"
)

// Awarder is the slice of the ledger the weekly bonus needs.
type Awarder interface {
	Award(ctx context.Context, userID string, amount decimal.Decimal, purpose string) (*economy.AwardResult, error)
}

// UserXP is one member's experience counters.
type UserXP struct {
	Total  int `json:"total"`
	Weekly int `json:"weekly"`
}

// Winner is one weekly-bonus recipient.
type Winner struct {
	UserID string
	Weekly int
	Bonus  decimal.Decimal
}

// Service owns the XP counters.
type Service struct {
	mu     sync.Mutex
	store  store.Store
	ledger Awarder
	cfg    *config.Config
	users  map[string]*UserXP

	rng *rand.Rand
}

// NewService creates the XP service. Call Load before serving traffic.
func NewService(st store.Store, ledger Awarder, cfg *config.Config) *Service {
	return &Service{
		store:  st,
		ledger: ledger,
		cfg:    cfg,
		users:  make(map[string]*UserXP),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load restores XP counters from the store.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx, store.TableUserXP, &s.users)
}

// OnMessage grants the per-message XP drop and returns the amount.
func (s *Service) OnMessage(ctx context.Context, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	span := s.cfg.XPMaxPerMessage - s.cfg.XPMinPerMessage + 1
	gain := s.cfg.XPMinPerMessage + s.rng.Intn(span)

	u, ok := s.users[userID]
	if !ok {
		u = &UserXP{}
		s.users[userID] = u
	}
	u.Total += gain
	u.Weekly += gain

	s.persist(ctx)
	return gain
}

// Stats returns a member's XP counters and 1-based rank by total XP.
func (s *Service) Stats(userID string) (total, weekly, rank int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, 0, len(s.users) + 1
	}

	rank = 1
	for id, other := range s.users {
		if id == userID {
			continue
		}
		if other.Total > u.Total || (other.Total == u.Total && id < userID) {
			rank++
		}
	}
	return u.Total, u.Weekly, rank
}

// Top returns the most active members of the current week.
func (s *Service) Top(limit int) []Winner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topLocked(limit)
}

// WeeklyBonus pays the configured bonus to the top three members that
// cleared the weekly threshold, then resets every weekly counter. Run by
// the Monday cron. Members in the excluded set (staff) earn no bonus but
// still hold their leaderboard slot.
func (s *Service) WeeklyBonus(ctx context.Context, excluded map[string]bool) []Winner {
	s.mu.Lock()
	defer s.mu.Unlock()

	bonus := decimal.NewFromFloat(s.cfg.XPWeeklyBonus)
	var winners []Winner
	for _, w := range s.topLocked(3) {
		if w.Weekly < s.cfg.XPWeeklyThreshold || excluded[w.UserID] {
			continue
		}
		if _, err := s.ledger.Award(ctx, w.UserID, bonus, "weekly activity bonus"); err != nil {
			log.WithError(err).WithField("user_id", w.UserID).Warn("weekly XP bonus failed")
			continue
		}
		w.Bonus = bonus
		winners = append(winners, w)
	}

	for _, u := range s.users {
		u.Weekly = 0
	}
	s.persist(ctx)
	return winners
}

func (s *Service) topLocked(limit int) []Winner {
	all := make([]Winner, 0, len(s.users))
	for id, u := range s.users {
		if u.Weekly > 0 {
			all = append(all, Winner{UserID: id, Weekly: u.Weekly})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Weekly != all[j].Weekly {
			return all[i].Weekly > all[j].Weekly
		}
		return all[i].UserID < all[j].UserID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *Service) persist(ctx context.Context) {
	if err := s.store.Save(ctx, store.TableUserXP, s.users); err != nil {
		log.WithError(err).Error("failed to persist XP counters")
	}
}
