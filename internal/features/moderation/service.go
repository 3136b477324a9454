// Package moderation covers the guard-rail features: the banned-word
// filter, the per-day post limit in the engagement channel and the
// emoji-to-role verification map.
package moderation

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/store"
)

// VIPCounter tracks one member's posts in the engagement channel today.
type VIPCounter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Service owns the moderation state.
type Service struct {
	mu       sync.Mutex
	store    store.Store
	cfg      *config.Config
	banned   []string
	vipPosts map[string]*VIPCounter

	now func() time.Time
}

// NewService creates the moderation service. Call Load before serving
// traffic.
func NewService(st store.Store, cfg *config.Config) *Service {
	banned := make([]string, 0, len(cfg.BannedWords))
	for _, w := range cfg.BannedWords {
		banned = append(banned, strings.ToLower(w))
	}
	return &Service{
		store:    st,
		cfg:      cfg,
		banned:   banned,
		vipPosts: make(map[string]*VIPCounter),
		now:      time.Now,
	}
}

// Load restores the VIP post counters from the store.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx, store.TableVIPPosts, &s.vipPosts)
}

// BannedWord returns the first banned word found in the text, "" if clean.
// Matching is case-insensitive on whole words, so "class" does not trip on
// "ass".
func (s *Service) BannedWord(text string) string {
	if len(s.banned) == 0 {
		return ""
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, w := range words {
		for _, b := range s.banned {
			if w == b {
				return b
			}
		}
	}
	return ""
}

// AllowVIPPost counts a post in the engagement channel against the daily
// limit. Returns the remaining allowance, or ErrDailyLimitExceeded once
// the member is over it. The counter resets on UTC date change.
func (s *Service) AllowVIPPost(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := common.DateKey(s.now())
	c, ok := s.vipPosts[userID]
	if !ok || c.Date != today {
		c = &VIPCounter{Date: today}
		s.vipPosts[userID] = c
	}

	if c.Count >= s.cfg.VIPDailyPostLimit {
		return 0, common.ErrDailyLimitExceeded
	}
	c.Count++
	s.persist(ctx)
	return s.cfg.VIPDailyPostLimit - c.Count, nil
}

// RoleForEmoji maps a verification-message reaction to the role it grants.
func (s *Service) RoleForEmoji(emoji string) (string, bool) {
	roleID, ok := s.cfg.ReactionRoles[emoji]
	return roleID, ok
}

func (s *Service) persist(ctx context.Context) {
	if err := s.store.Save(ctx, store.TableVIPPosts, s.vipPosts); err != nil {
		log.WithError(err).Error("failed to persist VIP post counters")
	}
}
