// Package tickets implements support tickets: one private channel per
// member at a time, created under the tickets category and moved to the
// archive category on close.
package tickets

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/store"
)

// Gateway is the slice of the Discord session the ticket service needs.
type Gateway interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Ticket is one open support channel.
type Ticket struct {
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Service owns the active-ticket registry.
type Service struct {
	mu      sync.Mutex
	store   store.Store
	gateway Gateway
	cfg     *config.Config
	active  map[string]*Ticket // userID -> open ticket

	now func() time.Time
}

// NewService creates the ticket service. Call Load before serving traffic.
func NewService(st store.Store, gateway Gateway, cfg *config.Config) *Service {
	return &Service{
		store:   st,
		gateway: gateway,
		cfg:     cfg,
		active:  make(map[string]*Ticket),
		now:     time.Now,
	}
}

// Load restores open tickets from the store.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx, store.TableActiveTickets, &s.active)
}

// Open creates a private ticket channel for the member. A member can hold
// only one open ticket; a second request returns the existing one with
// ErrPendingConflict.
func (s *Service) Open(ctx context.Context, guildID, userID string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.active[userID]; ok {
		cp := *t
		return &cp, common.ErrPendingConflict
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   guildID, // @everyone shares the guild ID
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		},
	}
	if s.cfg.ModRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    s.cfg.ModRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}

	ch, err := s.gateway.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 "ticket-" + userID,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             s.cfg.TicketsCategoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return nil, err
	}

	t := &Ticket{UserID: userID, ChannelID: ch.ID, OpenedAt: s.now()}
	s.active[userID] = t
	s.persist(ctx)

	cp := *t
	return &cp, nil
}

// Close archives a ticket channel and frees the member's slot. Accepts the
// channel ID so moderators can close from inside the ticket itself.
func (s *Service) Close(ctx context.Context, channelID string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *Ticket
	for _, t := range s.active {
		if t.ChannelID == channelID {
			found = t
			break
		}
	}
	if found == nil {
		return nil, common.ErrNotFound
	}

	if s.cfg.ArchivedTicketsCategoryID != "" {
		if _, err := s.gateway.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
			ParentID: s.cfg.ArchivedTicketsCategoryID,
		}); err != nil {
			return nil, err
		}
	}

	delete(s.active, found.UserID)
	s.persist(ctx)

	cp := *found
	return &cp, nil
}

// Active returns a member's open ticket, nil when none.
func (s *Service) Active(userID string) *Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.active[userID]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (s *Service) persist(ctx context.Context) {
	if err := s.store.Save(ctx, store.TableActiveTickets, s.active); err != nil {
		log.WithError(err).Error("failed to persist active tickets")
	}
}
