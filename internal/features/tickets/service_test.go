package tickets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/store"
)

type fakeGateway struct {
	created int
	parents map[string]string // channelID -> category
}

func (f *fakeGateway) GuildChannelCreateComplex(_ string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.created++
	id := fmt.Sprintf("chan-%d", f.created)
	f.parents[id] = data.ParentID
	return &discordgo.Channel{ID: id, Name: data.Name}, nil
}

func (f *fakeGateway) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.parents[channelID] = data.ParentID
	return &discordgo.Channel{ID: channelID}, nil
}

func newTestService(t *testing.T) (*Service, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{parents: make(map[string]string)}
	cfg := &config.Config{
		TicketsCategoryID:         "cat-open",
		ArchivedTicketsCategoryID: "cat-archive",
		ModRoleID:                 "role-mod",
	}
	s := NewService(store.NewMemory(), gw, cfg)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, gw
}

func TestOpenOneTicketPerMember(t *testing.T) {
	s, gw := newTestService(t)
	ctx := context.Background()

	first, err := s.Open(ctx, "guild", "alice")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gw.parents[first.ChannelID] != "cat-open" {
		t.Errorf("ticket created under %q, want cat-open", gw.parents[first.ChannelID])
	}

	again, err := s.Open(ctx, "guild", "alice")
	if !errors.Is(err, common.ErrPendingConflict) {
		t.Fatalf("second open err = %v, want ErrPendingConflict", err)
	}
	if again.ChannelID != first.ChannelID {
		t.Errorf("conflict did not return the existing ticket")
	}
	if gw.created != 1 {
		t.Errorf("channels created = %d, want 1", gw.created)
	}
}

func TestCloseArchivesAndFreesSlot(t *testing.T) {
	s, gw := newTestService(t)
	ctx := context.Background()

	ticket, _ := s.Open(ctx, "guild", "alice")
	closed, err := s.Close(ctx, ticket.ChannelID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.UserID != "alice" {
		t.Errorf("closed ticket owner = %q, want alice", closed.UserID)
	}
	if gw.parents[ticket.ChannelID] != "cat-archive" {
		t.Errorf("channel moved to %q, want cat-archive", gw.parents[ticket.ChannelID])
	}
	if s.Active("alice") != nil {
		t.Error("slot not freed after close")
	}
	// A fresh ticket may now be opened.
	if _, err := s.Open(ctx, "guild", "alice"); err != nil {
		t.Errorf("reopen after close: %v", err)
	}
}

func TestCloseUnknownChannel(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.Close(context.Background(), "not-a-ticket"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTicketsSurviveReload(t *testing.T) {
	st := store.NewMemory()
	gw := &fakeGateway{parents: make(map[string]string)}
	cfg := &config.Config{TicketsCategoryID: "cat-open"}
	s := NewService(st, gw, cfg)
	s.Load(context.Background())
	ticket, _ := s.Open(context.Background(), "guild", "alice")

	s2 := NewService(st, gw, cfg)
	if err := s2.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s2.Active("alice"); got == nil || got.ChannelID != ticket.ChannelID {
		t.Error("open ticket lost across reload")
	}
}
