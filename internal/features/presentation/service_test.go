package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/features/xp"
	"manaverse.gg/discord-bot/internal/store"
)

type sentMessage struct {
	channelID string
	text      string
}

type editedMessage struct {
	channelID string
	messageID string
	text      string
}

type fakeGateway struct {
	sends   []sentMessage
	edits   []editedMessage
	editErr error
	nextID  int
}

func (g *fakeGateway) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	g.nextID++
	g.sends = append(g.sends, sentMessage{channelID: channelID, text: content})
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", g.nextID)}, nil
}

func (g *fakeGateway) ChannelMessageEdit(channelID, messageID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if g.editErr != nil {
		err := g.editErr
		g.editErr = nil
		return nil, err
	}
	g.edits = append(g.edits, editedMessage{channelID: channelID, messageID: messageID, text: content})
	return &discordgo.Message{ID: messageID}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		LeaderboardChannelID:   "lb-chan",
		EconomyStatusChannelID: "status-chan",
		XPMinPerMessage:        5,
		XPMaxPerMessage:        15,
	}
}

func newTestService(t *testing.T, st store.Store, gw Gateway) *Service {
	t.Helper()
	cfg := testConfig()
	ledger := economy.New(st, economy.Params{TotalSupply: decimal.NewFromInt(10000)})
	if err := ledger.Load(context.Background()); err != nil {
		t.Fatalf("ledger load: %v", err)
	}
	ledger.Award(context.Background(), "alice", decimal.NewFromInt(300), "seed")
	ledger.Award(context.Background(), "bob", decimal.NewFromInt(100), "seed")

	xpService := xp.NewService(st, ledger, cfg)
	s := NewService(st, gw, ledger, xpService, cfg)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("presentation load: %v", err)
	}
	return s
}

func TestFirstRefreshSendsThenEdits(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestService(t, store.NewMemory(), gw)
	ctx := context.Background()

	s.RefreshLeaderboard(ctx)
	if len(gw.sends) != 1 || gw.sends[0].channelID != "lb-chan" {
		t.Fatalf("sends = %+v, want one to lb-chan", gw.sends)
	}
	if !strings.Contains(gw.sends[0].text, "alice") {
		t.Errorf("leaderboard text missing top earner: %q", gw.sends[0].text)
	}

	s.RefreshLeaderboard(ctx)
	if len(gw.sends) != 1 {
		t.Fatalf("second refresh sent a new message instead of editing")
	}
	if len(gw.edits) != 1 || gw.edits[0].messageID != "msg-1" {
		t.Fatalf("edits = %+v, want one edit of msg-1", gw.edits)
	}
}

func TestEconomyStatusMessage(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestService(t, store.NewMemory(), gw)
	ctx := context.Background()

	s.RefreshEconomyStatus(ctx)
	if len(gw.sends) != 1 || gw.sends[0].channelID != "status-chan" {
		t.Fatalf("sends = %+v, want one to status-chan", gw.sends)
	}
	if !strings.Contains(gw.sends[0].text, "In circulation") {
		t.Errorf("status text = %q", gw.sends[0].text)
	}
}

func TestDeletedMessageGetsReplaced(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestService(t, store.NewMemory(), gw)
	ctx := context.Background()

	s.RefreshLeaderboard(ctx)
	gw.editErr = errors.New("Unknown Message")
	s.RefreshLeaderboard(ctx)

	if len(gw.sends) != 2 {
		t.Fatalf("sends = %d, want a replacement after failed edit", len(gw.sends))
	}

	// Subsequent refreshes edit the replacement.
	s.RefreshLeaderboard(ctx)
	if len(gw.edits) != 1 || gw.edits[0].messageID != "msg-2" {
		t.Fatalf("edits = %+v, want one edit of msg-2", gw.edits)
	}
}

func TestMessageIDsSurviveReload(t *testing.T) {
	st := store.NewMemory()
	gw := &fakeGateway{}
	s := newTestService(t, st, gw)
	ctx := context.Background()

	s.RefreshLeaderboard(ctx)
	s.RefreshEconomyStatus(ctx)

	s2 := newTestService(t, st, gw)
	s2.RefreshLeaderboard(ctx)
	s2.RefreshEconomyStatus(ctx)

	if len(gw.sends) != 2 {
		t.Fatalf("sends = %d, reloaded service must edit the stored messages", len(gw.sends))
	}
	if len(gw.edits) != 2 {
		t.Fatalf("edits = %d, want both stored messages edited", len(gw.edits))
	}
}

func TestUnconfiguredChannelsSkipped(t *testing.T) {
	gw := &fakeGateway{}
	st := store.NewMemory()
	cfg := &config.Config{XPMinPerMessage: 5, XPMaxPerMessage: 15}
	ledger := economy.New(st, economy.Params{TotalSupply: decimal.NewFromInt(1000)})
	ledger.Load(context.Background())
	s := NewService(st, gw, ledger, xp.NewService(st, ledger, cfg), cfg)

	s.RefreshLeaderboard(context.Background())
	s.RefreshEconomyStatus(context.Background())
	if len(gw.sends) != 0 {
		t.Fatalf("sends = %+v, want none without configured channels", gw.sends)
	}
}
