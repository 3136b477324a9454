package referrals

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
)

type fakeGateway struct {
	invites []*discordgo.Invite
	members map[string]*discordgo.Member
	minted  int
}

func (f *fakeGateway) GuildInvites(string, ...discordgo.RequestOption) ([]*discordgo.Invite, error) {
	return f.invites, nil
}

func (f *fakeGateway) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return &discordgo.Member{}, nil
}

func (f *fakeGateway) ChannelInviteCreate(string, discordgo.Invite, ...discordgo.RequestOption) (*discordgo.Invite, error) {
	f.minted++
	inv := &discordgo.Invite{
		Code:    fmt.Sprintf("minted%d", f.minted),
		Inviter: &discordgo.User{ID: "bot"},
	}
	f.invites = append(f.invites, inv)
	return inv, nil
}

func (f *fakeGateway) setInvite(code, inviterID string, uses int) {
	for _, inv := range f.invites {
		if inv.Code == code {
			inv.Uses = uses
			return
		}
	}
	f.invites = append(f.invites, &discordgo.Invite{
		Code:    code,
		Uses:    uses,
		Inviter: &discordgo.User{ID: inviterID},
	})
}

type fakeLedger struct {
	pending map[string]string
	awards  []awardCall
}

type awardCall struct {
	referrer, referee string
	rAmt, eAmt        decimal.Decimal
}

func (f *fakeLedger) SetPendingReferral(_ context.Context, refereeID, referrerID string) {
	f.pending[refereeID] = referrerID
}
func (f *fakeLedger) PendingReferrer(refereeID string) string { return f.pending[refereeID] }
func (f *fakeLedger) Referrer(refereeID string) string        { return f.pending[refereeID] }
func (f *fakeLedger) ReferralCount(string) int                { return len(f.awards) }

func (f *fakeLedger) ReferralAward(_ context.Context, referrerID, refereeID string, rAmt, eAmt decimal.Decimal) (*economy.ReferralResult, error) {
	f.awards = append(f.awards, awardCall{referrerID, refereeID, rAmt, eAmt})
	delete(f.pending, refereeID)
	return &economy.ReferralResult{
		ReferrerID: referrerID, RefereeID: refereeID,
		ReferrerAmount: rAmt, RefereeAmount: eAmt,
	}, nil
}

func newTestService() (*Service, *fakeGateway, *fakeLedger) {
	gw := &fakeGateway{members: make(map[string]*discordgo.Member)}
	fl := &fakeLedger{pending: make(map[string]string)}
	cfg := &config.Config{
		GuildID:     "guild",
		AdminRoleID: "role-admin",
		ModRoleID:   "role-mod",
		ReferrerPointsPerRole: map[string]float64{
			"default":  100,
			"role-og":  250,
			"role-vip": 500,
		},
		RefereePointsPerRole: map[string]float64{"default": 50},
	}
	return NewService(gw, fl, cfg), gw, fl
}

func TestOnMemberJoinAttributesSingleBumpedInvite(t *testing.T) {
	s, gw, fl := newTestService()
	ctx := context.Background()

	gw.setInvite("abc", "referrer", 3)
	gw.setInvite("xyz", "other", 7)
	if err := s.RefreshInvites(ctx); err != nil {
		t.Fatalf("RefreshInvites: %v", err)
	}

	gw.setInvite("abc", "referrer", 4)
	s.OnMemberJoin(ctx, "new-member")

	if got := fl.pending["new-member"]; got != "referrer" {
		t.Fatalf("pending referrer = %q, want %q", got, "referrer")
	}
}

func TestOnMemberJoinAmbiguousDiffSkipped(t *testing.T) {
	s, gw, fl := newTestService()
	ctx := context.Background()

	gw.setInvite("abc", "referrer", 3)
	gw.setInvite("xyz", "other", 7)
	s.RefreshInvites(ctx)

	// Two joins raced: both counters moved before we diffed.
	gw.setInvite("abc", "referrer", 4)
	gw.setInvite("xyz", "other", 8)
	s.OnMemberJoin(ctx, "new-member")

	if _, ok := fl.pending["new-member"]; ok {
		t.Error("ambiguous diff attributed a referral")
	}
}

func TestOnMemberJoinSelfInviteSkipped(t *testing.T) {
	s, gw, fl := newTestService()
	ctx := context.Background()

	gw.setInvite("abc", "rejoiner", 0)
	s.RefreshInvites(ctx)
	gw.setInvite("abc", "rejoiner", 1)
	s.OnMemberJoin(ctx, "rejoiner")

	if _, ok := fl.pending["rejoiner"]; ok {
		t.Error("self-invite attributed a referral")
	}
}

func TestOnMemberVerifiedPaysTier(t *testing.T) {
	s, gw, fl := newTestService()
	ctx := context.Background()

	fl.pending["new-member"] = "referrer"
	gw.members["referrer"] = &discordgo.Member{Roles: []string{"role-og", "role-vip"}}

	s.OnMemberVerified(ctx, "new-member")

	if len(fl.awards) != 1 {
		t.Fatalf("awards = %d, want 1", len(fl.awards))
	}
	call := fl.awards[0]
	if !call.rAmt.Equal(decimal.NewFromInt(500)) {
		t.Errorf("referrer amount = %s, want 500 (highest tier wins)", call.rAmt)
	}
	if !call.eAmt.Equal(decimal.NewFromInt(50)) {
		t.Errorf("referee amount = %s, want 50", call.eAmt)
	}
}

func TestOnMemberVerifiedStaffReferrerEarnsNothing(t *testing.T) {
	s, gw, fl := newTestService()
	ctx := context.Background()

	fl.pending["new-member"] = "mod-user"
	gw.members["mod-user"] = &discordgo.Member{Roles: []string{"role-mod", "role-vip"}}

	s.OnMemberVerified(ctx, "new-member")

	if len(fl.awards) != 1 {
		t.Fatalf("awards = %d, want 1", len(fl.awards))
	}
	call := fl.awards[0]
	if !call.rAmt.IsZero() {
		t.Errorf("staff referrer amount = %s, want 0", call.rAmt)
	}
	if !call.eAmt.Equal(decimal.NewFromInt(50)) {
		t.Errorf("referee amount = %s, want 50 (welcome share unaffected)", call.eAmt)
	}
}

func TestOnMemberVerifiedWithoutPendingIsNoOp(t *testing.T) {
	s, _, fl := newTestService()
	s.OnMemberVerified(context.Background(), "organic-member")
	if len(fl.awards) != 0 {
		t.Errorf("awards = %d, want 0", len(fl.awards))
	}
}

func TestDefaultTierWhenNoConfiguredRoles(t *testing.T) {
	s, gw, fl := newTestService()
	ctx := context.Background()

	fl.pending["new-member"] = "plain-referrer"
	gw.members["plain-referrer"] = &discordgo.Member{Roles: []string{"some-other-role"}}

	s.OnMemberVerified(ctx, "new-member")

	if len(fl.awards) != 1 {
		t.Fatalf("awards = %d, want 1", len(fl.awards))
	}
	if !fl.awards[0].rAmt.Equal(decimal.NewFromInt(100)) {
		t.Errorf("referrer amount = %s, want default 100", fl.awards[0].rAmt)
	}
}

func TestPersonalInviteReturnsExistingLink(t *testing.T) {
	s, gw, _ := newTestService()
	gw.setInvite("alice-code", "alice", 0)

	url, created, err := s.PersonalInvite(context.Background(), "chan", "alice")
	if err != nil {
		t.Fatalf("PersonalInvite: %v", err)
	}
	if created || url != "https://discord.gg/alice-code" {
		t.Errorf("got (%q, %v), want existing alice-code link", url, created)
	}
	if gw.minted != 0 {
		t.Errorf("minted %d invites, want 0", gw.minted)
	}
}

func TestPersonalInviteMintsOnceAndAttributesJoins(t *testing.T) {
	s, gw, fl := newTestService()
	ctx := context.Background()

	url, created, err := s.PersonalInvite(ctx, "chan", "alice")
	if err != nil {
		t.Fatalf("PersonalInvite: %v", err)
	}
	if !created || url != "https://discord.gg/minted1" {
		t.Errorf("got (%q, %v), want freshly minted link", url, created)
	}

	// The minted invite lists the bot as inviter; a repeat call must
	// still find it through the snapshot instead of minting again.
	url2, created2, err := s.PersonalInvite(ctx, "chan", "alice")
	if err != nil {
		t.Fatalf("second PersonalInvite: %v", err)
	}
	if created2 || url2 != url {
		t.Errorf("repeat = (%q, %v), want (%q, false)", url2, created2, url)
	}

	// A refresh must not reassign the invite to the bot.
	if err := s.RefreshInvites(ctx); err != nil {
		t.Fatalf("RefreshInvites: %v", err)
	}

	// A join through the minted invite credits alice, not the bot.
	gw.setInvite("minted1", "bot", 1)
	s.OnMemberJoin(ctx, "newbie")
	if got := fl.pending["newbie"]; got != "alice" {
		t.Errorf("pending referrer = %q, want alice", got)
	}
}
