package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/store"
)

// fakeAwarder records awards and simulates the ledger's proof guard.
type fakeAwarder struct {
	approved map[string]bool
	fail     error
	awards   []decimal.Decimal
}

func (f *fakeAwarder) AwardWithProofs(_ context.Context, userID string, amount decimal.Decimal, _ string, proofs []string) (*economy.AwardResult, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	for _, u := range proofs {
		if f.approved[u] {
			return nil, common.ErrDuplicateSubmission
		}
	}
	for _, u := range proofs {
		f.approved[u] = true
	}
	f.awards = append(f.awards, amount)
	return &economy.AwardResult{UserID: userID, Amount: amount, NewBalance: amount}, nil
}

func (f *fakeAwarder) ProofApproved(url string) bool { return f.approved[url] }

func testConfig() *config.Config {
	return &config.Config{
		EngagementPoints: map[string]float64{"like": 20, "retweet": 30, "comment": 15},
	}
}

func newTestService(t *testing.T) (*Service, *fakeAwarder) {
	t.Helper()
	fa := &fakeAwarder{approved: make(map[string]bool)}
	s := NewService(store.NewMemory(), fa, testConfig())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, fa
}

func TestSubmitNormalizesAndDeduplicates(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	sub, err := s.Submit(ctx, "alice", "https://x.com/alice/status/123?s=20")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.URL != "https://twitter.com/alice/status/123" {
		t.Errorf("URL = %q, want normalized twitter form", sub.URL)
	}

	// Same tweet under another spelling, from another member.
	_, err = s.Submit(ctx, "bob", "https://www.twitter.com/alice/status/123")
	if !errors.Is(err, common.ErrDuplicateSubmission) {
		t.Errorf("cross-spelling duplicate err = %v, want ErrDuplicateSubmission", err)
	}
}

func TestSubmitOnePendingPerUser(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if _, err := s.Submit(ctx, "alice", "https://twitter.com/a/status/1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err := s.Submit(ctx, "alice", "https://twitter.com/a/status/2")
	if !errors.Is(err, common.ErrPendingConflict) {
		t.Errorf("err = %v, want ErrPendingConflict", err)
	}
}

func TestSubmitRejectsGarbage(t *testing.T) {
	s, _ := newTestService(t)
	for _, raw := range []string{"not a url", "https://example.com/foo", "https://twitter.com/alice"} {
		if _, err := s.Submit(context.Background(), "alice", raw); !errors.Is(err, common.ErrInvalidProofURL) {
			t.Errorf("Submit(%q) err = %v, want ErrInvalidProofURL", raw, err)
		}
	}
}

func TestSubmitRejectsAlreadyRewardedProof(t *testing.T) {
	s, fa := newTestService(t)
	fa.approved["https://twitter.com/a/status/1"] = true

	_, err := s.Submit(context.Background(), "alice", "https://twitter.com/a/status/1")
	if !errors.Is(err, common.ErrDuplicateSubmission) {
		t.Errorf("err = %v, want ErrDuplicateSubmission", err)
	}
}

func TestVerifyComputesEngagementTimesMultiplier(t *testing.T) {
	s, fa := newTestService(t)
	ctx := context.Background()

	s.Submit(ctx, "alice", "https://twitter.com/a/status/1")

	// 2 likes * 20 + 1 retweet * 30 + 4 comments * 15 = 130, x1.5 = 195
	res, err := s.Verify(ctx, "alice", Engagement{Likes: 2, Retweets: 1, Comments: 4}, 1.5)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if want := decimal.NewFromInt(195); !res.Points.Equal(want) {
		t.Errorf("Points = %s, want %s", res.Points, want)
	}
	if len(fa.awards) != 1 || !fa.awards[0].Equal(decimal.NewFromInt(195)) {
		t.Errorf("ledger award = %v, want one award of 195", fa.awards)
	}
	if s.Pending("alice") != nil {
		t.Error("pending slot not cleared after approval")
	}
}

func TestVerifyKeepsSubmissionOnLedgerFailure(t *testing.T) {
	s, fa := newTestService(t)
	ctx := context.Background()

	s.Submit(ctx, "alice", "https://twitter.com/a/status/1")
	fa.fail = common.ErrInsufficientTreasury

	if _, err := s.Verify(ctx, "alice", Engagement{Likes: 1}, 1); !errors.Is(err, common.ErrInsufficientTreasury) {
		t.Fatalf("err = %v, want ErrInsufficientTreasury", err)
	}
	if s.Pending("alice") == nil {
		t.Error("submission dropped even though the award failed")
	}
}

func TestVerifyZeroEngagementRejected(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	s.Submit(ctx, "alice", "https://twitter.com/a/status/1")
	if _, err := s.Verify(ctx, "alice", Engagement{}, 1); !errors.Is(err, common.ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestRejectFreesTheSlotAndTheURL(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	s.Submit(ctx, "alice", "https://twitter.com/a/status/1")
	if err := s.Reject(ctx, "alice"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	// A rejected link was never rewarded, resubmission is fine.
	if _, err := s.Submit(ctx, "alice", "https://twitter.com/a/status/1"); err != nil {
		t.Errorf("resubmit after reject: %v", err)
	}
}

func TestPendingSurvivesReload(t *testing.T) {
	st := store.NewMemory()
	fa := &fakeAwarder{approved: make(map[string]bool)}
	s := NewService(st, fa, testConfig())
	s.Load(context.Background())
	s.Submit(context.Background(), "alice", "https://twitter.com/a/status/1")

	s2 := NewService(st, fa, testConfig())
	if err := s2.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s2.Pending("alice") == nil {
		t.Error("pending submission lost across reload")
	}
}
