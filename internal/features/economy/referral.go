package economy

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/store"
)

// SetPendingReferral records that refereeID joined via referrerID's invite.
// The award itself waits until the referee clears verification.
func (l *Ledger) SetPendingReferral(ctx context.Context, refereeID, referrerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.referredUsers[refereeID]; done {
		return
	}
	l.pendingReferrals[refereeID] = referrerID
	l.persistReferrals(ctx)
}

// PendingReferrer returns the recorded referrer for a not-yet-credited
// referee, or "" if there is none.
func (l *Ledger) PendingReferrer(refereeID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pendingReferrals[refereeID]
}

// Referrer returns who referred a user, completed referrals first.
func (l *Ledger) Referrer(refereeID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.referralData[refereeID]; ok {
		return r
	}
	return l.pendingReferrals[refereeID]
}

// ReferralCount returns how many completed referrals a referrer has.
func (l *Ledger) ReferralCount(referrerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, r := range l.referralData {
		if r == referrerID {
			n++
		}
	}
	return n
}

// TopReferrers ranks referrers by completed referrals, ties broken by
// user ID for a stable ordering.
func (l *Ledger) TopReferrers(limit int) []ReferralLeader {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[string]int)
	for _, r := range l.referralData {
		counts[r]++
	}

	leaders := make([]ReferralLeader, 0, len(counts))
	for id, n := range counts {
		leaders = append(leaders, ReferralLeader{UserID: id, Count: n})
	}
	sort.Slice(leaders, func(i, j int) bool {
		if leaders[i].Count != leaders[j].Count {
			return leaders[i].Count > leaders[j].Count
		}
		return leaders[i].UserID < leaders[j].UserID
	})
	if limit > 0 && len(leaders) > limit {
		leaders = leaders[:limit]
	}
	return leaders
}

// ReferralAward atomically credits both sides of a completed referral:
// referrerAmount to the referrer and refereeAmount to the referee, guarded
// so each referee triggers at most one payout ever. The treasury must cover
// the combined amount or neither award happens. A zero referrerAmount
// (admin referrers earn nothing) still credits the referee and still
// consumes the guard.
func (l *Ledger) ReferralAward(ctx context.Context, referrerID, refereeID string, referrerAmount, refereeAmount decimal.Decimal) (*ReferralResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.referredUsers[refereeID]; done {
		return nil, common.ErrDuplicateSubmission
	}

	total := referrerAmount.Add(refereeAmount)
	if l.treasury.Balance.LessThan(total) {
		return nil, common.ErrInsufficientTreasury
	}

	if referrerAmount.GreaterThan(decimal.Zero) {
		if err := l.awardLocked(referrerID, referrerAmount, "referral reward"); err != nil {
			return nil, err
		}
	}
	if refereeAmount.GreaterThan(decimal.Zero) {
		if err := l.awardLocked(refereeID, refereeAmount, "referral welcome bonus"); err != nil {
			return nil, err
		}
	}

	l.referredUsers[refereeID] = struct{}{}
	l.referralData[refereeID] = referrerID
	delete(l.pendingReferrals, refereeID)

	l.persistEconomy(ctx)
	l.persistGuard(ctx, store.TableReferredUsers, l.referredUsers)
	l.persistReferrals(ctx)

	return &ReferralResult{
		ReferrerID:     referrerID,
		RefereeID:      refereeID,
		ReferrerAmount: referrerAmount,
		RefereeAmount:  refereeAmount,
	}, nil
}

func (l *Ledger) persistReferrals(ctx context.Context) {
	if err := l.store.Save(ctx, store.TablePendingReferrals, l.pendingReferrals); err != nil {
		logStoreError(err, store.TablePendingReferrals)
	}
	if err := l.store.Save(ctx, store.TableReferralData, l.referralData); err != nil {
		logStoreError(err, store.TableReferralData)
	}
}
