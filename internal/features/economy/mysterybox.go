package economy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/store"
)

const boxWindow = 24 * time.Hour

// OpenMysteryBox runs the whole box transaction under the lock: daily
// limit, cost debit, weighted reward draw and the treasury rebalance. The
// cost and reward cancel inside the user's balance, so the treasury only
// moves by the difference:
//
//   - reward above cost: the excess is issued from the treasury. If the
//     treasury cannot cover it the reward is capped at the cost and the
//     result carries Capped=true.
//   - reward below cost: the shortfall leaves circulation and is counted
//     as burned.
func (l *Ledger) OpenMysteryBox(ctx context.Context, userID string) (*BoxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.boxUsesInWindowLocked(userID, now) >= l.params.BoxMaxPerDay {
		return nil, common.ErrDailyLimitExceeded
	}

	cost := l.params.BoxCost
	acct, ok := l.users[userID]
	if !ok || acct.AvailablePoints.LessThan(cost) {
		return nil, common.ErrInsufficientBalance
	}

	reward := l.drawRewardLocked()
	capped := false

	if excess := reward.Sub(cost); excess.GreaterThan(decimal.Zero) {
		if l.treasury.Balance.LessThan(excess) {
			reward = cost
			capped = true
			log.WithFields(log.Fields{
				"user":   userID,
				"reward": reward.String(),
			}).Warn("mystery box reward capped, treasury exhausted")
		} else {
			l.treasury.Balance = l.treasury.Balance.Sub(excess)
			l.treasury.InCirculation = l.treasury.InCirculation.Add(excess)
		}
	} else if shortfall := excess.Neg(); shortfall.GreaterThan(decimal.Zero) {
		l.treasury.InCirculation = l.treasury.InCirculation.Sub(shortfall)
		l.treasury.Burned = l.treasury.Burned.Add(shortfall)
	}

	acct.AvailablePoints = acct.AvailablePoints.Sub(cost).Add(reward)
	acct.AllTimePoints = acct.AllTimePoints.Add(reward)

	l.boxUses[userID] = append(l.pruneBoxUsesLocked(userID, now), now)
	l.logTransactionLocked(userID, reward.Sub(cost), "mystery box")

	l.persistEconomy(ctx)
	if err := l.store.Save(ctx, store.TableMysteryBoxUses, l.boxUses); err != nil {
		logStoreError(err, store.TableMysteryBoxUses)
	}

	return &BoxResult{
		Cost:       cost,
		Reward:     reward,
		Capped:     capped,
		NewBalance: acct.AvailablePoints,
	}, nil
}

// NextBoxAvailable returns how long a user must wait before the next box,
// zero if one is available now.
func (l *Ledger) NextBoxAvailable(userID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	uses := l.pruneBoxUsesLocked(userID, now)
	if len(uses) < l.params.BoxMaxPerDay {
		return 0
	}
	// Oldest use inside the window is the one that frees a slot.
	return uses[0].Add(boxWindow).Sub(now)
}

// BoxUsesToday returns the number of opens inside the rolling window.
func (l *Ledger) BoxUsesToday(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.boxUsesInWindowLocked(userID, l.now())
}

func (l *Ledger) boxUsesInWindowLocked(userID string, now time.Time) int {
	return len(l.pruneBoxUsesLocked(userID, now))
}

func (l *Ledger) pruneBoxUsesLocked(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-boxWindow)
	var kept []time.Time
	for _, t := range l.boxUses[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if kept == nil {
		delete(l.boxUses, userID)
	} else {
		l.boxUses[userID] = kept
	}
	return kept
}

// drawRewardLocked samples the configured reward table by weight. Weights
// need not sum to anything particular; they are treated as proportions.
func (l *Ledger) drawRewardLocked() decimal.Decimal {
	rewards := l.params.BoxRewards
	if len(rewards) == 0 {
		return l.params.BoxCost
	}

	total := 0
	for _, r := range rewards {
		total += r.Weight
	}
	if total <= 0 {
		return rewards[0].Value
	}

	pick := l.rng.Intn(total)
	for _, r := range rewards {
		pick -= r.Weight
		if pick < 0 {
			return r.Value
		}
	}
	return rewards[len(rewards)-1].Value
}
