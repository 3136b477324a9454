package economy

import (
	"context"
	"fmt"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/store"
)

// CheckIn awards the daily check-in reward once per user per UTC day.
// Admin check-ins do not create a user balance and are not issued into
// circulation; the reward moves from the treasury to the admin_earned
// counter so the issuance accounting stays honest.
func (l *Ledger) CheckIn(ctx context.Context, userID string, isAdmin bool) (*CheckInResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := fmt.Sprintf("%s:%s", userID, common.DateKey(l.now()))
	if _, done := l.checkIns[key]; done {
		return nil, common.ErrAlreadyCheckedIn
	}

	amount := l.params.CheckInReward
	if l.treasury.Balance.LessThan(amount) {
		return nil, common.ErrInsufficientTreasury
	}

	result := &CheckInResult{Amount: amount, AdminBooked: isAdmin}
	if isAdmin {
		l.treasury.Balance = l.treasury.Balance.Sub(amount)
		l.treasury.AdminEarned = l.treasury.AdminEarned.Add(amount)
		l.logTransactionLocked(userID, amount, "daily check-in (admin)")
	} else {
		if err := l.awardLocked(userID, amount, "daily check-in"); err != nil {
			return nil, err
		}
		result.NewBalance = l.users[userID].AvailablePoints
	}

	l.checkIns[key] = struct{}{}
	l.persistEconomy(ctx)
	l.persistGuard(ctx, store.TableCheckInLog, l.checkIns)
	return result, nil
}
