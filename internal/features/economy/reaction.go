package economy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/store"
)

// ReactionAward pays the message author a random amount for a qualifying
// reaction. The "messageID-reactorID" guard is checked before the random
// draw, so a replayed gateway event is a silent no-op and never reshuffles
// an already-paid reward, while distinct reactors on the same message each
// pay out once. A nil result with nil error means the reaction was a
// duplicate.
func (l *Ledger) ReactionAward(ctx context.Context, messageID, reactorID, authorID string) (*AwardResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := fmt.Sprintf("%s-%s", messageID, reactorID)
	if _, seen := l.processedReactions[key]; seen {
		return nil, nil
	}

	span := l.params.MaxReactionPoints - l.params.MinReactionPoints
	raw := l.params.MinReactionPoints + l.rng.Float64()*span
	amount := decimal.NewFromFloat(raw).Round(2)

	if err := l.awardLocked(authorID, amount, "reaction reward"); err != nil {
		// Preconditions failed, guard untouched: when the treasury
		// refills the same reaction may still be paid.
		log.WithError(err).WithFields(log.Fields{
			"user":    authorID,
			"message": messageID,
		}).Warn("reaction reward skipped")
		return nil, err
	}

	l.processedReactions[key] = struct{}{}
	l.persistEconomy(ctx)
	l.persistGuard(ctx, store.TableProcessedReactions, l.processedReactions)

	acct := l.users[authorID]
	return &AwardResult{
		UserID:     authorID,
		Amount:     amount,
		NewBalance: acct.AvailablePoints,
		NewAllTime: acct.AllTimePoints,
	}, nil
}
