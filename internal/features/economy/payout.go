package economy

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
)

var hundred = decimal.NewFromInt(100)

// RequestPayout validates and stores a payout request without touching any
// balance. The quote it returns must be confirmed within the configured
// window or it lapses. An unexpired or already-escrowed pending request
// blocks a new one; an expired unconfirmed request is silently replaced.
func (l *Ledger) RequestPayout(ctx context.Context, userID string, amount decimal.Decimal, uid, exchange string) (*PayoutQuote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exchange = strings.ToLower(strings.TrimSpace(exchange))
	if !l.exchangeApprovedLocked(exchange) {
		return nil, common.ErrUnknownExchange
	}
	uid = strings.TrimSpace(uid)
	if !validUID(uid) {
		return nil, common.ErrInvalidDestination
	}
	if amount.LessThan(l.params.MinPayout) {
		return nil, common.ErrPayoutTooSmall
	}

	fee := amount.Mul(l.params.FeePercent).Div(hundred)
	total := amount.Add(fee)

	acct, ok := l.users[userID]
	if !ok || acct.AvailablePoints.LessThan(total) {
		return nil, common.ErrInsufficientBalance
	}

	now := l.now()
	if p := acct.PendingPayout; p != nil {
		if p.Escrowed || now.Sub(p.RequestedAt) <= l.params.ConfirmTimeout {
			return nil, common.ErrPendingConflict
		}
		// Expired and never confirmed, safe to replace.
	}

	acct.PendingPayout = &PendingPayout{
		Amount:         amount,
		Fee:            fee,
		TotalDeduction: total,
		UID:            uid,
		Exchange:       exchange,
		RequestedAt:    now,
	}
	l.persistEconomy(ctx)

	return &PayoutQuote{
		Amount:         amount,
		Fee:            fee,
		TotalDeduction: total,
		UID:            uid,
		Exchange:       exchange,
		ConfirmWithin:  l.params.ConfirmTimeout,
	}, nil
}

// ConfirmPayout escrows the pending request: the full amount-plus-fee
// leaves the user's spendable balance and the request is marked escrowed
// for a moderator to finalize. Expiry is checked first; an expired request
// is discarded and the confirmation rejected.
func (l *Ledger) ConfirmPayout(ctx context.Context, userID string) (*PayoutConfirmation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.users[userID]
	if !ok || acct.PendingPayout == nil {
		return nil, common.ErrNotFound
	}
	p := acct.PendingPayout
	if p.Escrowed {
		return nil, common.ErrPendingConflict
	}
	if l.now().Sub(p.RequestedAt) > l.params.ConfirmTimeout {
		acct.PendingPayout = nil
		l.persistEconomy(ctx)
		return nil, common.ErrRequestExpired
	}

	// The balance may have changed since the quote, re-validate.
	if acct.AvailablePoints.LessThan(p.TotalDeduction) {
		return nil, common.ErrInsufficientBalance
	}

	acct.AvailablePoints = acct.AvailablePoints.Sub(p.TotalDeduction)
	p.Escrowed = true
	l.logTransactionLocked(userID, p.TotalDeduction.Neg(), "payout escrow")
	l.persistEconomy(ctx)

	return &PayoutConfirmation{
		Amount:         p.Amount,
		TotalDeduction: p.TotalDeduction,
		UID:            p.UID,
		Exchange:       p.Exchange,
		NewBalance:     acct.AvailablePoints,
	}, nil
}

// FinalizePayout settles an escrowed request after the off-platform
// transfer went out: the paid amount is retired from the treasury and from
// circulation, and the fee is booked as treasury revenue.
//
// If the treasury cannot cover the amount the request stays escrowed and
// the call fails; the user's funds remain locked with no automated way
// back. That corner is deliberately left manual and is logged loudly so an
// operator resolves it by hand.
func (l *Ledger) FinalizePayout(ctx context.Context, userID string) (*PayoutFinalization, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.users[userID]
	if !ok || acct.PendingPayout == nil || !acct.PendingPayout.Escrowed {
		return nil, common.ErrNotFound
	}
	p := acct.PendingPayout

	if l.treasury.Balance.LessThan(p.Amount) {
		log.WithFields(log.Fields{
			"event":    "payout_finalize_blocked",
			"user":     userID,
			"amount":   p.Amount.String(),
			"treasury": l.treasury.Balance.String(),
		}).Error("cannot finalize payout, treasury below paid amount; escrow held, manual intervention required")
		return nil, common.ErrInsufficientTreasury
	}

	l.treasury.Balance = l.treasury.Balance.Sub(p.Amount)
	l.treasury.InCirculation = l.treasury.InCirculation.Sub(p.Amount)
	l.treasury.Burned = l.treasury.Burned.Add(p.Amount)
	l.treasury.TreasuryFees = l.treasury.TreasuryFees.Add(p.Fee)

	result := &PayoutFinalization{Amount: p.Amount, Fee: p.Fee}
	acct.PendingPayout = nil
	l.persistEconomy(ctx)
	return result, nil
}

// CancelPayout drops an unescrowed pending request. Escrowed requests are
// past the point of no return for the user and can only be finalized.
func (l *Ledger) CancelPayout(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.users[userID]
	if !ok || acct.PendingPayout == nil {
		return common.ErrNotFound
	}
	if acct.PendingPayout.Escrowed {
		return common.ErrPendingConflict
	}
	acct.PendingPayout = nil
	l.persistEconomy(ctx)
	return nil
}

// PendingPayoutFor returns a copy of the user's pending request, nil if
// there is none.
func (l *Ledger) PendingPayoutFor(userID string) *PendingPayout {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.users[userID]
	if !ok || acct.PendingPayout == nil {
		return nil
	}
	cp := *acct.PendingPayout
	return &cp
}

// ExpirePayouts drops every unescrowed request past the confirmation
// window. Run periodically; confirmation itself also checks expiry, so
// this only keeps the stored state tidy.
func (l *Ledger) ExpirePayouts(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	expired := 0
	for _, acct := range l.users {
		p := acct.PendingPayout
		if p != nil && !p.Escrowed && now.Sub(p.RequestedAt) > l.params.ConfirmTimeout {
			acct.PendingPayout = nil
			expired++
		}
	}
	if expired > 0 {
		l.persistEconomy(ctx)
	}
	return expired
}

// validUID accepts exchange account UIDs: digits only, as every supported
// exchange issues numeric account IDs.
func validUID(uid string) bool {
	if uid == "" {
		return false
	}
	for _, r := range uid {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (l *Ledger) exchangeApprovedLocked(exchange string) bool {
	for _, e := range l.params.ApprovedExchanges {
		if strings.EqualFold(e, exchange) {
			return true
		}
	}
	return false
}
