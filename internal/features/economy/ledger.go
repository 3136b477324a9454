// The ledger is the single-writer heart of the bot.
//
// Every balance check and every mutation of Treasury, user accounts and
// the idempotency sets happens under one mutex, with no I/O between the
// precondition check and the in-memory write. Chat gateways deliver events
// at-least-once and handlers run on their own goroutines, so without this
// discipline two reactions on the same message could both pass the balance
// check against stale state. Durable writes go out through the store after
// the in-memory state already reflects the new truth.
package economy

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/common"
	"manaverse.gg/discord-bot/internal/store"
)

// Ledger owns the economy state. Load() once at startup, operations during
// the process lifetime, Flush()+nothing at shutdown (every operation also
// persists immediately; the periodic flush is a safety net).
type Ledger struct {
	mu     sync.Mutex
	store  store.Store
	params Params

	treasury Treasury
	users    map[string]*UserAccount

	// Idempotency guards, checked before the operation and updated
	// only after it succeeds.
	approvedProofs     map[string]struct{}
	processedReactions map[string]struct{}
	referredUsers      map[string]struct{}
	checkIns           map[string]struct{}
	boxUses            map[string][]time.Time

	// Referral bookkeeping.
	pendingReferrals map[string]string // referee -> referrer, award not yet triggered
	referralData     map[string]string // referee -> referrer, completed

	history []Transaction

	// Test seams; production values set in New.
	now func() time.Time
	rng *rand.Rand
}

// New creates an empty ledger. Call Load before serving traffic.
func New(st store.Store, params Params) *Ledger {
	return &Ledger{
		store:              st,
		params:             params,
		users:              make(map[string]*UserAccount),
		approvedProofs:     make(map[string]struct{}),
		processedReactions: make(map[string]struct{}),
		referredUsers:      make(map[string]struct{}),
		checkIns:           make(map[string]struct{}),
		boxUses:            make(map[string][]time.Time),
		pendingReferrals:   make(map[string]string),
		referralData:       make(map[string]string),
		now:                time.Now,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load restores all economy state from the persistent store. A fresh
// database yields a treasury holding the full total supply.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.treasury = Treasury{
		TotalSupply: l.params.TotalSupply,
		Balance:     l.params.TotalSupply,
	}
	if err := l.store.Load(ctx, store.TableTreasury, &l.treasury); err != nil {
		return err
	}
	if err := l.store.Load(ctx, store.TableUserPoints, &l.users); err != nil {
		return err
	}

	var proofs, reactions, referred, checkIns []string
	if err := l.store.Load(ctx, store.TableApprovedProofs, &proofs); err != nil {
		return err
	}
	if err := l.store.Load(ctx, store.TableProcessedReactions, &reactions); err != nil {
		return err
	}
	if err := l.store.Load(ctx, store.TableReferredUsers, &referred); err != nil {
		return err
	}
	if err := l.store.Load(ctx, store.TableCheckInLog, &checkIns); err != nil {
		return err
	}
	l.approvedProofs = listToSet(proofs)
	l.processedReactions = listToSet(reactions)
	l.referredUsers = listToSet(referred)
	l.checkIns = listToSet(checkIns)

	if err := l.store.Load(ctx, store.TableMysteryBoxUses, &l.boxUses); err != nil {
		return err
	}
	if err := l.store.Load(ctx, store.TablePendingReferrals, &l.pendingReferrals); err != nil {
		return err
	}
	if err := l.store.Load(ctx, store.TableReferralData, &l.referralData); err != nil {
		return err
	}
	if err := l.store.Load(ctx, store.TableTransactionLog, &l.history); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"accounts":     len(l.users),
		"balance":      l.treasury.Balance.String(),
		"transactions": len(l.history),
	}).Info("Economy state loaded")
	return nil
}

// Flush writes every economy table back to the store. Used by the periodic
// save job and at shutdown.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistAllLocked(ctx)
}

// --- Economy State contract ---

// Balance returns a user's available points, zero for unknown users.
// Read-only: unlike the reference behavior this does not auto-vivify an
// account; EnsureAccount exists for that.
func (l *Ledger) Balance(userID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.users[userID]; ok {
		return acct.AvailablePoints
	}
	return decimal.Zero
}

// AllTimePoints returns a user's lifetime earnings, zero for unknown users.
func (l *Ledger) AllTimePoints(userID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.users[userID]; ok {
		return acct.AllTimePoints
	}
	return decimal.Zero
}

// CanIssue reports whether the treasury can still issue amount points.
func (l *Ledger) CanIssue(amount decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.treasury.Balance.GreaterThanOrEqual(amount)
}

// EnsureAccount idempotently creates a zeroed account for userID.
func (l *Ledger) EnsureAccount(ctx context.Context, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.users[userID]; ok {
		return
	}
	l.ensureAccountLocked(userID)
	l.persistEconomy(ctx)
}

// Snapshot returns a consistent copy of the treasury for status display.
func (l *Ledger) Snapshot() TreasurySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return TreasurySnapshot{
		Treasury:     l.treasury,
		Accounts:     len(l.users),
		Transactions: len(l.history),
	}
}

// History returns the newest limit transactions for a user.
func (l *Ledger) History(userID string, limit int) []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Transaction
	for i := len(l.history) - 1; i >= 0 && len(out) < limit; i-- {
		if l.history[i].UserID == userID {
			out = append(out, l.history[i])
		}
	}
	return out
}

// --- Award / Spend ---

// Award credits a user from the treasury. Fails with ErrInsufficientTreasury
// before any mutation if the treasury cannot cover the amount.
func (l *Ledger) Award(ctx context.Context, userID string, amount decimal.Decimal, purpose string) (*AwardResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.awardLocked(userID, amount, purpose); err != nil {
		return nil, err
	}
	l.persistEconomy(ctx)

	acct := l.users[userID]
	return &AwardResult{
		UserID:     userID,
		Amount:     amount,
		NewBalance: acct.AvailablePoints,
		NewAllTime: acct.AllTimePoints,
	}, nil
}

// AwardWithProofs is Award gated by the approved-proof guard: if any of the
// normalized proof URLs has already been credited the whole operation fails
// with ErrDuplicateSubmission and nothing changes. On success every URL is
// registered, so replaying the same proof can never pay twice.
func (l *Ledger) AwardWithProofs(ctx context.Context, userID string, amount decimal.Decimal, purpose string, proofURLs []string) (*AwardResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, u := range proofURLs {
		if _, dup := l.approvedProofs[u]; dup {
			return nil, common.ErrDuplicateSubmission
		}
	}

	if err := l.awardLocked(userID, amount, purpose); err != nil {
		return nil, err
	}

	// Guard updated only after the award succeeded.
	for _, u := range proofURLs {
		if u != "" {
			l.approvedProofs[u] = struct{}{}
		}
	}

	l.persistEconomy(ctx)
	l.persistGuard(ctx, store.TableApprovedProofs, l.approvedProofs)

	acct := l.users[userID]
	return &AwardResult{
		UserID:     userID,
		Amount:     amount,
		NewBalance: acct.AvailablePoints,
		NewAllTime: acct.AllTimePoints,
	}, nil
}

// ProofApproved reports whether a normalized proof URL was already credited.
// Used by submission handlers to reject duplicates at submit time, before a
// moderator ever sees them.
func (l *Ledger) ProofApproved(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.approvedProofs[url]
	return ok
}

// Spend debits a user's available points. The treasury is untouched:
// spending is not un-issuing; only payout finalization and the mystery-box
// shortfall burn points out of circulation.
func (l *Ledger) Spend(ctx context.Context, userID string, amount decimal.Decimal, purpose string) (*AwardResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.spendLocked(userID, amount, purpose); err != nil {
		return nil, err
	}
	l.persistEconomy(ctx)

	acct := l.users[userID]
	return &AwardResult{
		UserID:     userID,
		Amount:     amount.Neg(),
		NewBalance: acct.AvailablePoints,
		NewAllTime: acct.AllTimePoints,
	}, nil
}

// --- internal, caller must hold l.mu ---

func (l *Ledger) ensureAccountLocked(userID string) *UserAccount {
	acct, ok := l.users[userID]
	if !ok {
		acct = &UserAccount{
			AllTimePoints:   decimal.Zero,
			AvailablePoints: decimal.Zero,
		}
		l.users[userID] = acct
	}
	return acct
}

// awardLocked applies the balanced award update: user credit matched by an
// equal treasury debit into circulation.
func (l *Ledger) awardLocked(userID string, amount decimal.Decimal, purpose string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return common.ErrInvalidAmount
	}
	if l.treasury.Balance.LessThan(amount) {
		return common.ErrInsufficientTreasury
	}

	acct := l.ensureAccountLocked(userID)
	acct.AllTimePoints = acct.AllTimePoints.Add(amount)
	acct.AvailablePoints = acct.AvailablePoints.Add(amount)
	l.treasury.Balance = l.treasury.Balance.Sub(amount)
	l.treasury.InCirculation = l.treasury.InCirculation.Add(amount)

	l.logTransactionLocked(userID, amount, purpose)
	return nil
}

func (l *Ledger) spendLocked(userID string, amount decimal.Decimal, purpose string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return common.ErrInvalidAmount
	}
	acct, ok := l.users[userID]
	if !ok || acct.AvailablePoints.LessThan(amount) {
		return common.ErrInsufficientBalance
	}

	acct.AvailablePoints = acct.AvailablePoints.Sub(amount)
	l.logTransactionLocked(userID, amount.Neg(), purpose)
	return nil
}

func (l *Ledger) logTransactionLocked(userID string, amount decimal.Decimal, purpose string) {
	l.history = append(l.history, Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Purpose:   purpose,
		Timestamp: l.now(),
	})
}

// persistEconomy writes treasury, balances and the transaction log. A
// failed write is logged but does not fail the operation: the in-memory
// state is already the truth and the periodic flush will retry.
func (l *Ledger) persistEconomy(ctx context.Context) {
	if err := l.store.Save(ctx, store.TableTreasury, l.treasury); err != nil {
		log.WithError(err).Error("failed to persist treasury")
	}
	if err := l.store.Save(ctx, store.TableUserPoints, l.users); err != nil {
		log.WithError(err).Error("failed to persist user points")
	}
	if err := l.store.Save(ctx, store.TableTransactionLog, l.history); err != nil {
		log.WithError(err).Error("failed to persist transaction log")
	}
}

func (l *Ledger) persistGuard(ctx context.Context, table string, set map[string]struct{}) {
	if err := l.store.Save(ctx, table, setToList(set)); err != nil {
		logStoreError(err, table)
	}
}

func logStoreError(err error, table string) {
	log.WithError(err).WithField("table", table).Error("failed to persist economy table")
}

func (l *Ledger) persistAllLocked(ctx context.Context) error {
	saves := []struct {
		table string
		value any
	}{
		{store.TableTreasury, l.treasury},
		{store.TableUserPoints, l.users},
		{store.TableTransactionLog, l.history},
		{store.TableApprovedProofs, setToList(l.approvedProofs)},
		{store.TableProcessedReactions, setToList(l.processedReactions)},
		{store.TableReferredUsers, setToList(l.referredUsers)},
		{store.TableCheckInLog, setToList(l.checkIns)},
		{store.TableMysteryBoxUses, l.boxUses},
		{store.TablePendingReferrals, l.pendingReferrals},
		{store.TableReferralData, l.referralData},
	}
	for _, s := range saves {
		if err := l.store.Save(ctx, s.table, s.value); err != nil {
			return err
		}
	}
	return nil
}

func listToSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set
}

func setToList(set map[string]struct{}) []string {
	list := make([]string, 0, len(set))
	for v := range set {
		list = append(list, v)
	}
	sort.Strings(list)
	return list
}
