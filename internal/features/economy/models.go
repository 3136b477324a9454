// Package economy owns the points economy: the treasury, every user
// balance, the idempotency guards and the transaction log. All of it lives
// behind one mutex inside Ledger (see ledger.go); this file only defines
// the data shapes and the configuration snapshot the ledger works from.
package economy

import (
	"time"

	"github.com/shopspring/decimal"

	"manaverse.gg/discord-bot/internal/config"
)

// Treasury is the system-wide pool of unissued points plus the
// circulation/burn/fee counters. TotalSupply is fixed at initialization;
// every other field moves only through ledger operations.
type Treasury struct {
	TotalSupply   decimal.Decimal `json:"total_supply"`
	Balance       decimal.Decimal `json:"balance"`        // unissued, still awardable
	InCirculation decimal.Decimal `json:"in_circulation"` // gross issued to users
	Burned        decimal.Decimal `json:"burned"`         // permanently retired
	TreasuryFees  decimal.Decimal `json:"treasury_fees"`  // payout fee revenue
	AdminEarned   decimal.Decimal `json:"admin_earned"`   // admin check-in earnings, tracked apart from Balance
}

// UserAccount tracks one member's points. AllTimePoints is the lifetime
// earnings record used for ranking; AvailablePoints is the spendable
// balance. They are independent counters: spending draws down available
// without un-earning anything.
type UserAccount struct {
	AllTimePoints   decimal.Decimal `json:"all_time_points"`
	AvailablePoints decimal.Decimal `json:"available_points"`
	PendingPayout   *PendingPayout  `json:"pending_payout,omitempty"`
}

// PendingPayout is the at-most-one outstanding payout request per user.
// Escrowed flips to true at confirmation, when the funds leave the user's
// spendable balance; the record survives until a moderator finalizes it.
type PendingPayout struct {
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	TotalDeduction decimal.Decimal `json:"total_deduction"`
	UID            string          `json:"uid"`
	Exchange       string          `json:"exchange"`
	Escrowed       bool            `json:"escrowed"`
	RequestedAt    time.Time       `json:"requested_at"`
}

// Transaction is one immutable row of the audit log. Spends are recorded
// with negative amounts for symmetry with awards.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Purpose   string          `json:"purpose"`
	Timestamp time.Time       `json:"timestamp"`
}

// WeightedReward is one row of the mystery-box reward table.
type WeightedReward struct {
	Value  decimal.Decimal
	Weight int
}

// Params is the economy configuration snapshot the ledger is built with.
// All amounts are converted to decimals once, at wiring time.
type Params struct {
	TotalSupply       decimal.Decimal
	MinPayout         decimal.Decimal
	FeePercent        decimal.Decimal
	ConfirmTimeout    time.Duration
	ApprovedExchanges []string

	BoxCost      decimal.Decimal
	BoxRewards   []WeightedReward
	BoxMaxPerDay int

	MinReactionPoints float64
	MaxReactionPoints float64

	CheckInReward decimal.Decimal
}

// ParamsFromConfig converts the raw config numbers into ledger parameters.
func ParamsFromConfig(cfg *config.Config) Params {
	rewards := make([]WeightedReward, 0, len(cfg.MysteryBoxRewards))
	for _, r := range cfg.MysteryBoxRewards {
		rewards = append(rewards, WeightedReward{
			Value:  decimal.NewFromFloat(r.Value),
			Weight: r.Weight,
		})
	}

	return Params{
		TotalSupply:       decimal.NewFromFloat(cfg.TotalSupply),
		MinPayout:         decimal.NewFromFloat(cfg.MinPayoutAmount),
		FeePercent:        decimal.NewFromFloat(cfg.PayoutFeePercent),
		ConfirmTimeout:    cfg.PayoutConfirmation,
		ApprovedExchanges: cfg.ApprovedExchanges,
		BoxCost:           decimal.NewFromFloat(cfg.MysteryBoxCost),
		BoxRewards:        rewards,
		BoxMaxPerDay:      cfg.MysteryBoxMaxPerDay,
		MinReactionPoints: cfg.MinReactionPoints,
		MaxReactionPoints: cfg.MaxReactionPoints,
		CheckInReward:     decimal.NewFromFloat(cfg.CheckInReward),
	}
}

// AwardResult reports a successful award or spend.
type AwardResult struct {
	UserID     string
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
	NewAllTime decimal.Decimal
}

// ReferralResult reports the atomic referral payout pair.
type ReferralResult struct {
	ReferrerID     string
	RefereeID      string
	ReferrerAmount decimal.Decimal
	RefereeAmount  decimal.Decimal
}

// BoxResult reports a settled mystery-box draw. Capped is true when the
// treasury could not cover the excess and the reward was clipped to cost.
type BoxResult struct {
	Cost       decimal.Decimal
	Reward     decimal.Decimal // effective reward after any capping
	Capped     bool
	NewBalance decimal.Decimal
}

// PayoutQuote reports a stored (but unconfirmed) payout request.
type PayoutQuote struct {
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	TotalDeduction decimal.Decimal
	UID            string
	Exchange       string
	ConfirmWithin  time.Duration
}

// PayoutConfirmation reports a confirmed, now escrowed, payout.
type PayoutConfirmation struct {
	Amount         decimal.Decimal
	TotalDeduction decimal.Decimal
	UID            string
	Exchange       string
	NewBalance     decimal.Decimal
}

// PayoutFinalization reports a finalized (burned) payout.
type PayoutFinalization struct {
	Amount decimal.Decimal
	Fee    decimal.Decimal
}

// CheckInResult reports a daily check-in. AdminBooked is true when the
// reward went to the treasury's admin_earned counter instead of a user
// balance.
type CheckInResult struct {
	Amount      decimal.Decimal
	AdminBooked bool
	NewBalance  decimal.Decimal
}

// LeaderboardEntry is one row of the all-time points ranking.
type LeaderboardEntry struct {
	UserID        string
	AllTimePoints decimal.Decimal
}

// ReferralLeader is one row of the referral ranking.
type ReferralLeader struct {
	UserID string
	Count  int
}

// TreasurySnapshot is a consistent copy of the treasury for status
// rendering, taken under the ledger lock.
type TreasurySnapshot struct {
	Treasury
	Accounts     int
	Transactions int
}
