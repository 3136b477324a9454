// Sentinel errors used across all
// features of the bot. Handlers match on these with errors.Is to decide
// what to tell the user; services never format user-facing text themselves.
package common

import "errors"

// Ledger errors (treasury and user balances)
var (
	// ErrInsufficientTreasury: the treasury cannot issue the requested amount
	ErrInsufficientTreasury = errors.New("treasury balance too low to issue points")
	// ErrInsufficientBalance: the user's available points cannot cover the amount
	ErrInsufficientBalance = errors.New("insufficient available points")
	// ErrInvalidAmount: zero or negative amount where a positive one is required
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNotFound: the referenced account, submission or payout does not exist
	ErrNotFound = errors.New("record not found")
)

// Idempotency and workflow errors
var (
	// ErrDuplicateSubmission: proof URL or reaction event already processed
	ErrDuplicateSubmission = errors.New("submission already processed")
	// ErrPendingConflict: a submission or payout request is already in flight
	ErrPendingConflict = errors.New("a pending request already exists")
	// ErrRequestExpired: payout confirmation arrived after the timeout window
	ErrRequestExpired = errors.New("request expired, please start over")
	// ErrDailyLimitExceeded: rate-limited action used too often in the last 24h
	ErrDailyLimitExceeded = errors.New("daily limit reached")
	// ErrAlreadyCheckedIn: daily check-in already claimed for today
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	// ErrInvalidProofURL: submitted link is not a recognizable tweet URL
	ErrInvalidProofURL = errors.New("not a valid tweet link")
)

// Payout validation errors
var (
	// ErrPayoutTooSmall: requested amount below the configured minimum
	ErrPayoutTooSmall = errors.New("payout amount below minimum")
	// ErrUnknownExchange: destination exchange not on the allow-list
	ErrUnknownExchange = errors.New("exchange not supported")
	// ErrInvalidDestination: exchange UID must be numeric
	ErrInvalidDestination = errors.New("destination UID must be numeric")
)

// Quest workflow errors
var (
	// ErrNoActiveQuests: no quest board has been posted yet
	ErrNoActiveQuests = errors.New("no active weekly quests")
	// ErrInvalidQuestNumber: quest number outside 1..3
	ErrInvalidQuestNumber = errors.New("quest number must be 1, 2 or 3")
	// ErrAlreadyApproved: the submission slot is already approved
	ErrAlreadyApproved = errors.New("submission already approved")
)

// Admin panel errors
var (
	// ErrWrongPassword: password did not match the configured hash
	ErrWrongPassword = errors.New("wrong password")
	// ErrTooManyAttempts: brute-force lockout is active
	ErrTooManyAttempts = errors.New("too many login attempts, wait an hour")
)
