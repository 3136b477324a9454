// Package tasks implements engagement-task proof submissions: a member
// posts a tweet link, a moderator verifies the engagement counts, points
// are paid through the ledger. One pending submission per member.
package tasks

import (
	"time"

	"github.com/shopspring/decimal"
)

// Submission is one member's pending proof awaiting moderation.
type Submission struct {
	UserID      string    `json:"user_id"`
	URL         string    `json:"url"` // normalized, the dedup key
	RawURL      string    `json:"raw_url"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Engagement carries a moderator's verified interaction counts.
type Engagement struct {
	Likes    int
	Retweets int
	Comments int
}

// VerifyResult reports an approved submission.
type VerifyResult struct {
	UserID     string
	URL        string
	Points     decimal.Decimal
	Multiplier float64
	NewBalance decimal.Decimal
}
