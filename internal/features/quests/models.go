// Package quests implements the weekly quest board: three quests posted
// each week, members submit tweet proofs per quest slot, moderators
// approve or reject. Approval pays a flat per-quest reward through the
// ledger's proof guard.
package quests

import "time"

// Submission statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Board is the active weekly quest set. Week counts up monotonically from
// the first board ever posted; submissions are keyed by it.
type Board struct {
	Week     int       `json:"week"`
	Quests   []string  `json:"quests"`
	PostedAt time.Time `json:"posted_at"`
}

// Submission is one member's proof for one quest slot of one week.
type Submission struct {
	UserID      string    `json:"user_id"`
	Week        int       `json:"week"`
	QuestNumber int       `json:"quest_number"`
	URL         string    `json:"url"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}
