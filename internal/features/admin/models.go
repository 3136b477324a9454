// Package admin implements the staff panel: argon2id password login with
// brute-force lockout, in-memory sessions and the moderator commands that
// move points or settle payouts.
package admin

import "time"

// Session is one authenticated staff session.
type Session struct {
	UserID          string
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
}

// Lockout parameters for failed logins.
const (
	maxLoginAttempts = 3
	attemptWindow    = time.Hour
	sessionTTL       = 24 * time.Hour
)
