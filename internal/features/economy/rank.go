package economy

import "sort"

// Leaderboard returns the top users by all-time points, ties broken by
// user ID so the ordering is stable across refreshes.
func (l *Ledger) Leaderboard(limit int) []LeaderboardEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LeaderboardEntry, 0, len(l.users))
	for id, acct := range l.users {
		entries = append(entries, LeaderboardEntry{
			UserID:        id,
			AllTimePoints: acct.AllTimePoints,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AllTimePoints.Equal(entries[j].AllTimePoints) {
			return entries[i].AllTimePoints.GreaterThan(entries[j].AllTimePoints)
		}
		return entries[i].UserID < entries[j].UserID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Rank returns a user's 1-based position on the all-time leaderboard and
// the total number of ranked accounts. Unknown users rank last.
func (l *Ledger) Rank(userID string) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.users[userID]
	if !ok {
		return len(l.users) + 1, len(l.users)
	}

	rank := 1
	for id, other := range l.users {
		if id == userID {
			continue
		}
		if other.AllTimePoints.GreaterThan(acct.AllTimePoints) ||
			(other.AllTimePoints.Equal(acct.AllTimePoints) && id < userID) {
			rank++
		}
	}
	return rank, len(l.users)
}
