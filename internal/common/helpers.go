// Package common contains small utilities shared across the project:
// point formatting, duration rendering and UTC date keys.
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatPoints renders a point amount for display: two decimal places and
// the currency suffix. Example: FormatPoints(decimal.NewFromInt(150)) →
// "150.00 MVpts".
func FormatPoints(amount decimal.Decimal) string {
	return fmt.Sprintf("%s MVpts", amount.StringFixed(2))
}

// FormatUSD renders the USD equivalent of a point amount given the
// configured conversion rate.
func FormatUSD(amount, rate decimal.Decimal) string {
	return fmt.Sprintf("$%s", amount.Mul(rate).StringFixed(2))
}

// FormatWait renders a remaining duration as "3h 27m" for cooldown
// messages. Sub-minute remainders round up so the user never sees "0h 0m"
// while still blocked.
func FormatWait(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	return fmt.Sprintf("%dh %dm", mins/60, mins%60)
}

// DateKey returns the UTC calendar date as "2006-01-02". Used as the
// idempotency suffix for daily actions (check-in, VIP post counters).
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// FormatDateTime renders a timestamp for transaction history lines.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04")
}

// ParseMention extracts a user ID from a <@id> or <@!id> mention, or
// accepts a bare numeric ID. Returns "" for anything else.
func ParseMention(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">")
	s = strings.TrimPrefix(s, "!")
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}

// TruncateText shortens a string for log lines, appending "..." when cut.
func TruncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
