package common

import (
	"testing"
	"time"
)

func TestNormalizeProofURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "x.com rewritten to twitter.com",
			in:   "https://x.com/alice/status/12345",
			want: "https://twitter.com/alice/status/12345",
		},
		{
			name: "http upgraded to https",
			in:   "http://twitter.com/alice/status/12345",
			want: "https://twitter.com/alice/status/12345",
		},
		{
			name: "photo suffix and query stripped from tweet",
			in:   "https://twitter.com/Alice/status/12345/photo/1?s=20",
			want: "https://twitter.com/alice/status/12345",
		},
		{
			name: "non-tweet url lowercased and trailing slash trimmed",
			in:   "https://Example.COM/Proof/",
			want: "https://example.com/proof",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only",
			in:   "   ",
			want: "",
		},
		{
			name: "garbage without host",
			in:   "not a url",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeProofURL(tt.in); got != tt.want {
				t.Errorf("NormalizeProofURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeProofURLStableAcrossSpellings(t *testing.T) {
	// The whole point of normalization: every spelling of the same tweet
	// must land on one key.
	spellings := []string{
		"https://x.com/bob/status/999",
		"https://twitter.com/bob/status/999",
		"https://twitter.com/Bob/status/999?t=abc&s=09",
		"http://twitter.com/bob/status/999/",
	}
	want := NormalizeProofURL(spellings[0])
	if want == "" {
		t.Fatal("normalization of reference spelling returned empty")
	}
	for _, s := range spellings[1:] {
		if got := NormalizeProofURL(s); got != want {
			t.Errorf("NormalizeProofURL(%q) = %q, want %q", s, got, want)
		}
	}
}

func TestFormatWait(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0h 0m"},
		{"negative clamps to zero", -time.Hour, "0h 0m"},
		{"rounds sub-minute up", 30 * time.Second, "0h 1m"},
		{"hours and minutes", 3*time.Hour + 27*time.Minute, "3h 27m"},
		{"exact hours", 24 * time.Hour, "24h 0m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatWait(tt.d); got != tt.want {
				t.Errorf("FormatWait(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestDateKey(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 2026-08-30 02:00 +05 is still 2026-08-29 in UTC.
	got := DateKey(time.Date(2026, 8, 30, 2, 0, 0, 0, loc))
	if got != "2026-08-29" {
		t.Errorf("DateKey = %q, want 2026-08-29", got)
	}
}
