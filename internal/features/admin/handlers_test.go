package admin

import (
	"strings"
	"testing"
)

func TestFormatAnnouncement(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantTitle string
		wantBody  string
		wantOK    bool
	}{
		{
			name:      "title and body",
			in:        "Season two | The new quest board goes live on Monday.",
			wantTitle: "Season two",
			wantBody:  "The new quest board goes live on Monday.",
			wantOK:    true,
		},
		{
			name:      "body only gets stock title",
			in:        "Maintenance window tonight.",
			wantTitle: "Announcement",
			wantBody:  "Maintenance window tonight.",
			wantOK:    true,
		},
		{
			name:   "empty line rejected",
			in:     "   ",
			wantOK: false,
		},
		{
			name:   "title with empty body rejected",
			in:     "Heads up | ",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formatAnnouncement(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !strings.Contains(got, "**"+tt.wantTitle+"**") {
				t.Errorf("title %q missing from %q", tt.wantTitle, got)
			}
			if !strings.Contains(got, tt.wantBody) {
				t.Errorf("body %q missing from %q", tt.wantBody, got)
			}
		})
	}
}
