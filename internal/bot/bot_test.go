package bot

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		in        string
		cmd       string
		args      []string
		isCommand bool
	}{
		{"!points", "points", nil, true},
		{"/points", "points", nil, true},
		{"  !payout 5000 700123 binance  ", "payout", []string{"5000", "700123", "binance"}, true},
		{"!PAYOUT 5000", "payout", []string{"5000"}, true},
		{"points", "", nil, false},
		{"hello there", "", nil, false},
		{"!", "", nil, false},
		{"!   ", "", nil, false},
	}

	for _, tt := range tests {
		cmd, args, isCommand := p.ParseCommand(tt.in)
		if cmd != tt.cmd || isCommand != tt.isCommand || !reflect.DeepEqual(args, tt.args) {
			t.Errorf("ParseCommand(%q) = (%q, %v, %v), want (%q, %v, %v)",
				tt.in, cmd, args, isCommand, tt.cmd, tt.args, tt.isCommand)
		}
	}
}

func TestHasRole(t *testing.T) {
	roles := []string{"111", "222"}
	if !hasRole(roles, "222") {
		t.Error("hasRole missed a present role")
	}
	if hasRole(roles, "333") {
		t.Error("hasRole matched an absent role")
	}
	// An unconfigured role ID never matches.
	if hasRole([]string{""}, "") {
		t.Error("hasRole matched the empty role ID")
	}
}
