package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"approve", "pending", true},
		{"approve", "approved", false},
		{"approve", "rejected", false},
		{"approve", "completed", false},
		{"reject", "pending", true},
		{"reject", "approved", false},
		{"reject", "rejected", false},
		{"disburse", "approved", true},
		{"disburse", "pending", false},
		{"disburse", "completed", false},
		{"disburse", "rejected", false},
		{"unknown", "pending", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}
