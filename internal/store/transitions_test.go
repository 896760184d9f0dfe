package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"call_next", "waiting", true},
		{"call_next", "serving", false},
		{"call_next", "pending", false},
		{"call", "waiting", true},
		{"call", "pending", true},
		{"call", "serving", false},
		{"call", "done", false},
		{"pass", "serving", true},
		{"pass", "waiting", false},
		{"hold", "serving", true},
		{"hold", "pending", false},
		{"complete", "serving", true},
		{"complete", "waiting", false},
		{"complete", "done", false},
		{"requeue", "serving", true},
		{"requeue", "pending", false},
		{"unknown", "waiting", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestAllowedFromAgreesWithValidTransition(t *testing.T) {
	for _, action := range []string{"call", "call_next", "pass", "hold", "complete", "requeue"} {
		allowed := AllowedFrom(action)
		if len(allowed) == 0 {
			t.Fatalf("AllowedFrom(%q) is empty", action)
		}
		for _, status := range allowed {
			if !ValidTransition(action, status) {
				t.Fatalf("AllowedFrom(%q) lists %q but ValidTransition rejects it", action, status)
			}
		}
	}
	if got := AllowedFrom("unknown"); len(got) != 0 {
		t.Fatalf("AllowedFrom(unknown)=%v, want empty", got)
	}

	// Callers bind the returned slice into SQL; mutating it must not leak
	// back into the table.
	allowed := AllowedFrom("call")
	allowed[0] = "done"
	if ValidTransition("call", "done") {
		t.Fatal("mutating AllowedFrom result changed the transition table")
	}
}
