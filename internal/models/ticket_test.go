package models

import "testing"

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name   string
		number string
		want   string
	}{
		{"Juan Dela Cruz", "AUG29-03", "Juan Dela Cruz"},
		{"", "AUG29-03", "Client No. 03"},
		{"Anonymous", "AUG29-12", "Client No. 12"},
		{"anonymous", "AUG29-12", "Client No. 12"},
		{"", "AUG29-120", "Client No. 120"},
	}

	for _, tt := range cases {
		ticket := Ticket{ClientName: tt.name, TicketNumber: tt.number}
		if got := ticket.DisplayName(); got != tt.want {
			t.Fatalf("DisplayName(%q, %q)=%q, want %q", tt.name, tt.number, got, tt.want)
		}
	}
}

func TestWindowLabel(t *testing.T) {
	labels := map[int]string{
		1: "Verification & Screening",
		2: "Order of Payment",
		3: "Releasing",
		4: "",
		0: "",
	}
	for window, want := range labels {
		if got := WindowLabel(window); got != want {
			t.Fatalf("WindowLabel(%d)=%q, want %q", window, got, want)
		}
	}
}

func TestValidWindow(t *testing.T) {
	for window, want := range map[int]bool{0: false, 1: true, 2: true, 3: true, 4: false, -1: false} {
		if got := ValidWindow(window); got != want {
			t.Fatalf("ValidWindow(%d)=%v, want %v", window, got, want)
		}
	}
}
