package models

import (
	"strings"
	"time"
)

// Ticket is one citizen visit. Nullable columns map to pointer fields; the
// per-window timing fields are written by the store exactly once per stage
// visit and never recomputed downstream.
type Ticket struct {
	ID            string  `json:"id"`
	TicketNumber  string  `json:"ticket_number"`
	ClientName    string  `json:"client_name"`
	IsPriority    bool    `json:"is_priority"`
	Status        string  `json:"status"`
	CurrentWindow int     `json:"current_window"`
	Remarks       *string `json:"remarks,omitempty"`
	RequestID     string  `json:"request_id,omitempty"`

	CreatedAt        time.Time  `json:"created_at"`
	CalledAt         *time.Time `json:"called_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ServingStartedAt *time.Time `json:"serving_started_at,omitempty"`
	HoldStartedAt    *time.Time `json:"hold_started_at,omitempty"`
	TotalHoldSeconds int64      `json:"total_hold_seconds"`

	W1WaitStart *time.Time `json:"w1_wait_start,omitempty"`
	W2WaitStart *time.Time `json:"w2_wait_start,omitempty"`
	W3WaitStart *time.Time `json:"w3_wait_start,omitempty"`

	W1WaitingSeconds *int64 `json:"w1_waiting_seconds,omitempty"`
	W2WaitingSeconds *int64 `json:"w2_waiting_seconds,omitempty"`
	W3WaitingSeconds *int64 `json:"w3_waiting_seconds,omitempty"`

	W1ServingSeconds *int64 `json:"w1_serving_seconds,omitempty"`
	W2ServingSeconds *int64 `json:"w2_serving_seconds,omitempty"`
	W3ServingSeconds *int64 `json:"w3_serving_seconds,omitempty"`
}

const (
	StatusWaiting = "waiting"
	StatusServing = "serving"
	StatusPending = "pending"
	StatusDone    = "done"
)

const (
	FirstWindow = 1
	LastWindow  = 3
)

// AnonymousName is the sentinel client_name written when a kiosk
// registration leaves the name blank.
const AnonymousName = "Anonymous"

func ValidWindow(window int) bool {
	return window >= FirstWindow && window <= LastWindow
}

// WindowLabel names the counter stage for display surfaces.
func WindowLabel(window int) string {
	switch window {
	case 1:
		return "Verification & Screening"
	case 2:
		return "Order of Payment"
	case 3:
		return "Releasing"
	default:
		return ""
	}
}

// DisplayName renders anonymous tickets as "Client No. NN", keyed off the
// daily sequence suffix of the ticket number.
func (t Ticket) DisplayName() string {
	if t.ClientName != "" && !strings.EqualFold(t.ClientName, AnonymousName) {
		return t.ClientName
	}
	number := t.TicketNumber
	if idx := strings.LastIndex(number, "-"); idx >= 0 {
		number = number[idx+1:]
	}
	return "Client No. " + number
}
