package store

import (
	"encoding/json"
	"testing"
	"time"

	"pililla/queue-service/internal/models"
)

func chainEvent(t *testing.T, prev *TicketEvent, eventType string, payload interface{}, at time.Time) TicketEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	seq := 1
	prevHash := ""
	if prev != nil {
		seq = prev.TicketSeq + 1
		prevHash = prev.Hash
	}
	event := TicketEvent{
		TicketID:  "ticket-1",
		TicketSeq: seq,
		Type:      eventType,
		Payload:   raw,
		CreatedAt: at,
		PrevHash:  prevHash,
	}
	event.Hash = ComputeTicketEventHash(prevHash, event.TicketID, eventType, raw, at, seq)
	return event
}

func TestComputeTicketEventHashChain(t *testing.T) {
	at := time.Date(2026, time.August, 29, 8, 0, 0, 0, time.UTC)

	first := chainEvent(t, nil, "ticket.created", map[string]string{"status": "waiting"}, at)
	second := chainEvent(t, &first, "ticket.called", map[string]string{"status": "serving"}, at.Add(time.Minute))

	if first.Hash == "" || second.Hash == "" {
		t.Fatal("hashes must be non-empty")
	}
	if first.Hash == second.Hash {
		t.Fatal("distinct events must not share a hash")
	}
	if second.PrevHash != first.Hash {
		t.Fatalf("prev_hash=%q, want %q", second.PrevHash, first.Hash)
	}

	// Same inputs reproduce the same hash; any field change breaks the link.
	recomputed := ComputeTicketEventHash(second.PrevHash, second.TicketID, second.Type, second.Payload, second.CreatedAt, second.TicketSeq)
	if recomputed != second.Hash {
		t.Fatalf("recomputed hash=%q, want %q", recomputed, second.Hash)
	}
	tampered := ComputeTicketEventHash(second.PrevHash, second.TicketID, "ticket.passed", second.Payload, second.CreatedAt, second.TicketSeq)
	if tampered == second.Hash {
		t.Fatal("changing the event type must change the hash")
	}
}

func TestRehydrateTicket(t *testing.T) {
	created := time.Date(2026, time.August, 29, 8, 0, 0, 0, time.UTC)
	called := created.Add(5 * time.Minute)
	remarks := "Lacking Requirements"
	hold := int64(90)
	priority := true

	payloads := []eventPayload{
		{
			TicketID:      "ticket-1",
			TicketNumber:  "AUG29-01",
			ClientName:    "Anonymous",
			Status:        models.StatusWaiting,
			CurrentWindow: 1,
			CreatedAt:     &created,
		},
		{
			Status:        models.StatusServing,
			CurrentWindow: 1,
			CalledAt:      &called,
		},
		{
			Status:        models.StatusPending,
			CurrentWindow: 1,
			Remarks:       &remarks,
			HoldStartedAt: &called,
		},
		{
			Status:           models.StatusServing,
			CurrentWindow:    2,
			IsPriority:       &priority,
			TotalHoldSeconds: &hold,
		},
	}

	var events []TicketEvent
	var prev *TicketEvent
	at := created
	for i, payload := range payloads {
		event := chainEvent(t, prev, "ticket.changed", payload, at.Add(time.Duration(i)*time.Minute))
		events = append(events, event)
		prev = &events[len(events)-1]
	}

	ticket, err := RehydrateTicket(events)
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	if ticket.ID != "ticket-1" || ticket.TicketNumber != "AUG29-01" {
		t.Fatalf("identity fields lost: %+v", ticket)
	}
	if ticket.Status != models.StatusServing || ticket.CurrentWindow != 2 {
		t.Fatalf("status=%s window=%d, want serving at window 2", ticket.Status, ticket.CurrentWindow)
	}
	if !ticket.IsPriority {
		t.Fatal("priority upgrade must survive rehydration")
	}
	if ticket.TotalHoldSeconds != hold {
		t.Fatalf("total_hold_seconds=%d, want %d", ticket.TotalHoldSeconds, hold)
	}
	if ticket.Remarks != nil {
		t.Fatalf("remarks=%v, want cleared after recall", *ticket.Remarks)
	}
	if ticket.CalledAt == nil || !ticket.CalledAt.Equal(called) {
		t.Fatalf("called_at=%v, want %v", ticket.CalledAt, called)
	}
}
