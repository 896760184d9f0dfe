package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"pililla/queue-service/internal/models"
)

// TicketEvent is one entry of a ticket's append-only transition log. Events
// form a per-ticket hash chain so a tampered audit trail is detectable.
type TicketEvent struct {
	TicketID  string          `json:"ticket_id"`
	TicketSeq int             `json:"ticket_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	TicketID         string     `json:"ticket_id"`
	TicketNumber     string     `json:"ticket_number"`
	ClientName       string     `json:"client_name"`
	Status           string     `json:"status"`
	CurrentWindow    int        `json:"current_window"`
	IsPriority       *bool      `json:"is_priority"`
	Remarks          *string    `json:"remarks"`
	CreatedAt        *time.Time `json:"created_at"`
	CalledAt         *time.Time `json:"called_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	HoldStartedAt    *time.Time `json:"hold_started_at"`
	TotalHoldSeconds *int64     `json:"total_hold_seconds"`
}

func ComputeTicketEventHash(prevHash, ticketID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, ticketID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// RehydrateTicket folds an event log back into the ticket's last known
// shape. Later events win field by field; absent fields carry forward.
func RehydrateTicket(events []TicketEvent) (models.Ticket, error) {
	var ticket models.Ticket
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Ticket{}, err
		}
		if payload.TicketID != "" {
			ticket.ID = payload.TicketID
		}
		if payload.TicketNumber != "" {
			ticket.TicketNumber = payload.TicketNumber
		}
		if payload.ClientName != "" {
			ticket.ClientName = payload.ClientName
		}
		if payload.Status != "" {
			ticket.Status = payload.Status
		}
		if payload.CurrentWindow != 0 {
			ticket.CurrentWindow = payload.CurrentWindow
		}
		if payload.IsPriority != nil {
			ticket.IsPriority = *payload.IsPriority
		}
		ticket.Remarks = payload.Remarks
		if payload.CreatedAt != nil {
			ticket.CreatedAt = *payload.CreatedAt
		}
		if payload.CalledAt != nil {
			ticket.CalledAt = payload.CalledAt
		}
		if payload.CompletedAt != nil {
			ticket.CompletedAt = payload.CompletedAt
		}
		ticket.HoldStartedAt = payload.HoldStartedAt
		if payload.TotalHoldSeconds != nil {
			ticket.TotalHoldSeconds = *payload.TotalHoldSeconds
		}
	}
	return ticket, nil
}
