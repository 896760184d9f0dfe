package store

import (
	"context"
	"encoding/json"
	"time"

	"pililla/queue-service/internal/models"
)

type RegisterInput struct {
	RequestID  string
	ClientName string
	IsPriority bool
	CreatedAt  time.Time
}

type CallNextInput struct {
	RequestID string
	Window    int
	CalledAt  time.Time
}

// TicketActionInput carries a staff action against a single ticket. Window is
// the acting operator's window, which for a call out of the hold pool may
// differ from the window that parked the ticket.
type TicketActionInput struct {
	RequestID  string
	TicketID   string
	Window     int
	Reason     string
	ForceDone  bool
	OccurredAt time.Time
}

type TicketStore interface {
	RegisterTicket(ctx context.Context, input RegisterInput) (models.Ticket, bool, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	ListQueue(ctx context.Context, window int) ([]models.Ticket, error)
	ListServing(ctx context.Context, window int) ([]models.Ticket, error)
	ListHoldPool(ctx context.Context) ([]models.Ticket, error)
	SnapshotTickets(ctx context.Context) ([]models.Ticket, error)

	CallNext(ctx context.Context, input CallNextInput) (models.Ticket, bool, error)
	CallTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	PassTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	HoldTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	CompleteTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	RequeueTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	ResetDay(ctx context.Context, requestID string) error

	ListSettings(ctx context.Context) ([]models.Setting, error)
	UpsertSetting(ctx context.Context, setting models.Setting) error

	ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]OutboxEvent, error)
	ListTicketEvents(ctx context.Context, ticketID string) ([]TicketEvent, error)

	WindowReport(ctx context.Context) (Report, error)
	ListCompleted(ctx context.Context) ([]models.Ticket, error)

	GetSession(ctx context.Context, sessionID string) (Session, error)
}

// Session is the already-resolved identity a staff request acts under.
// WindowNumber is zero for admin and master roles.
type Session struct {
	SessionID    string
	UserID       string
	Role         string
	WindowNumber int
	ExpiresAt    time.Time
}

// OutboxEvent is one fan-out row. Seq is assigned by the store in insert
// order and is the only safe resume cursor; created_at can tie across
// concurrent transitions.
type OutboxEvent struct {
	Seq       int64           `json:"seq"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type WindowStats struct {
	Window            int     `json:"window"`
	Label             string  `json:"label"`
	Served            int64   `json:"served"`
	AvgWaitingSeconds float64 `json:"avg_waiting_seconds"`
	AvgServingSeconds float64 `json:"avg_serving_seconds"`
}

// Report aggregates the frozen per-stage timing fields. Hold time is excluded
// from the waiting and serving averages by construction; it is reported
// separately.
type Report struct {
	Windows        []WindowStats `json:"windows"`
	TotalTickets   int64         `json:"total_tickets"`
	Waiting        int64         `json:"waiting"`
	Serving        int64         `json:"serving"`
	Pending        int64         `json:"pending"`
	Done           int64         `json:"done"`
	AvgHoldSeconds float64       `json:"avg_hold_seconds"`
}
