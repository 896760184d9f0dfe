package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pililla/queue-service/internal/models"
	"pililla/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `id, ticket_number, client_name, is_priority, status, current_window, remarks, request_id,
	created_at, called_at, completed_at, serving_started_at, hold_started_at, total_hold_seconds,
	w1_wait_start, w2_wait_start, w3_wait_start,
	w1_waiting_seconds, w2_waiting_seconds, w3_waiting_seconds,
	w1_serving_seconds, w2_serving_seconds, w3_serving_seconds`

type Store struct {
	pool               *pgxpool.Pool
	reactivatePriority bool
	location           *time.Location
}

type Options struct {
	// ReactivatePriority upgrades a ticket to the priority tier when it is
	// called back out of the hold pool.
	ReactivatePriority bool
	// Location fixes the calendar day the ticket sequence rolls over on.
	Location *time.Location
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	location := options.Location
	if location == nil {
		location = time.Local
	}
	return &Store{
		pool:               pool,
		reactivatePriority: options.ReactivatePriority,
		location:           location,
	}
}

func (s *Store) RegisterTicket(ctx context.Context, input store.RegisterInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findTicketByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	seq, err := nextTicketNumber(ctx, tx, createdAt.In(s.location))
	if err != nil {
		return models.Ticket{}, false, err
	}
	formattedNumber := store.FormatTicketNumber(createdAt.In(s.location), seq)

	clientName := strings.TrimSpace(input.ClientName)
	if clientName == "" {
		clientName = models.AnonymousName
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (
			id, request_id, ticket_number, client_name, is_priority,
			status, current_window, created_at, w1_wait_start, total_hold_seconds
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8,0)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING `+ticketColumns,
		uuid.NewString(), input.RequestID, formattedNumber, clientName, input.IsPriority,
		models.StatusWaiting, models.FirstWindow, createdAt)

	ticket, err := scanTicket(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, err
		}
		// A concurrent registration with the same request id committed
		// between the lookup above and the insert; return its ticket.
		existing, found, err = findTicketByRequestID(ctx, tx, input.RequestID)
		if err != nil {
			return models.Ticket{}, false, err
		}
		if !found {
			err = pgx.ErrNoRows
			return models.Ticket{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	if err = insertTicketChangeEvent(ctx, tx, "ticket.created", ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ListQueue(ctx context.Context, window int) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'waiting' AND current_window = $1
		ORDER BY is_priority DESC, created_at ASC
	`, window)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (s *Store) ListServing(ctx context.Context, window int) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'serving' AND current_window = $1
		ORDER BY called_at ASC
	`, window)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (s *Store) ListHoldPool(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'pending'
		ORDER BY hold_started_at DESC NULLS LAST
	`)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (s *Store) SnapshotTickets(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status IN ('waiting', 'serving', 'pending')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (s *Store) ListCompleted(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'done'
		ORDER BY completed_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func findTicketByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Ticket, bool, error) {
	row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE request_id = $1`, requestID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func nextTicketNumber(ctx context.Context, tx pgx.Tx, day time.Time) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO ticket_sequences (seq_date, next_number)
		VALUES ($1, 1)
		ON CONFLICT (seq_date)
		DO UPDATE SET next_number = ticket_sequences.next_number + 1
		RETURNING next_number
	`, day.Format("2006-01-02"))
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrSequenceUnavailable, err)
	}
	return next, nil
}

func waitStartColumn(window int) string {
	return fmt.Sprintf("w%d_wait_start", window)
}

func waitingSecondsColumn(window int) string {
	return fmt.Sprintf("w%d_waiting_seconds", window)
}

func servingSecondsColumn(window int) string {
	return fmt.Sprintf("w%d_serving_seconds", window)
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var remarks sql.NullString
	var calledAt, completedAt, servingStartedAt, holdStartedAt sql.NullTime
	var w1WaitStart, w2WaitStart, w3WaitStart sql.NullTime
	var w1Waiting, w2Waiting, w3Waiting sql.NullInt64
	var w1Serving, w2Serving, w3Serving sql.NullInt64

	err := row.Scan(
		&ticket.ID, &ticket.TicketNumber, &ticket.ClientName, &ticket.IsPriority,
		&ticket.Status, &ticket.CurrentWindow, &remarks, &ticket.RequestID,
		&ticket.CreatedAt, &calledAt, &completedAt, &servingStartedAt, &holdStartedAt,
		&ticket.TotalHoldSeconds,
		&w1WaitStart, &w2WaitStart, &w3WaitStart,
		&w1Waiting, &w2Waiting, &w3Waiting,
		&w1Serving, &w2Serving, &w3Serving,
	)
	if err != nil {
		return models.Ticket{}, err
	}

	ticket.Remarks = nullStringPtr(remarks)
	ticket.CalledAt = nullTimePtr(calledAt)
	ticket.CompletedAt = nullTimePtr(completedAt)
	ticket.ServingStartedAt = nullTimePtr(servingStartedAt)
	ticket.HoldStartedAt = nullTimePtr(holdStartedAt)
	ticket.W1WaitStart = nullTimePtr(w1WaitStart)
	ticket.W2WaitStart = nullTimePtr(w2WaitStart)
	ticket.W3WaitStart = nullTimePtr(w3WaitStart)
	ticket.W1WaitingSeconds = nullInt64Ptr(w1Waiting)
	ticket.W2WaitingSeconds = nullInt64Ptr(w2Waiting)
	ticket.W3WaitingSeconds = nullInt64Ptr(w3Waiting)
	ticket.W1ServingSeconds = nullInt64Ptr(w1Serving)
	ticket.W2ServingSeconds = nullInt64Ptr(w2Serving)
	ticket.W3ServingSeconds = nullInt64Ptr(w3Serving)
	return ticket, nil
}

func collectTickets(rows pgx.Rows) ([]models.Ticket, error) {
	defer rows.Close()
	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func nullInt64Ptr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	n := value.Int64
	return &n
}
