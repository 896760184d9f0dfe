package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pililla/queue-service/internal/models"
	"pililla/queue-service/internal/store"

	"github.com/jackc/pgx/v5"
)

// elapsedSeconds renders the SQL for whole seconds between a nullable start
// column and the bound occurred-at parameter, clamped at zero against clock
// skew between app servers.
func elapsedSeconds(param, column string) string {
	return fmt.Sprintf("GREATEST(0, FLOOR(EXTRACT(EPOCH FROM (%s - %s))))::bigint", param, column)
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.Ticket, bool, error) {
	if !models.ValidWindow(input.Window) {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call_next", input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		if empty {
			return models.Ticket{}, false, store.ErrNoTicket
		}
		return existing, false, nil
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		WITH next_ticket AS (
			SELECT id
			FROM tickets
			WHERE status = ANY($3) AND current_window = $1
			ORDER BY is_priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE tickets
		SET status = 'serving',
			serving_started_at = $2,
			called_at = $2,
			%[1]s = CASE WHEN tickets.%[2]s IS NOT NULL THEN %[3]s ELSE tickets.%[1]s END
		FROM next_ticket
		WHERE tickets.id = next_ticket.id
		RETURNING %[4]s
	`, waitingSecondsColumn(input.Window), waitStartColumn(input.Window),
		elapsedSeconds("$2", "tickets."+waitStartColumn(input.Window)), ticketColumns)

	row := tx.QueryRow(ctx, query, input.Window, calledAt, store.AllowedFrom("call_next"))
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, ""); err != nil {
				return models.Ticket{}, false, err
			}
			if err = tx.Commit(ctx); err != nil {
				return models.Ticket{}, false, err
			}
			return models.Ticket{}, false, store.ErrNoTicket
		}
		return models.Ticket{}, false, err
	}

	if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, ticket.ID); err != nil {
		return models.Ticket{}, false, err
	}
	if err = insertTicketChangeEvent(ctx, tx, "ticket.called", ticket); err != nil {
		return models.Ticket{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

// CallTicket moves a named ticket into serving at the caller's window. It
// accepts a ticket waiting for that window, or a pending ticket from the hold
// pool regardless of which window parked it. The update is conditional on the
// current status; a racer that loses gets ErrTicketClaimed and must re-fetch.
func (s *Store) CallTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if !models.ValidWindow(input.Window) {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call", input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		if empty {
			return models.Ticket{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = 'serving',
			current_window = $2,
			serving_started_at = $3,
			called_at = $3,
			%[1]s = CASE WHEN %[2]s IS NOT NULL THEN %[3]s ELSE %[1]s END,
			total_hold_seconds = total_hold_seconds
				+ CASE WHEN status = 'pending' AND hold_started_at IS NOT NULL THEN %[4]s ELSE 0 END,
			is_priority = CASE WHEN status = 'pending' AND $4 THEN TRUE ELSE is_priority END,
			hold_started_at = NULL,
			remarks = NULL
		WHERE id = $1 AND status = ANY($5)
			AND (status = 'pending' OR current_window = $2)
		RETURNING %[5]s
	`, waitingSecondsColumn(input.Window), waitStartColumn(input.Window),
		elapsedSeconds("$3", waitStartColumn(input.Window)),
		elapsedSeconds("$3", "hold_started_at"), ticketColumns)

	row := tx.QueryRow(ctx, query, input.TicketID, input.Window, occurredAt, s.reactivatePriority, store.AllowedFrom("call"))
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyCallFailure(ctx, tx, input.TicketID)
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}

	if err = insertActionRequest(ctx, tx, "call", input.RequestID, ticket.ID); err != nil {
		return models.Ticket{}, false, err
	}
	if err = insertTicketChangeEvent(ctx, tx, "ticket.called", ticket); err != nil {
		return models.Ticket{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) PassTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if !models.ValidWindow(input.Window) || input.Window >= models.LastWindow {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = 'waiting',
			current_window = $2 + 1,
			%[1]s = CASE WHEN serving_started_at IS NOT NULL THEN %[2]s ELSE %[1]s END,
			serving_started_at = NULL,
			%[3]s = $3,
			remarks = NULL
		WHERE id = $1 AND status = 'serving' AND current_window = $2
		RETURNING %[4]s
	`, servingSecondsColumn(input.Window), elapsedSeconds("$3", "serving_started_at"),
		waitStartColumn(input.Window+1), ticketColumns)

	return s.applyServingTransition(ctx, "pass", "ticket.passed", input, query)
}

func (s *Store) HoldTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if !models.ValidWindow(input.Window) {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	reason := input.Reason
	if reason == "" {
		reason = "Lacking Requirements"
	}

	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = 'pending',
			remarks = $4,
			hold_started_at = $3,
			%[1]s = CASE WHEN serving_started_at IS NOT NULL THEN %[2]s ELSE %[1]s END,
			serving_started_at = NULL
		WHERE id = $1 AND status = 'serving' AND current_window = $2
		RETURNING %[3]s
	`, servingSecondsColumn(input.Window), elapsedSeconds("$3", "serving_started_at"), ticketColumns)

	return s.applyServingTransition(ctx, "hold", "ticket.held", input, query, reason)
}

func (s *Store) CompleteTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if !models.ValidWindow(input.Window) {
		return models.Ticket{}, false, store.ErrInvalidState
	}
	if input.Window != models.LastWindow && !input.ForceDone {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = 'done',
			completed_at = $3,
			%[1]s = CASE WHEN serving_started_at IS NOT NULL THEN %[2]s ELSE %[1]s END,
			serving_started_at = NULL,
			remarks = NULL
		WHERE id = $1 AND status = 'serving' AND current_window = $2
		RETURNING %[3]s
	`, servingSecondsColumn(input.Window), elapsedSeconds("$3", "serving_started_at"), ticketColumns)

	return s.applyServingTransition(ctx, "complete", "ticket.done", input, query)
}

// RequeueTicket reverts a serving ticket to waiting at the same window. The
// window's wait clock restarts and its waiting seconds will be overwritten on
// the next call; the serving seconds for the aborted attempt are still frozen.
func (s *Store) RequeueTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if !models.ValidWindow(input.Window) {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = 'waiting',
			%[1]s = CASE WHEN serving_started_at IS NOT NULL THEN %[2]s ELSE %[1]s END,
			serving_started_at = NULL,
			%[3]s = $3
		WHERE id = $1 AND status = 'serving' AND current_window = $2
		RETURNING %[4]s
	`, servingSecondsColumn(input.Window), elapsedSeconds("$3", "serving_started_at"),
		waitStartColumn(input.Window), ticketColumns)

	return s.applyServingTransition(ctx, "requeue", "ticket.requeued", input, query)
}

// applyServingTransition runs one conditional update out of the serving state
// inside a transaction, with request-id idempotency and outbox publication.
// The query receives (ticket_id, window, occurred_at, extraArgs...).
func (s *Store) applyServingTransition(ctx context.Context, action, eventType string, input store.TicketActionInput, query string, extraArgs ...interface{}) (models.Ticket, bool, error) {
	if !store.ValidTransition(action, models.StatusServing) {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		if empty {
			return models.Ticket{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	args := append([]interface{}{input.TicketID, input.Window, occurredAt}, extraArgs...)
	row := tx.QueryRow(ctx, query, args...)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyServingFailure(ctx, tx, input.TicketID)
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}

	if err = insertActionRequest(ctx, tx, action, input.RequestID, ticket.ID); err != nil {
		return models.Ticket{}, false, err
	}
	if err = insertTicketChangeEvent(ctx, tx, eventType, ticket); err != nil {
		return models.Ticket{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

// ResetDay removes every ticket row, the per-day sequence state, the action
// request log, and the per-ticket event chains, then publishes queue.reset.
// Outbox events survive so subscribers learn about the reset.
func (s *Store) ResetDay(ctx context.Context, requestID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, statement := range []string{
		`DELETE FROM ticket_events`,
		`DELETE FROM action_requests`,
		`DELETE FROM tickets`,
		`DELETE FROM ticket_sequences`,
	} {
		if _, err = tx.Exec(ctx, statement); err != nil {
			return err
		}
	}

	if err = insertOutboxEvent(ctx, tx, "queue.reset", map[string]interface{}{
		"request_id": requestID,
		"reset_at":   time.Now().UTC(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func classifyCallFailure(ctx context.Context, tx pgx.Tx, ticketID string) error {
	status, exists, err := loadTicketStatus(ctx, tx, ticketID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrTicketNotFound
	}
	if status == models.StatusServing {
		return store.ErrTicketClaimed
	}
	return store.ErrInvalidState
}

func classifyServingFailure(ctx context.Context, tx pgx.Tx, ticketID string) error {
	_, exists, err := loadTicketStatus(ctx, tx, ticketID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrTicketNotFound
	}
	return store.ErrInvalidState
}

func loadTicketStatus(ctx context.Context, tx pgx.Tx, ticketID string) (string, bool, error) {
	var status string
	row := tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id = $1`, ticketID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Ticket, bool, bool, error) {
	var ticketID string
	row := tx.QueryRow(ctx, `
		SELECT ticket_id FROM action_requests WHERE action = $1 AND request_id = $2
	`, action, requestID)
	if err := row.Scan(&ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, false, nil
		}
		return models.Ticket{}, false, false, err
	}
	if ticketID == "" {
		return models.Ticket{}, true, true, nil
	}
	row = tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The ticket was removed by a daily reset after the action ran.
			return models.Ticket{}, true, true, nil
		}
		return models.Ticket{}, false, false, err
	}
	return ticket, true, false, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, ticketID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO action_requests (action, request_id, ticket_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, action, requestID, ticketID, time.Now().UTC())
	return err
}
