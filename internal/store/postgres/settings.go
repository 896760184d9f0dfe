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

func (s *Store) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, value FROM settings ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []models.Setting
	for rows.Next() {
		var setting models.Setting
		if err := rows.Scan(&setting.ID, &setting.Value); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Store) UpsertSetting(ctx context.Context, setting models.Setting) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO settings (id, value)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value
	`, setting.ID, setting.Value); err != nil {
		return err
	}

	if err = insertOutboxEvent(ctx, tx, "settings.updated", map[string]interface{}{
		"id":    setting.ID,
		"value": setting.Value,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, role, COALESCE(window_number, 0), expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > $2
	`, sessionID, time.Now().UTC())
	if err := row.Scan(&session.SessionID, &session.UserID, &session.Role, &session.WindowNumber, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	return session, nil
}

// WindowReport aggregates the frozen timing fields. Waiting and serving
// averages come from the per-stage columns the state machine wrote, so hold
// episodes never leak into them.
func (s *Store) WindowReport(ctx context.Context) (store.Report, error) {
	var report store.Report
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'waiting'),
			COUNT(*) FILTER (WHERE status = 'serving'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'done'),
			COALESCE(AVG(total_hold_seconds) FILTER (WHERE status = 'done'), 0)
		FROM tickets
	`)
	if err := row.Scan(&report.TotalTickets, &report.Waiting, &report.Serving, &report.Pending, &report.Done, &report.AvgHoldSeconds); err != nil {
		return store.Report{}, err
	}

	for window := models.FirstWindow; window <= models.LastWindow; window++ {
		stats := store.WindowStats{Window: window, Label: models.WindowLabel(window)}
		query := fmt.Sprintf(`
			SELECT COUNT(%[1]s), COALESCE(AVG(%[2]s), 0), COALESCE(AVG(%[1]s), 0)
			FROM tickets
		`, servingSecondsColumn(window), waitingSecondsColumn(window))
		row := s.pool.QueryRow(ctx, query)
		if err := row.Scan(&stats.Served, &stats.AvgWaitingSeconds, &stats.AvgServingSeconds); err != nil {
			return store.Report{}, err
		}
		report.Windows = append(report.Windows, stats)
	}
	return report, nil
}
