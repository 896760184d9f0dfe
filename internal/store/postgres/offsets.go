package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const notifierOffsetID = "realtime"

// GetLastOffset returns the seq of the last outbox event the realtime
// notifier has delivered. Zero means nothing has been delivered yet.
func (s *Store) GetLastOffset(ctx context.Context) (int64, error) {
	var last int64
	err := s.pool.QueryRow(ctx,
		`SELECT last_seq FROM notifier_offsets WHERE id = $1`,
		notifierOffsetID,
	).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last, nil
}

func (s *Store) UpdateOffset(ctx context.Context, lastSeq int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifier_offsets (id, last_seq)
         VALUES ($1, $2)
         ON CONFLICT (id) DO UPDATE SET last_seq = EXCLUDED.last_seq`,
		notifierOffsetID, lastSeq,
	)
	return err
}
