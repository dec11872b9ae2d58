package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// EventRepo handles persistence for SimEvent records.
type EventRepo struct{}

// AppendTx inserts a simulation event within an existing transaction.
func (r *EventRepo) AppendTx(ctx context.Context, tx *sql.Tx, event domain.SimEvent) error {
	const q = `INSERT INTO sim_events (seq_no, sim_day, event_type, subject_id, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		event.SeqNo,
		event.SimDay,
		event.EventType,
		event.SubjectID,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// LastSeqTx returns the highest sequence number written, or 0.
func (r *EventRepo) LastSeqTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq_no), 0) FROM sim_events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last event seq: %w", err)
	}
	return seq, nil
}

// ListSince returns up to limit events with sequence numbers greater than
// sinceSeq, ordered by sequence number ascending. A limit of 0 means no limit.
func (r *EventRepo) ListSince(ctx context.Context, db *sql.DB, sinceSeq int64, limit int) ([]domain.SimEvent, error) {
	const q = `SELECT id, seq_no, sim_day, event_type, subject_id, payload_json, created_at
FROM sim_events
WHERE seq_no > ?
ORDER BY seq_no ASC
LIMIT ?`

	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, q, sinceSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.SimEvent
	for rows.Next() {
		var e domain.SimEvent
		if err := rows.Scan(&e.ID, &e.SeqNo, &e.SimDay, &e.EventType, &e.SubjectID, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
