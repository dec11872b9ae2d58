package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// SnapshotRepo handles persistence for encoded simulation snapshots.
type SnapshotRepo struct{}

// SaveTx inserts a snapshot within an existing transaction and returns its id.
func (r *SnapshotRepo) SaveTx(ctx context.Context, tx *sql.Tx, snap domain.SnapshotRecord) (int64, error) {
	const q = `INSERT INTO snapshots (sim_day, version, blob, checksum, created_at)
VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		snap.SimDay,
		snap.Version,
		snap.Blob,
		snap.Checksum,
		snap.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	return res.LastInsertId()
}

// GetLatest returns the most recently saved snapshot.
// Returns nil if no snapshot exists.
func (r *SnapshotRepo) GetLatest(ctx context.Context, db *sql.DB) (*domain.SnapshotRecord, error) {
	const q = `SELECT id, sim_day, version, blob, checksum, created_at
FROM snapshots
ORDER BY id DESC
LIMIT 1`

	var s domain.SnapshotRecord
	err := db.QueryRowContext(ctx, q).Scan(&s.ID, &s.SimDay, &s.Version, &s.Blob, &s.Checksum, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return &s, nil
}

// PruneTx deletes all but the newest keep snapshots.
func (r *SnapshotRepo) PruneTx(ctx context.Context, tx *sql.Tx, keep int) (int64, error) {
	const q = `DELETE FROM snapshots
WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`
	res, err := tx.ExecContext(ctx, q, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
