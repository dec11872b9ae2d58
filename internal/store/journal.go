package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/expanse-sim/expanse-engine/internal/domain"
	"github.com/expanse-sim/expanse-engine/internal/snapshot"
)

// Journal writes snapshots and the event log in transactions.
type Journal struct {
	db        *sql.DB
	snapshots SnapshotRepo
	events    EventRepo
	keep      int
	now       func() time.Time
}

// NewJournal creates a Journal that keeps the newest keep snapshots. A keep
// of 0 keeps every snapshot.
func NewJournal(db *sql.DB, keep int) *Journal {
	return &Journal{db: db, keep: keep, now: time.Now}
}

// SaveSnapshot encodes and stores a state, pruning old snapshots.
func (j *Journal) SaveSnapshot(ctx context.Context, st *snapshot.State) (domain.SnapshotRecord, error) {
	blob, sum, err := snapshot.Encode(st)
	if err != nil {
		return domain.SnapshotRecord{}, err
	}
	rec := domain.SnapshotRecord{
		SimDay:    st.SavedAtDay,
		Version:   st.Version,
		Blob:      blob,
		Checksum:  sum,
		CreatedAt: j.now().Unix(),
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SnapshotRecord{}, domain.WrapEngineError(domain.ErrStoreWrite.Code, "begin snapshot tx", err)
	}
	defer tx.Rollback()

	id, err := j.snapshots.SaveTx(ctx, tx, rec)
	if err != nil {
		return domain.SnapshotRecord{}, domain.WrapEngineError(domain.ErrStoreWrite.Code, "save snapshot", err)
	}
	if j.keep > 0 {
		if _, err := j.snapshots.PruneTx(ctx, tx, j.keep); err != nil {
			return domain.SnapshotRecord{}, domain.WrapEngineError(domain.ErrStoreWrite.Code, "prune snapshots", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.SnapshotRecord{}, domain.WrapEngineError(domain.ErrStoreWrite.Code, "commit snapshot", err)
	}
	rec.ID = id
	return rec, nil
}

// LoadLatest decodes the newest snapshot. Returns nil when none is saved.
func (j *Journal) LoadLatest(ctx context.Context, homeID string) (*snapshot.State, error) {
	rec, err := j.snapshots.GetLatest(ctx, j.db)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "load snapshot", err)
	}
	if rec == nil {
		return nil, nil
	}
	return snapshot.Decode(rec.Blob, rec.Checksum, homeID)
}

// Record appends events with consecutive sequence numbers in one
// transaction and returns them as stored.
func (j *Journal) Record(ctx context.Context, events []domain.SimEvent) ([]domain.SimEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreWrite.Code, "begin event tx", err)
	}
	defer tx.Rollback()

	seq, err := j.events.LastSeqTx(ctx, tx)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "read event seq", err)
	}
	created := j.now().Unix()
	out := make([]domain.SimEvent, 0, len(events))
	for _, e := range events {
		seq++
		e.SeqNo = seq
		e.CreatedAt = created
		if err := j.events.AppendTx(ctx, tx, e); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreWrite.Code, fmt.Sprintf("append event %d", seq), err)
		}
		out = append(out, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreWrite.Code, "commit events", err)
	}
	return out, nil
}

// Events lists stored events after sinceSeq.
func (j *Journal) Events(ctx context.Context, sinceSeq int64, limit int) ([]domain.SimEvent, error) {
	events, err := j.events.ListSince(ctx, j.db, sinceSeq, limit)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "list events", err)
	}
	return events, nil
}
