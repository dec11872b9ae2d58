package store

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "expanse.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_Schema(t *testing.T) {
	db := openTestDB(t)

	for _, tbl := range []string{"snapshots", "sim_events"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tbl).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", tbl, err)
		}
	}
	var idx string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name = 'idx_sim_events_subject'").Scan(&idx)
	if err != nil {
		t.Errorf("subject index: %v", err)
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestNewDB_EventSeqUnique(t *testing.T) {
	db := openTestDB(t)

	insert := "INSERT INTO sim_events (seq_no, event_type, created_at) VALUES (?, ?, ?)"
	if _, err := db.Exec(insert, 1, "system.colonized", 1); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert, 1, "transfer.completed", 2); err == nil {
		t.Error("expected UNIQUE violation on seq_no")
	}
}

func TestNewDB_SnapshotBlobBytes(t *testing.T) {
	db := openTestDB(t)

	blob := []byte{0x04, 0x22, 0x4d, 0x18, 0x00, 0xff, 0x00, 0x01}
	res, err := db.Exec("INSERT INTO snapshots (sim_day, version, blob, checksum, created_at) VALUES (?, ?, ?, ?, ?)",
		12.5, 2, blob, "abc", 1)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, _ := res.LastInsertId()

	var got []byte
	if err := db.QueryRow("SELECT blob FROM snapshots WHERE id = ?", id).Scan(&got); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("blob = %x, want %x", got, blob)
	}
}

func TestNewDB_IdempotentMigration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "expanse.db")

	db1, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("first NewDB: %v", err)
	}
	if _, err := db1.Exec("INSERT INTO sim_events (seq_no, event_type, created_at) VALUES (1, 'system.colonized', 1)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db1.Close()

	db2, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("second NewDB: %v", err)
	}
	defer db2.Close()
	var n int
	if err := db2.QueryRow("SELECT COUNT(*) FROM sim_events").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("events after reopen = %d, want 1", n)
	}
}
