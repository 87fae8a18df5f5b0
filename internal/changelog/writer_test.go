// Package changelog tests for capture semantics and retention.
package changelog

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fixline/bodyshop/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "changelog_test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE change_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		action TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		store_id TEXT NOT NULL DEFAULT '',
		store_type TEXT NOT NULL DEFAULT '',
		synced INTEGER NOT NULL DEFAULT 0,
		payload TEXT
	)`)
	if err != nil {
		t.Fatalf("failed to create change_log: %v", err)
	}
	return db
}

type capturedEntry struct {
	table     string
	recordID  string
	action    string
	updatedAt int64
	storeID   string
	storeType string
	synced    bool
	payload   sql.NullString
}

func readEntries(t *testing.T, db *sql.DB) []capturedEntry {
	t.Helper()
	rows, err := db.Query(`
	SELECT table_name, record_id, action, updated_at, store_id, store_type, synced, payload
	FROM change_log ORDER BY seq`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var entries []capturedEntry
	for rows.Next() {
		var e capturedEntry
		if err := rows.Scan(&e.table, &e.recordID, &e.action, &e.updatedAt,
			&e.storeID, &e.storeType, &e.synced, &e.payload); err != nil {
			t.Fatal(err)
		}
		entries = append(entries, e)
	}
	return entries
}

func captureInTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func TestCaptureWritesEntry(t *testing.T) {
	db := openTestDB(t)
	fixed := time.Unix(1700000000, 0).UTC()
	w := NewWriterWithClock(func() time.Time { return fixed })

	payload := json.RawMessage(`{"id":"c1","name":"Ada"}`)
	origin := Origin{StoreID: "S1", StoreType: models.StoreTypeDirect}

	err := captureInTx(t, db, func(tx *sql.Tx) error {
		return w.Capture(tx, "customers", "S1|DIRECT|c1", models.ActionInsert, payload, origin)
	})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	entries := readEntries(t, db)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.table != "customers" || e.recordID != "S1|DIRECT|c1" || e.action != "INSERT" {
		t.Errorf("entry = %+v", e)
	}
	if e.updatedAt != fixed.Unix() {
		t.Errorf("updatedAt = %d, want %d", e.updatedAt, fixed.Unix())
	}
	if e.storeID != "S1" || e.storeType != "DIRECT" {
		t.Errorf("origin = %s/%s, want S1/DIRECT", e.storeID, e.storeType)
	}
	if e.synced {
		t.Error("Capture should write entries unsynced")
	}
	if !e.payload.Valid || e.payload.String != string(payload) {
		t.Errorf("payload = %+v", e.payload)
	}
}

func TestCaptureDeleteDropsPayload(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter()

	err := captureInTx(t, db, func(tx *sql.Tx) error {
		return w.Capture(tx, "vehicles", "S1|DIRECT|v1", models.ActionDelete,
			json.RawMessage(`{"stale":"row"}`), Origin{})
	})
	if err != nil {
		t.Fatal(err)
	}

	entries := readEntries(t, db)
	if entries[0].payload.Valid {
		t.Error("DELETE entry must carry no payload")
	}
}

func TestCaptureBlankOriginPermitted(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter()

	err := captureInTx(t, db, func(tx *sql.Tx) error {
		return w.Capture(tx, "customers", "c1", models.ActionUpdate,
			json.RawMessage(`{}`), Origin{})
	})
	if err != nil {
		t.Fatalf("blank origin should be accepted, got %v", err)
	}

	e := readEntries(t, db)[0]
	if e.storeID != "" || e.storeType != "" {
		t.Errorf("origin = %q/%q, want blank", e.storeID, e.storeType)
	}
}

func TestCaptureRejectsInvalidAction(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter()

	err := captureInTx(t, db, func(tx *sql.Tx) error {
		return w.Capture(tx, "customers", "c1", models.SyncAction("MERGE"), nil, Origin{})
	})
	if err == nil {
		t.Error("invalid action should be rejected")
	}
	if len(readEntries(t, db)) != 0 {
		t.Error("rejected capture must not persist")
	}
}

func TestCaptureRollsBackWithMutation(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Capture(tx, "customers", "c1", models.ActionInsert,
		json.RawMessage(`{}`), Origin{}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	if len(readEntries(t, db)) != 0 {
		t.Error("entry must not outlive a rolled-back transaction")
	}
}

func TestCaptureSyncedMarksEntry(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter()

	err := captureInTx(t, db, func(tx *sql.Tx) error {
		return w.CaptureSynced(tx, "quotations", "S2|FRANCHISE|q1", models.ActionInsert,
			json.RawMessage(`{}`), Origin{StoreID: "S2", StoreType: models.StoreTypeFranchise})
	})
	if err != nil {
		t.Fatal(err)
	}

	if !readEntries(t, db)[0].synced {
		t.Error("CaptureSynced should pre-mark the entry as synced")
	}
}

func TestPurgeOnce(t *testing.T) {
	db := openTestDB(t)
	now := time.Unix(2000000000, 0).UTC()

	insert := func(updatedAt int64, synced bool) {
		_, err := db.Exec(`
		INSERT INTO change_log (table_name, record_id, action, updated_at, synced)
		VALUES ('customers', 'c', 'UPDATE', ?, ?)`, updatedAt, synced)
		if err != nil {
			t.Fatal(err)
		}
	}

	cutoff := now.Add(-30 * 24 * time.Hour).Unix()
	insert(cutoff-10, true)  // old and synced: purged
	insert(cutoff-10, false) // old but unsynced: kept
	insert(cutoff+10, true)  // synced but recent: kept

	p := NewPurger(db, 30*24*time.Hour, time.Hour)
	p.now = func() time.Time { return now }

	deleted, err := p.PurgeOnce()
	if err != nil {
		t.Fatalf("PurgeOnce() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if remaining := len(readEntries(t, db)); remaining != 2 {
		t.Errorf("remaining entries = %d, want 2", remaining)
	}
}
