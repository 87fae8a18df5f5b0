// Package changelog captures business-table mutations as immutable
// change log entries. Capture runs inside the same transaction as the
// mutation it describes, so no mutation can commit without its log
// entry and no log entry can outlive a rolled-back mutation.
package changelog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fixline/bodyshop/internal/models"
)

// Origin identifies the store a mutation was captured at. The zero
// value is permitted: entries captured before the node identity is
// known are written blank and backfilled by the sync scheduler.
type Origin struct {
	StoreID   string
	StoreType models.StoreType
}

// Writer appends change log entries. The clock is injectable so tests
// can pin event timestamps.
type Writer struct {
	now func() time.Time
}

// NewWriter creates a Writer using the wall clock in UTC.
func NewWriter() *Writer {
	return &Writer{now: func() time.Time { return time.Now().UTC() }}
}

// NewWriterWithClock creates a Writer with a fixed clock source.
func NewWriterWithClock(now func() time.Time) *Writer {
	return &Writer{now: now}
}

// Capture appends one entry describing a mutation, inside tx. Payload
// must be the serialized row for INSERT/UPDATE and nil for DELETE.
func (w *Writer) Capture(tx *sql.Tx, table, recordID string, action models.SyncAction, payload json.RawMessage, origin Origin) error {
	return w.append(tx, table, recordID, action, payload, origin, false)
}

// CaptureSynced appends an entry pre-marked as synced. Central uses
// this to mirror applied uploads into its own audit trail: central is
// the terminus of the change stream, not another hop.
func (w *Writer) CaptureSynced(tx *sql.Tx, table, recordID string, action models.SyncAction, payload json.RawMessage, origin Origin) error {
	return w.append(tx, table, recordID, action, payload, origin, true)
}

func (w *Writer) append(tx *sql.Tx, table, recordID string, action models.SyncAction, payload json.RawMessage, origin Origin, synced bool) error {
	if !action.Valid() {
		return fmt.Errorf("invalid sync action %q", action)
	}
	if action == models.ActionDelete {
		payload = nil
	}

	var payloadVal interface{}
	if payload != nil {
		payloadVal = string(payload)
	}

	_, err := tx.Exec(`
	INSERT INTO change_log (table_name, record_id, action, updated_at, store_id, store_type, synced, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		table, recordID, string(action), w.now().Unix(),
		origin.StoreID, string(origin.StoreType), synced, payloadVal,
	)
	if err != nil {
		return fmt.Errorf("failed to append change log entry: %w", err)
	}
	return nil
}
