// Package models provides data model definitions for the Bodyshop sync core.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RecordIDSeparator joins the parts of a composite primary key into a
// single change-log record identifier.
const RecordIDSeparator = "|"

// JoinRecordID builds a change-log record identifier from key parts.
func JoinRecordID(parts ...string) string {
	return strings.Join(parts, RecordIDSeparator)
}

// ChangeLogEntry is an immutable record of one business-table mutation.
// It is written in the same transaction as the mutation it describes;
// Synced is the only field ever mutated afterwards, and only by the
// node that wrote the entry, after a confirmed upload round trip.
type ChangeLogEntry struct {
	Seq       int64           `db:"seq" json:"-"`
	TableName string          `db:"table_name" json:"tableName"`
	RecordID  string          `db:"record_id" json:"recordId"`
	Action    SyncAction      `db:"action" json:"action"`
	UpdatedAt int64           `db:"updated_at" json:"updatedAt"`
	StoreID   string          `db:"store_id" json:"storeId,omitempty"`
	StoreType StoreType       `db:"store_type" json:"storeType,omitempty"`
	Synced    bool            `db:"synced" json:"-"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// Time returns the event timestamp as time.Time in UTC.
func (e *ChangeLogEntry) Time() time.Time {
	return time.Unix(e.UpdatedAt, 0).UTC()
}

// HasOrigin reports whether the entry carries its origin identity.
// Entries captured before the node identity was available are written
// with blank origin fields and backfilled by the scheduler.
func (e *ChangeLogEntry) HasOrigin() bool {
	return e.StoreID != "" && e.StoreType.Valid()
}
