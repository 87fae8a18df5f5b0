// Package models provides data model definitions for the Bodyshop sync core.
package models

import "encoding/json"

// ChangeItem is the wire shape of one change log entry in an upload
// batch. Payload carries the serialized row for INSERT/UPDATE and is
// absent for DELETE.
type ChangeItem struct {
	TableName string          `json:"tableName"`
	Action    string          `json:"action"`
	RecordID  string          `json:"recordId"`
	UpdatedAt int64           `json:"updatedAt"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SyncBatch is the request document for POST /sync/upload. The
// identity fields are overwritten server-side from the verified
// credential before processing; a payload-declared identity can never
// override the credential-bound one.
type SyncBatch struct {
	StoreID    string       `json:"storeId"`
	StoreType  StoreType    `json:"storeType"`
	ServerRole ServerRole   `json:"serverRole"`
	Changes    []ChangeItem `json:"changes"`
}

// SyncBatchResult is the response document for POST /sync/upload.
// Per-item failures are visible only in logs; the batch reports counts.
type SyncBatchResult struct {
	ProcessedCount int `json:"processedCount"`
	IgnoredCount   int `json:"ignoredCount"`
}

// DownloadRecord ships the full current state of one changed row.
// Central-to-store propagation always sends the authoritative current
// row, never field-level deltas; the store applies it by upsert.
type DownloadRecord struct {
	TableName string          `json:"tableName"`
	RecordID  string          `json:"recordId"`
	UpdatedAt int64           `json:"updatedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// SyncDiffResult is the response document for GET /sync/changes.
// LastSyncTime is the server-generated timestamp the store must use as
// its next cursor; it is the server's clock, not the maximum row
// timestamp in the page.
type SyncDiffResult struct {
	StoreID      string           `json:"storeId"`
	StoreType    StoreType        `json:"storeType"`
	ServerRole   ServerRole       `json:"serverRole"`
	LastSyncTime int64            `json:"lastSyncTime"`
	Records      []DownloadRecord `json:"records"`
}

// LoginRequest is the request document for POST /auth/login.
type LoginRequest struct {
	MachineKey string `json:"machineKey"`
}

// LoginResponse carries the issued bearer token together with the
// resolved sync identity so store nodes can stamp change log entries.
type LoginResponse struct {
	Token      string     `json:"token"`
	StoreID    string     `json:"storeId"`
	StoreType  StoreType  `json:"storeType"`
	ServerRole ServerRole `json:"serverRole"`
}
