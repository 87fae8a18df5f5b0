// Package models provides data model definitions for the Bodyshop sync core.
package models

import "time"

// StoreSyncState is the central-side record of how far a store has
// synchronized. Exactly one row exists per (StoreID, StoreType) pair;
// a Direct and a Franchise store sharing a storeId are tracked
// independently. Store nodes never write this table.
type StoreSyncState struct {
	StoreID        string     `db:"store_id" json:"storeId"`
	StoreType      StoreType  `db:"store_type" json:"storeType"`
	ServerRole     ServerRole `db:"server_role" json:"serverRole"`
	LastOrigin     string     `db:"last_origin" json:"lastOrigin,omitempty"`
	LastUploadAt   int64      `db:"last_upload_at" json:"lastUploadAt"`
	LastDownloadAt int64      `db:"last_download_at" json:"lastDownloadAt"`
	LastCursor     int64      `db:"last_cursor" json:"lastCursor"`
}

// TableName returns the table name for StoreSyncState.
func (StoreSyncState) TableName() string {
	return "store_sync_state"
}

// LastUploadTime returns LastUploadAt as time.Time in UTC.
func (s *StoreSyncState) LastUploadTime() time.Time {
	return time.Unix(s.LastUploadAt, 0).UTC()
}

// LastDownloadTime returns LastDownloadAt as time.Time in UTC.
func (s *StoreSyncState) LastDownloadTime() time.Time {
	return time.Unix(s.LastDownloadAt, 0).UTC()
}

// MachineIdentity maps a stable machine key to the sync identity of
// the node it belongs to. The table is read-only from the sync
// subsystem's perspective; provisioning writes it out of band.
type MachineIdentity struct {
	MachineKeyHash string     `db:"machine_key_hash" json:"-"`
	StoreID        string     `db:"store_id" json:"storeId"`
	StoreType      StoreType  `db:"store_type" json:"storeType"`
	ServerRole     ServerRole `db:"server_role" json:"serverRole"`
	CreatedAt      int64      `db:"created_at" json:"created_at"`
}

// TableName returns the table name for MachineIdentity.
func (MachineIdentity) TableName() string {
	return "machine_identities"
}
