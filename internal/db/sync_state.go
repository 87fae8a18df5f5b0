// Package db provides the sync state tracker and machine identity lookup.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fixline/bodyshop/internal/models"
)

// ErrUnknownMachineKey is returned when no machine identity matches.
var ErrUnknownMachineKey = errors.New("unknown machine key")

// =====================================================
// Sync state tracker (central-side)
// =====================================================
// One row per (storeId, storeType); a Direct and a Franchise store
// sharing a storeId are tracked independently. Store nodes never
// write this table.

// GetSyncState returns the state row for an identity, or sql.ErrNoRows.
func (r *Repository) GetSyncState(storeID string, storeType models.StoreType) (*models.StoreSyncState, error) {
	var s models.StoreSyncState
	err := r.db.QueryRow(`
	SELECT store_id, store_type, server_role, last_origin, last_upload_at, last_download_at, last_cursor
	FROM store_sync_state WHERE store_id = ? AND store_type = ?`,
		storeID, string(storeType)).
		Scan(&s.StoreID, &s.StoreType, &s.ServerRole, &s.LastOrigin, &s.LastUploadAt, &s.LastDownloadAt, &s.LastCursor)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOrCreateSyncState lazily creates the state row on a store's
// first contact and returns it.
func (r *Repository) GetOrCreateSyncState(identity models.NodeIdentity) (*models.StoreSyncState, error) {
	state, err := r.GetSyncState(identity.StoreID, identity.StoreType)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	_, err = r.db.Exec(`
	INSERT INTO store_sync_state (store_id, store_type, server_role)
	VALUES (?, ?, ?)
	ON CONFLICT(store_id, store_type) DO NOTHING`,
		identity.StoreID, string(identity.StoreType), string(identity.ServerRole))
	if err != nil {
		return nil, err
	}
	return r.GetSyncState(identity.StoreID, identity.StoreType)
}

// RecordUpload advances lastUploadAt for the identity, creating the
// row if absent. An empty batch still advances it: liveness is proven
// by contact, not by volume.
func (r *Repository) RecordUpload(identity models.NodeIdentity, origin string, at int64) error {
	_, err := r.db.Exec(`
	INSERT INTO store_sync_state (store_id, store_type, server_role, last_origin, last_upload_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(store_id, store_type) DO UPDATE SET
		server_role = excluded.server_role,
		last_origin = excluded.last_origin,
		last_upload_at = excluded.last_upload_at`,
		identity.StoreID, string(identity.StoreType), string(identity.ServerRole), origin, at)
	return err
}

// RecordDownload advances lastDownloadAt and the cursor to the same
// server-generated timestamp returned to the store, so re-querying
// state and re-querying data agree.
func (r *Repository) RecordDownload(identity models.NodeIdentity, origin string, at int64) error {
	_, err := r.db.Exec(`
	INSERT INTO store_sync_state (store_id, store_type, server_role, last_origin, last_download_at, last_cursor)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(store_id, store_type) DO UPDATE SET
		server_role = excluded.server_role,
		last_origin = excluded.last_origin,
		last_download_at = excluded.last_download_at,
		last_cursor = excluded.last_cursor`,
		identity.StoreID, string(identity.StoreType), string(identity.ServerRole), origin, at, at)
	return err
}

// =====================================================
// Machine identity lookup
// =====================================================

// RegisterMachineIdentity provisions a machine key for a node. The
// key is stored bcrypt-hashed; the plaintext never persists.
func (r *Repository) RegisterMachineIdentity(machineKey string, identity models.NodeIdentity) error {
	if !identity.Valid() {
		return fmt.Errorf("invalid node identity for machine key registration")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(machineKey), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
	INSERT INTO machine_identities (machine_key_hash, store_id, store_type, server_role, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		string(hash), identity.StoreID, string(identity.StoreType), string(identity.ServerRole), time.Now().Unix())
	return err
}

// LookupMachineIdentity resolves a machine key to its sync identity.
// Keys are bcrypt-hashed, so resolution compares against every
// registered identity; fleets are small enough that this stays cheap.
func (r *Repository) LookupMachineIdentity(machineKey string) (*models.NodeIdentity, error) {
	rows, err := r.db.Query("SELECT machine_key_hash, store_id, store_type, server_role FROM machine_identities")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hash, storeID, storeType, role string
		if err := rows.Scan(&hash, &storeID, &storeType, &role); err != nil {
			return nil, err
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(machineKey)) == nil {
			return &models.NodeIdentity{
				StoreID:    storeID,
				StoreType:  models.StoreType(storeType),
				ServerRole: models.ServerRole(role),
			}, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrUnknownMachineKey
}

// =====================================================
// Local download cursor (store-side)
// =====================================================

// LocalCursor returns the store's last download cursor, zero when the
// store has never downloaded.
func (r *Repository) LocalCursor() (int64, error) {
	var cursor int64
	err := r.db.QueryRow("SELECT COALESCE(MAX(last_sync_time), 0) FROM sync_cursor").Scan(&cursor)
	return cursor, err
}

// SetLocalCursor advances the store's download cursor. Called only
// after the downloaded page has been applied, so a crash between the
// two re-delivers the page instead of skipping it.
func (r *Repository) SetLocalCursor(cursor int64) error {
	_, err := r.db.Exec(`
	INSERT INTO sync_cursor (id, last_sync_time) VALUES (1, ?)
	ON CONFLICT(id) DO UPDATE SET last_sync_time = excluded.last_sync_time`,
		cursor)
	return err
}
