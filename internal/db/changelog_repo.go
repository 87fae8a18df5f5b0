// Package db provides change log query operations.
package db

import (
	"strings"

	"github.com/fixline/bodyshop/internal/changelog"
	"github.com/fixline/bodyshop/internal/models"
)

// UnsyncedEntries returns up to limit change log entries not yet
// confirmed by central, in capture order.
func (r *Repository) UnsyncedEntries(limit int) ([]*models.ChangeLogEntry, error) {
	stmt, err := r.PrepareStmt(`
	SELECT seq, table_name, record_id, action, updated_at, store_id, store_type, synced, COALESCE(payload, '')
	FROM change_log WHERE synced = 0 ORDER BY seq ASC LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ChangeLogEntry
	for rows.Next() {
		var e models.ChangeLogEntry
		var payload string
		if err := rows.Scan(&e.Seq, &e.TableName, &e.RecordID, &e.Action, &e.UpdatedAt, &e.StoreID, &e.StoreType, &e.Synced, &payload); err != nil {
			return nil, err
		}
		if payload != "" {
			e.Payload = []byte(payload)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// MarkSynced flags the given entries as confirmed after a successful
// upload round trip. This is the only mutation a change log entry
// ever sees.
func (r *Repository) MarkSynced(seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(seqs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(seqs))
	for i, seq := range seqs {
		args[i] = seq
	}

	_, err := r.db.Exec("UPDATE change_log SET synced = 1 WHERE seq IN ("+placeholders+")", args...)
	return err
}

// BackfillOrigin fills in blank origin fields on unsynced entries.
// Entries captured before the node identity was available at boot are
// reconciled here before they are uploaded.
func (r *Repository) BackfillOrigin(origin changelog.Origin) (int64, error) {
	if origin.StoreID == "" || !origin.StoreType.Valid() {
		return 0, nil
	}
	res, err := r.db.Exec(`
	UPDATE change_log SET store_id = ?, store_type = ?
	WHERE synced = 0 AND (store_id = '' OR store_type = '')`,
		origin.StoreID, string(origin.StoreType))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountChangeLog returns the number of change log rows, optionally
// filtered to unsynced only. Operators use this to watch backlog.
func (r *Repository) CountChangeLog(unsyncedOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM change_log"
	if unsyncedOnly {
		query += " WHERE synced = 0"
	}
	var n int
	err := r.db.QueryRow(query).Scan(&n)
	return n, err
}

// GetChangeLogEntry retrieves one entry by sequence number.
func (r *Repository) GetChangeLogEntry(seq int64) (*models.ChangeLogEntry, error) {
	var e models.ChangeLogEntry
	var payload string
	err := r.db.QueryRow(`
	SELECT seq, table_name, record_id, action, updated_at, store_id, store_type, synced, COALESCE(payload, '')
	FROM change_log WHERE seq = ?`, seq).
		Scan(&e.Seq, &e.TableName, &e.RecordID, &e.Action, &e.UpdatedAt, &e.StoreID, &e.StoreType, &e.Synced, &payload)
	if err != nil {
		return nil, err
	}
	if payload != "" {
		e.Payload = []byte(payload)
	}
	return &e, nil
}

// LatestMirroredEntry returns the most recent synced entry for a
// record, or sql.ErrNoRows. Central's audit queries use this.
func (r *Repository) LatestMirroredEntry(table, recordID string) (*models.ChangeLogEntry, error) {
	var e models.ChangeLogEntry
	var payload string
	err := r.db.QueryRow(`
	SELECT seq, table_name, record_id, action, updated_at, store_id, store_type, synced, COALESCE(payload, '')
	FROM change_log WHERE table_name = ? AND record_id = ? AND synced = 1
	ORDER BY seq DESC LIMIT 1`, table, recordID).
		Scan(&e.Seq, &e.TableName, &e.RecordID, &e.Action, &e.UpdatedAt, &e.StoreID, &e.StoreType, &e.Synced, &payload)
	if err != nil {
		return nil, err
	}
	if payload != "" {
		e.Payload = []byte(payload)
	}
	return &e, nil
}
