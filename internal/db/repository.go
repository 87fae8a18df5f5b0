// Package db provides CRUD repository operations for Bodyshop data models.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fixline/bodyshop/internal/changelog"
	"github.com/fixline/bodyshop/internal/models"
	"github.com/fixline/bodyshop/internal/uuid"
)

// Repository provides storage operations for business tables, the
// change log, and sync state. Every tracked business mutation and its
// change log entry commit in one transaction.
type Repository struct {
	db     *sql.DB
	writer *changelog.Writer

	// origin stamps captured entries with this node's store identity.
	// Blank until the identity resolver has run; the scheduler
	// backfills entries captured before that.
	originMu sync.RWMutex
	origin   changelog.Origin

	// Prepared statement cache for frequently used queries.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB, writer *changelog.Writer) *Repository {
	if writer == nil {
		writer = changelog.NewWriter()
	}
	return &Repository{db: db, writer: writer}
}

// DB exposes the underlying handle for components that manage their
// own transactions, such as the upload apply path.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// SetOrigin records the node's resolved store identity for change
// capture.
func (r *Repository) SetOrigin(origin changelog.Origin) {
	r.originMu.Lock()
	defer r.originMu.Unlock()
	r.origin = origin
}

// Origin returns the capture origin currently in effect.
func (r *Repository) Origin() changelog.Origin {
	r.originMu.RLock()
	defer r.originMu.RUnlock()
	return r.origin
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Tracked mutations (business write path)
// =====================================================

// saveTracked runs a business upsert and its change capture in one
// transaction. If capture fails the mutation rolls back: a mutation
// without a log entry is a correctness violation.
func (r *Repository) saveTracked(table, recordID string, action models.SyncAction, row interface{}, exec func(*sql.Tx) error) error {
	var payload json.RawMessage
	if action != models.ActionDelete {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to serialize %s row: %w", table, err)
		}
		payload = data
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := exec(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := r.writer.Capture(tx, table, recordID, action, payload, r.Origin()); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateCustomer creates a customer and captures the insert.
func (r *Repository) CreateCustomer(c *models.Customer) error {
	r.stampNew(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.StoreID, &c.StoreType)
	return r.saveTracked(c.TableName(), c.ID.String(), models.ActionInsert, c, func(tx *sql.Tx) error {
		return upsertCustomerTx(tx, c)
	})
}

// UpdateCustomer overwrites a customer and captures the update.
func (r *Repository) UpdateCustomer(c *models.Customer) error {
	c.UpdatedAt = time.Now().UTC().Unix()
	return r.saveTracked(c.TableName(), c.ID.String(), models.ActionUpdate, c, func(tx *sql.Tx) error {
		return upsertCustomerTx(tx, c)
	})
}

// DeleteCustomer removes a customer and captures the delete.
func (r *Repository) DeleteCustomer(id string) error {
	return r.saveTracked(models.Customer{}.TableName(), id, models.ActionDelete, nil, func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM customers WHERE id = ?", id)
		return err
	})
}

// CreateVehicle creates a vehicle and captures the insert.
func (r *Repository) CreateVehicle(v *models.Vehicle) error {
	r.stampNew(&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.StoreID, &v.StoreType)
	return r.saveTracked(v.TableName(), v.ID.String(), models.ActionInsert, v, func(tx *sql.Tx) error {
		return upsertVehicleTx(tx, v)
	})
}

// UpdateVehicle overwrites a vehicle and captures the update.
func (r *Repository) UpdateVehicle(v *models.Vehicle) error {
	v.UpdatedAt = time.Now().UTC().Unix()
	return r.saveTracked(v.TableName(), v.ID.String(), models.ActionUpdate, v, func(tx *sql.Tx) error {
		return upsertVehicleTx(tx, v)
	})
}

// DeleteVehicle removes a vehicle and captures the delete.
func (r *Repository) DeleteVehicle(id string) error {
	return r.saveTracked(models.Vehicle{}.TableName(), id, models.ActionDelete, nil, func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM vehicles WHERE id = ?", id)
		return err
	})
}

// CreateQuotation creates a quotation and captures the insert.
func (r *Repository) CreateQuotation(q *models.Quotation) error {
	r.stampNew(&q.ID, &q.CreatedAt, &q.UpdatedAt, &q.StoreID, &q.StoreType)
	return r.saveTracked(q.TableName(), q.ID.String(), models.ActionInsert, q, func(tx *sql.Tx) error {
		return upsertQuotationTx(tx, q)
	})
}

// UpdateQuotation overwrites a quotation and captures the update.
func (r *Repository) UpdateQuotation(q *models.Quotation) error {
	q.UpdatedAt = time.Now().UTC().Unix()
	return r.saveTracked(q.TableName(), q.ID.String(), models.ActionUpdate, q, func(tx *sql.Tx) error {
		return upsertQuotationTx(tx, q)
	})
}

// DeleteQuotation removes a quotation and captures the delete.
func (r *Repository) DeleteQuotation(id string) error {
	return r.saveTracked(models.Quotation{}.TableName(), id, models.ActionDelete, nil, func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM quotations WHERE id = ?", id)
		return err
	})
}

// CreateRepairOrder creates a repair order and captures the insert.
func (r *Repository) CreateRepairOrder(o *models.RepairOrder) error {
	r.stampNew(&o.ID, &o.CreatedAt, &o.UpdatedAt, &o.StoreID, &o.StoreType)
	return r.saveTracked(o.TableName(), o.ID.String(), models.ActionInsert, o, func(tx *sql.Tx) error {
		return upsertRepairOrderTx(tx, o)
	})
}

// UpdateRepairOrder overwrites a repair order and captures the update.
func (r *Repository) UpdateRepairOrder(o *models.RepairOrder) error {
	o.UpdatedAt = time.Now().UTC().Unix()
	return r.saveTracked(o.TableName(), o.ID.String(), models.ActionUpdate, o, func(tx *sql.Tx) error {
		return upsertRepairOrderTx(tx, o)
	})
}

// DeleteRepairOrder removes a repair order and captures the delete.
func (r *Repository) DeleteRepairOrder(id string) error {
	return r.saveTracked(models.RepairOrder{}.TableName(), id, models.ActionDelete, nil, func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM repair_orders WHERE id = ?", id)
		return err
	})
}

// stampNew fills in identifier, timestamps and store scope for a new
// row.
func (r *Repository) stampNew(id *models.UUID, createdAt, updatedAt *int64, storeID *string, storeType *models.StoreType) {
	now := time.Now().UTC().Unix()
	if *id == "" {
		*id = models.UUID(uuid.New())
	}
	*createdAt = now
	*updatedAt = now
	origin := r.Origin()
	if *storeID == "" {
		*storeID = origin.StoreID
	}
	if *storeType == "" {
		*storeType = origin.StoreType
	}
}

// =====================================================
// Sync apply path (replication, no capture)
// =====================================================

// ApplyUpsertTx deserializes payload into the target row shape and
// upserts it by primary key. When scope is non-zero the row's store
// identity is forced to it, so an authenticated caller can never write
// outside its own sync scope. Insert and Update converge here, which
// makes duplicate delivery harmless.
func (r *Repository) ApplyUpsertTx(tx *sql.Tx, table, recordID string, payload json.RawMessage, scope changelog.Origin) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty payload for %s/%s", table, recordID)
	}

	switch table {
	case models.Customer{}.TableName():
		var c models.Customer
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("failed to deserialize customer %s: %w", recordID, err)
		}
		c.ID = models.UUID(recordID)
		forceScope(&c.StoreID, &c.StoreType, scope)
		return upsertCustomerTx(tx, &c)
	case models.Vehicle{}.TableName():
		var v models.Vehicle
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("failed to deserialize vehicle %s: %w", recordID, err)
		}
		v.ID = models.UUID(recordID)
		forceScope(&v.StoreID, &v.StoreType, scope)
		return upsertVehicleTx(tx, &v)
	case models.Quotation{}.TableName():
		var q models.Quotation
		if err := json.Unmarshal(payload, &q); err != nil {
			return fmt.Errorf("failed to deserialize quotation %s: %w", recordID, err)
		}
		q.ID = models.UUID(recordID)
		forceScope(&q.StoreID, &q.StoreType, scope)
		return upsertQuotationTx(tx, &q)
	case models.RepairOrder{}.TableName():
		var o models.RepairOrder
		if err := json.Unmarshal(payload, &o); err != nil {
			return fmt.Errorf("failed to deserialize repair order %s: %w", recordID, err)
		}
		o.ID = models.UUID(recordID)
		forceScope(&o.StoreID, &o.StoreType, scope)
		return upsertRepairOrderTx(tx, &o)
	}
	return fmt.Errorf("unknown table %q", table)
}

// ApplyDeleteTx removes a row by primary key. Deleting an absent row
// is success, not an error (idempotent delete).
func (r *Repository) ApplyDeleteTx(tx *sql.Tx, table, recordID string, scope changelog.Origin) error {
	if !models.IsReplicatedTable(table) {
		return fmt.Errorf("unknown table %q", table)
	}
	query := "DELETE FROM " + table + " WHERE id = ?"
	args := []interface{}{recordID}
	if scope.StoreID != "" {
		query += " AND store_id = ? AND store_type = ?"
		args = append(args, scope.StoreID, string(scope.StoreType))
	}
	_, err := tx.Exec(query, args...)
	return err
}

// ApplyUpsert is the non-transactional convenience used by the store
// node when applying downloaded rows. Central pushes are applied
// unconditionally: central wins over any local edit to the same row.
func (r *Repository) ApplyUpsert(table, recordID string, payload json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := r.ApplyUpsertTx(tx, table, recordID, payload, changelog.Origin{}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func forceScope(storeID *string, storeType *models.StoreType, scope changelog.Origin) {
	if scope.StoreID != "" {
		*storeID = scope.StoreID
		*storeType = scope.StoreType
	}
}

// =====================================================
// Per-table SQL
// =====================================================

func upsertCustomerTx(tx *sql.Tx, c *models.Customer) error {
	_, err := tx.Exec(`
	INSERT INTO customers (id, store_id, store_type, name, phone, email, address, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		store_id = excluded.store_id, store_type = excluded.store_type,
		name = excluded.name, phone = excluded.phone, email = excluded.email,
		address = excluded.address, updated_at = excluded.updated_at`,
		c.ID, c.StoreID, c.StoreType, c.Name, c.Phone, c.Email, c.Address, c.CreatedAt, c.UpdatedAt)
	return err
}

func upsertVehicleTx(tx *sql.Tx, v *models.Vehicle) error {
	_, err := tx.Exec(`
	INSERT INTO vehicles (id, store_id, store_type, customer_id, plate_no, vin, make, model, year, color, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		store_id = excluded.store_id, store_type = excluded.store_type,
		customer_id = excluded.customer_id, plate_no = excluded.plate_no,
		vin = excluded.vin, make = excluded.make, model = excluded.model,
		year = excluded.year, color = excluded.color, updated_at = excluded.updated_at`,
		v.ID, v.StoreID, v.StoreType, v.CustomerID, v.PlateNo, v.VIN, v.Make, v.Model, v.Year, v.Color, v.CreatedAt, v.UpdatedAt)
	return err
}

func upsertQuotationTx(tx *sql.Tx, q *models.Quotation) error {
	_, err := tx.Exec(`
	INSERT INTO quotations (id, store_id, store_type, customer_id, vehicle_id, status, total_amount, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		store_id = excluded.store_id, store_type = excluded.store_type,
		customer_id = excluded.customer_id, vehicle_id = excluded.vehicle_id,
		status = excluded.status, total_amount = excluded.total_amount,
		notes = excluded.notes, updated_at = excluded.updated_at`,
		q.ID, q.StoreID, q.StoreType, q.CustomerID, q.VehicleID, q.Status, q.TotalAmount, q.Notes, q.CreatedAt, q.UpdatedAt)
	return err
}

func upsertRepairOrderTx(tx *sql.Tx, o *models.RepairOrder) error {
	_, err := tx.Exec(`
	INSERT INTO repair_orders (id, store_id, store_type, quotation_id, vehicle_id, status, technician, total_amount, started_at, finished_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		store_id = excluded.store_id, store_type = excluded.store_type,
		quotation_id = excluded.quotation_id, vehicle_id = excluded.vehicle_id,
		status = excluded.status, technician = excluded.technician,
		total_amount = excluded.total_amount, started_at = excluded.started_at,
		finished_at = excluded.finished_at, updated_at = excluded.updated_at`,
		o.ID, o.StoreID, o.StoreType, o.QuotationID, o.VehicleID, o.Status, o.Technician, o.TotalAmount, o.StartedAt, o.FinishedAt, o.CreatedAt, o.UpdatedAt)
	return err
}

// =====================================================
// Reads
// =====================================================

// GetCustomer retrieves a customer by ID.
func (r *Repository) GetCustomer(id string) (*models.Customer, error) {
	stmt, err := r.PrepareStmt(`
	SELECT id, store_id, store_type, name, phone, email, address, created_at, COALESCE(updated_at, 0)
	FROM customers WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	var c models.Customer
	err = stmt.QueryRow(id).Scan(&c.ID, &c.StoreID, &c.StoreType, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetVehicle retrieves a vehicle by ID.
func (r *Repository) GetVehicle(id string) (*models.Vehicle, error) {
	stmt, err := r.PrepareStmt(`
	SELECT id, store_id, store_type, customer_id, plate_no, vin, make, model, year, color, created_at, COALESCE(updated_at, 0)
	FROM vehicles WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	var v models.Vehicle
	err = stmt.QueryRow(id).Scan(&v.ID, &v.StoreID, &v.StoreType, &v.CustomerID, &v.PlateNo, &v.VIN, &v.Make, &v.Model, &v.Year, &v.Color, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetQuotation retrieves a quotation by ID.
func (r *Repository) GetQuotation(id string) (*models.Quotation, error) {
	stmt, err := r.PrepareStmt(`
	SELECT id, store_id, store_type, customer_id, vehicle_id, status, total_amount, notes, created_at, COALESCE(updated_at, 0)
	FROM quotations WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	var q models.Quotation
	err = stmt.QueryRow(id).Scan(&q.ID, &q.StoreID, &q.StoreType, &q.CustomerID, &q.VehicleID, &q.Status, &q.TotalAmount, &q.Notes, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetRepairOrder retrieves a repair order by ID.
func (r *Repository) GetRepairOrder(id string) (*models.RepairOrder, error) {
	stmt, err := r.PrepareStmt(`
	SELECT id, store_id, store_type, quotation_id, vehicle_id, status, technician, total_amount, started_at, finished_at, created_at, COALESCE(updated_at, 0)
	FROM repair_orders WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	var o models.RepairOrder
	err = stmt.QueryRow(id).Scan(&o.ID, &o.StoreID, &o.StoreType, &o.QuotationID, &o.VehicleID, &o.Status, &o.Technician, &o.TotalAmount, &o.StartedAt, &o.FinishedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// =====================================================
// Download diff query
// =====================================================

// ChangedRecords returns the full current state of store-scoped rows
// whose modification timestamp is strictly greater than since, or
// whose timestamp is null (legacy rows are always due). Rows are
// ordered by (updatedAt, tableName, recordId) so a page boundary is
// stable even when many rows share a timestamp, and capped at limit.
func (r *Repository) ChangedRecords(storeID string, storeType models.StoreType, since int64, limit int) ([]models.DownloadRecord, error) {
	var records []models.DownloadRecord

	for _, table := range models.ReplicatedTables {
		batch, err := r.changedInTable(table, storeID, storeType, since)
		if err != nil {
			return nil, fmt.Errorf("failed to diff %s: %w", table, err)
		}
		records = append(records, batch...)
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt < b.UpdatedAt
		}
		if a.TableName != b.TableName {
			return a.TableName < b.TableName
		}
		return a.RecordID < b.RecordID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *Repository) changedInTable(table, storeID string, storeType models.StoreType, since int64) ([]models.DownloadRecord, error) {
	query := "SELECT id FROM " + table +
		" WHERE store_id = ? AND store_type = ? AND (updated_at IS NULL OR updated_at > ?)"
	rows, err := r.db.Query(query, storeID, string(storeType), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var records []models.DownloadRecord
	for _, id := range ids {
		rec, err := r.loadRecord(table, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// loadRecord serializes the current authoritative row state for the
// wire. The same shape is applied by upsert on the receiving side.
func (r *Repository) loadRecord(table, id string) (models.DownloadRecord, error) {
	var (
		row       interface{}
		updatedAt int64
		err       error
	)

	switch table {
	case models.Customer{}.TableName():
		var c *models.Customer
		if c, err = r.GetCustomer(id); err == nil {
			row, updatedAt = c, c.UpdatedAt
		}
	case models.Vehicle{}.TableName():
		var v *models.Vehicle
		if v, err = r.GetVehicle(id); err == nil {
			row, updatedAt = v, v.UpdatedAt
		}
	case models.Quotation{}.TableName():
		var q *models.Quotation
		if q, err = r.GetQuotation(id); err == nil {
			row, updatedAt = q, q.UpdatedAt
		}
	case models.RepairOrder{}.TableName():
		var o *models.RepairOrder
		if o, err = r.GetRepairOrder(id); err == nil {
			row, updatedAt = o, o.UpdatedAt
		}
	default:
		return models.DownloadRecord{}, fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		return models.DownloadRecord{}, err
	}

	payload, err := json.Marshal(row)
	if err != nil {
		return models.DownloadRecord{}, err
	}
	return models.DownloadRecord{
		TableName: table,
		RecordID:  id,
		UpdatedAt: updatedAt,
		Payload:   payload,
	}, nil
}
