// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// migration pairs a version with its embedded DDL. Migrations are
// compiled into the binary so central and store nodes cannot drift
// from the schema their code expects.
type migration struct {
	version     int
	description string
	ddl         string
}

var migrations = []migration{
	{
		version:     1,
		description: "business tables",
		ddl: `
CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	store_id TEXT NOT NULL DEFAULT '',
	store_type TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER
);
CREATE TABLE IF NOT EXISTS vehicles (
	id TEXT PRIMARY KEY,
	store_id TEXT NOT NULL DEFAULT '',
	store_type TEXT NOT NULL DEFAULT '',
	customer_id TEXT NOT NULL DEFAULT '',
	plate_no TEXT NOT NULL DEFAULT '',
	vin TEXT NOT NULL DEFAULT '',
	make TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	color TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER
);
CREATE TABLE IF NOT EXISTS quotations (
	id TEXT PRIMARY KEY,
	store_id TEXT NOT NULL DEFAULT '',
	store_type TEXT NOT NULL DEFAULT '',
	customer_id TEXT NOT NULL DEFAULT '',
	vehicle_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	total_amount INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER
);
CREATE TABLE IF NOT EXISTS repair_orders (
	id TEXT PRIMARY KEY,
	store_id TEXT NOT NULL DEFAULT '',
	store_type TEXT NOT NULL DEFAULT '',
	quotation_id TEXT NOT NULL DEFAULT '',
	vehicle_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	technician TEXT NOT NULL DEFAULT '',
	total_amount INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL DEFAULT 0,
	finished_at INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_customers_store ON customers(store_id, store_type, updated_at);
CREATE INDEX IF NOT EXISTS idx_vehicles_store ON vehicles(store_id, store_type, updated_at);
CREATE INDEX IF NOT EXISTS idx_quotations_store ON quotations(store_id, store_type, updated_at);
CREATE INDEX IF NOT EXISTS idx_repair_orders_store ON repair_orders(store_id, store_type, updated_at);
`,
	},
	{
		version:     2,
		description: "change log",
		ddl: `
CREATE TABLE IF NOT EXISTS change_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	record_id TEXT NOT NULL,
	action TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	store_id TEXT NOT NULL DEFAULT '',
	store_type TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	payload TEXT
);
CREATE INDEX IF NOT EXISTS idx_change_log_unsynced ON change_log(synced, seq);
CREATE INDEX IF NOT EXISTS idx_change_log_retention ON change_log(synced, updated_at);
`,
	},
	{
		version:     3,
		description: "sync state and machine identities",
		ddl: `
CREATE TABLE IF NOT EXISTS store_sync_state (
	store_id TEXT NOT NULL,
	store_type TEXT NOT NULL,
	server_role TEXT NOT NULL DEFAULT '',
	last_origin TEXT NOT NULL DEFAULT '',
	last_upload_at INTEGER NOT NULL DEFAULT 0,
	last_download_at INTEGER NOT NULL DEFAULT 0,
	last_cursor INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (store_id, store_type)
);
CREATE TABLE IF NOT EXISTS machine_identities (
	machine_key_hash TEXT PRIMARY KEY,
	store_id TEXT NOT NULL,
	store_type TEXT NOT NULL,
	server_role TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS sync_cursor (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_sync_time INTEGER NOT NULL DEFAULT 0
);
`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// AppliedMigrations returns all applied migrations in version order.
func (m *Migrator) AppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		applied = append(applied, mig)
	}
	return applied, rows.Err()
}

// Up applies all pending migrations. A previously applied migration
// whose DDL no longer matches its recorded checksum is an error.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	applied, err := m.AppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	checksums := make(map[int]string, len(applied))
	for _, mig := range applied {
		checksums[mig.Version] = mig.Checksum
	}

	for _, mig := range migrations {
		sum := checksum(mig.ddl)
		if prev, ok := checksums[mig.version]; ok {
			if prev != sum {
				return fmt.Errorf("migration %d checksum mismatch", mig.version)
			}
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", mig.version, err)
		}
		if _, err := tx.Exec(mig.ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", mig.version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			mig.version, time.Now().Unix(), mig.description, sum,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", mig.version, err)
		}
	}
	return nil
}

func checksum(ddl string) string {
	sum := sha256.Sum256([]byte(ddl))
	return hex.EncodeToString(sum[:])
}
