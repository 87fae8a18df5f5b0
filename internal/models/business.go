// Package models provides data model definitions for the Bodyshop sync core.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Customer is a shop customer. Rows are scoped to the store that owns
// them; the sync engine replicates them between that store and central.
type Customer struct {
	ID        UUID      `db:"id" json:"id"`
	StoreID   string    `db:"store_id" json:"storeId"`
	StoreType StoreType `db:"store_type" json:"storeType"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	CreatedAt int64     `db:"created_at" json:"createdAt"`
	UpdatedAt int64     `db:"updated_at" json:"updatedAt"`
}

// TableName returns the table name for Customer.
func (Customer) TableName() string {
	return "customers"
}

// Vehicle is a customer's vehicle on file at a store.
type Vehicle struct {
	ID         UUID      `db:"id" json:"id"`
	StoreID    string    `db:"store_id" json:"storeId"`
	StoreType  StoreType `db:"store_type" json:"storeType"`
	CustomerID UUID      `db:"customer_id" json:"customerId"`
	PlateNo    string    `db:"plate_no" json:"plateNo"`
	VIN        string    `db:"vin" json:"vin,omitempty"`
	Make       string    `db:"make" json:"make,omitempty"`
	Model      string    `db:"model" json:"model,omitempty"`
	Year       int       `db:"year" json:"year,omitempty"`
	Color      string    `db:"color" json:"color,omitempty"`
	CreatedAt  int64     `db:"created_at" json:"createdAt"`
	UpdatedAt  int64     `db:"updated_at" json:"updatedAt"`
}

// TableName returns the table name for Vehicle.
func (Vehicle) TableName() string {
	return "vehicles"
}

// Quotation is a repair quotation issued by a store. Amounts are in
// cents to avoid floating point drift across nodes.
type Quotation struct {
	ID          UUID      `db:"id" json:"id"`
	StoreID     string    `db:"store_id" json:"storeId"`
	StoreType   StoreType `db:"store_type" json:"storeType"`
	CustomerID  UUID      `db:"customer_id" json:"customerId"`
	VehicleID   UUID      `db:"vehicle_id" json:"vehicleId"`
	Status      string    `db:"status" json:"status"`
	TotalAmount int64     `db:"total_amount" json:"totalAmount"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   int64     `db:"created_at" json:"createdAt"`
	UpdatedAt   int64     `db:"updated_at" json:"updatedAt"`
}

// TableName returns the table name for Quotation.
func (Quotation) TableName() string {
	return "quotations"
}

// RepairOrder is a repair order opened from a quotation.
type RepairOrder struct {
	ID          UUID      `db:"id" json:"id"`
	StoreID     string    `db:"store_id" json:"storeId"`
	StoreType   StoreType `db:"store_type" json:"storeType"`
	QuotationID UUID      `db:"quotation_id" json:"quotationId,omitempty"`
	VehicleID   UUID      `db:"vehicle_id" json:"vehicleId"`
	Status      string    `db:"status" json:"status"`
	Technician  string    `db:"technician" json:"technician,omitempty"`
	TotalAmount int64     `db:"total_amount" json:"totalAmount"`
	StartedAt   int64     `db:"started_at" json:"startedAt,omitempty"`
	FinishedAt  int64     `db:"finished_at" json:"finishedAt,omitempty"`
	CreatedAt   int64     `db:"created_at" json:"createdAt"`
	UpdatedAt   int64     `db:"updated_at" json:"updatedAt"`
}

// TableName returns the table name for RepairOrder.
func (RepairOrder) TableName() string {
	return "repair_orders"
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (r *RepairOrder) UpdatedAtTime() time.Time {
	return time.Unix(r.UpdatedAt, 0)
}

// ReplicatedTables lists the business tables the sync engine tracks,
// in the fixed order used to interleave download pages.
var ReplicatedTables = []string{
	Customer{}.TableName(),
	Vehicle{}.TableName(),
	Quotation{}.TableName(),
	RepairOrder{}.TableName(),
}

// IsReplicatedTable reports whether the named table is tracked by the
// sync engine. Unknown tables are ignored, not rejected, so stores
// running older or newer schemas stay forward-compatible.
func IsReplicatedTable(name string) bool {
	for _, t := range ReplicatedTables {
		if t == name {
			return true
		}
	}
	return false
}
