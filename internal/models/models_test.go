// Package models tests for enums and model helpers.
package models

import (
	"testing"
)

// TestParseSyncAction verifies action parsing accepts only the closed set.
func TestParseSyncAction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SyncAction
		wantErr bool
	}{
		{"insert", "INSERT", ActionInsert, false},
		{"update", "UPDATE", ActionUpdate, false},
		{"delete", "DELETE", ActionDelete, false},
		{"lowercase rejected", "insert", "", true},
		{"empty rejected", "", "", true},
		{"garbage rejected", "UPSERT", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSyncAction(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSyncAction(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSyncAction(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseStoreType verifies store type parsing.
func TestParseStoreType(t *testing.T) {
	if _, err := ParseStoreType("DIRECT"); err != nil {
		t.Errorf("DIRECT should parse: %v", err)
	}
	if _, err := ParseStoreType("FRANCHISE"); err != nil {
		t.Errorf("FRANCHISE should parse: %v", err)
	}
	if _, err := ParseStoreType("direct"); err == nil {
		t.Error("free-text store type should be rejected")
	}
	if _, err := ParseStoreType(""); err == nil {
		t.Error("empty store type should be rejected")
	}
}

// TestServerRoleHelpers verifies role classification.
func TestServerRoleHelpers(t *testing.T) {
	if RoleCentral.IsStore() {
		t.Error("CENTRAL is not a store role")
	}
	if !RoleDirectStore.IsStore() || !RoleFranchiseStore.IsStore() {
		t.Error("store roles should report IsStore")
	}
	if RoleDirectStore.StoreType() != StoreTypeDirect {
		t.Errorf("DIRECT_STORE implies DIRECT, got %q", RoleDirectStore.StoreType())
	}
	if RoleFranchiseStore.StoreType() != StoreTypeFranchise {
		t.Errorf("FRANCHISE_STORE implies FRANCHISE, got %q", RoleFranchiseStore.StoreType())
	}
	if RoleCentral.StoreType() != "" {
		t.Error("CENTRAL has no store type")
	}
}

// TestJoinRecordID verifies composite key concatenation.
func TestJoinRecordID(t *testing.T) {
	if got := JoinRecordID("a"); got != "a" {
		t.Errorf("single part = %q, want %q", got, "a")
	}
	if got := JoinRecordID("ORD-1", "LINE-2"); got != "ORD-1|LINE-2" {
		t.Errorf("composite = %q, want %q", got, "ORD-1|LINE-2")
	}
}

// TestChangeLogEntryHasOrigin verifies origin completeness checks.
func TestChangeLogEntryHasOrigin(t *testing.T) {
	e := ChangeLogEntry{StoreID: "S1", StoreType: StoreTypeDirect}
	if !e.HasOrigin() {
		t.Error("populated origin should report HasOrigin")
	}

	blank := ChangeLogEntry{}
	if blank.HasOrigin() {
		t.Error("blank origin should not report HasOrigin")
	}

	partial := ChangeLogEntry{StoreID: "S1"}
	if partial.HasOrigin() {
		t.Error("missing store type should not report HasOrigin")
	}
}

// TestNodeIdentityValid verifies identity validation per role.
func TestNodeIdentityValid(t *testing.T) {
	central := NodeIdentity{ServerRole: RoleCentral}
	if !central.Valid() {
		t.Error("central identity needs no store fields")
	}

	store := NodeIdentity{StoreID: "S1", StoreType: StoreTypeFranchise, ServerRole: RoleFranchiseStore}
	if !store.Valid() {
		t.Error("complete store identity should be valid")
	}

	noID := NodeIdentity{StoreType: StoreTypeDirect, ServerRole: RoleDirectStore}
	if noID.Valid() {
		t.Error("store identity without storeId should be invalid")
	}

	noRole := NodeIdentity{StoreID: "S1", StoreType: StoreTypeDirect}
	if noRole.Valid() {
		t.Error("identity without role should be invalid")
	}
}

// TestIsReplicatedTable verifies the tracked table set.
func TestIsReplicatedTable(t *testing.T) {
	for _, table := range []string{"customers", "vehicles", "quotations", "repair_orders"} {
		if !IsReplicatedTable(table) {
			t.Errorf("%s should be replicated", table)
		}
	}
	if IsReplicatedTable("foo") {
		t.Error("unknown table should not be replicated")
	}
	if IsReplicatedTable("change_log") {
		t.Error("the change log itself is never replicated")
	}
}

// TestChangeLogEntryTableNameField verifies the table an entry
// describes is carried by the TableName field. The entry type cannot
// also have a TableName() method; Go forbids the collision.
func TestChangeLogEntryTableNameField(t *testing.T) {
	e := ChangeLogEntry{TableName: Customer{}.TableName(), RecordID: "c1", Action: ActionInsert}
	if e.TableName != "customers" {
		t.Errorf("TableName = %q, want customers", e.TableName)
	}
	if !IsReplicatedTable(e.TableName) {
		t.Error("an entry for a business table must name a replicated table")
	}
}
