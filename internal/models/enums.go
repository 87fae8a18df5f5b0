// Package models provides data model definitions for the Bodyshop sync core.
package models

import "fmt"

// SyncAction identifies the kind of mutation a change log entry describes.
type SyncAction string

const (
	ActionInsert SyncAction = "INSERT"
	ActionUpdate SyncAction = "UPDATE"
	ActionDelete SyncAction = "DELETE"
)

// Valid reports whether the action is one of the known values.
func (a SyncAction) Valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ParseSyncAction parses a wire-level action string.
func ParseSyncAction(s string) (SyncAction, error) {
	a := SyncAction(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown sync action %q", s)
	}
	return a, nil
}

// StoreType distinguishes directly-operated branches from franchises.
// A Direct and a Franchise store may share a storeId; the pair
// (storeId, storeType) is the unit of sync identity.
type StoreType string

const (
	StoreTypeDirect    StoreType = "DIRECT"
	StoreTypeFranchise StoreType = "FRANCHISE"
)

// Valid reports whether the store type is one of the known values.
func (t StoreType) Valid() bool {
	return t == StoreTypeDirect || t == StoreTypeFranchise
}

// ParseStoreType parses a wire-level store type string.
func ParseStoreType(s string) (StoreType, error) {
	t := StoreType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown store type %q", s)
	}
	return t, nil
}

// ServerRole is the role a running node plays in the sync topology.
// Roles are resolved once at the identity-lookup boundary; internal
// logic switches on the enum and never re-parses role strings.
type ServerRole string

const (
	RoleCentral        ServerRole = "CENTRAL"
	RoleDirectStore    ServerRole = "DIRECT_STORE"
	RoleFranchiseStore ServerRole = "FRANCHISE_STORE"
)

// Valid reports whether the role is one of the known values.
func (r ServerRole) Valid() bool {
	switch r {
	case RoleCentral, RoleDirectStore, RoleFranchiseStore:
		return true
	}
	return false
}

// IsStore reports whether the role is a store-side role.
func (r ServerRole) IsStore() bool {
	return r == RoleDirectStore || r == RoleFranchiseStore
}

// StoreType returns the store type implied by a store-side role.
// RoleCentral has no store type; the zero value is returned.
func (r ServerRole) StoreType() StoreType {
	switch r {
	case RoleDirectStore:
		return StoreTypeDirect
	case RoleFranchiseStore:
		return StoreTypeFranchise
	}
	return ""
}

// ParseServerRole parses a wire-level server role string.
func ParseServerRole(s string) (ServerRole, error) {
	r := ServerRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown server role %q", s)
	}
	return r, nil
}
