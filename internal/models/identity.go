// Package models provides data model definitions for the Bodyshop sync core.
package models

// NodeIdentity is the (storeId, storeType, serverRole) triple a node
// acts as. It is resolved once at the identity-lookup boundary and
// bound into the node's session credential; transport guards compare
// it against any identity claimed in request payloads.
type NodeIdentity struct {
	StoreID    string     `json:"storeId"`
	StoreType  StoreType  `json:"storeType"`
	ServerRole ServerRole `json:"serverRole"`
}

// Valid reports whether the triple is fully populated with known
// enum values. Central identities carry no store type.
func (n NodeIdentity) Valid() bool {
	if !n.ServerRole.Valid() {
		return false
	}
	if n.ServerRole == RoleCentral {
		return true
	}
	return n.StoreID != "" && n.StoreType.Valid()
}
