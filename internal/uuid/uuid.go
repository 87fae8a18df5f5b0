// Package uuid generates the v4 identifiers used as business row keys
// and provisioned machine keys.
package uuid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh v4 identifier. Rows created locally are keyed
// this way; record ids arriving over sync are taken as-is.
func New() string {
	return uuid.New().String()
}

// NewMachineKey returns a generated machine key for provisioning: a v4
// identifier without dashes, so it pastes cleanly into config files
// and sidecar key files.
func NewMachineKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
