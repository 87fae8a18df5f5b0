// Package identity resolves the stable machine key a node presents to
// central. Sources are probed in strict priority order: environment
// variable, sidecar file in the data directory, configured value, and
// finally a deterministic hardware fingerprint. The same binary can be
// deployed identically across environments and still produce a
// workable identity with zero configuration.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvMachineKey is the environment variable checked first.
const EnvMachineKey = "BODYSHOP_MACHINE_KEY"

// SidecarFileName is the machine key file probed in the data directory.
const SidecarFileName = "machine.key"

// Resolver resolves the node's machine key.
type Resolver struct {
	dataDir       string
	configuredKey string
}

// NewResolver creates a Resolver. configuredKey may be empty.
func NewResolver(dataDir, configuredKey string) *Resolver {
	return &Resolver{dataDir: dataDir, configuredKey: configuredKey}
}

// MachineKey resolves the machine key. It never fails: the hardware
// fingerprint is the last-resort stable fallback.
func (r *Resolver) MachineKey() string {
	if key := os.Getenv(EnvMachineKey); key != "" {
		return strings.TrimSpace(key)
	}

	if r.dataDir != "" {
		path := filepath.Join(r.dataDir, SidecarFileName)
		if data, err := os.ReadFile(path); err == nil {
			if key := strings.TrimSpace(string(data)); key != "" {
				return key
			}
		}
	}

	if r.configuredKey != "" {
		return r.configuredKey
	}

	return Fingerprint()
}

// Fingerprint derives a stable identity from the machine itself:
// hostname, OS description, and the first non-loopback network
// adapter's MAC address, hashed together.
func Fingerprint() string {
	hostname, _ := os.Hostname()

	parts := []string{
		hostname,
		runtime.GOOS + "/" + runtime.GOARCH,
		firstMAC(),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func firstMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}
