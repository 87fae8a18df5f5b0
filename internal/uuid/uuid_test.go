package uuid

import (
	"strings"
	"testing"

	googleuuid "github.com/google/uuid"
)

func TestNewIsV4(t *testing.T) {
	id, err := googleuuid.Parse(New())
	if err != nil {
		t.Fatalf("New() produced an unparseable id: %v", err)
	}
	if id.Version() != 4 {
		t.Errorf("version = %d, want 4", id.Version())
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNewMachineKey(t *testing.T) {
	key := NewMachineKey()
	if len(key) != 32 {
		t.Errorf("machine key length = %d, want 32", len(key))
	}
	if strings.Contains(key, "-") {
		t.Error("machine key must not contain dashes")
	}
	if key == NewMachineKey() {
		t.Error("machine keys must be unique")
	}
}
