package sync

import (
	"testing"

	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/models"
)

func directIdentity() models.NodeIdentity {
	return models.NodeIdentity{
		StoreID:    "S1",
		StoreType:  models.StoreTypeDirect,
		ServerRole: models.RoleDirectStore,
	}
}

func TestGuardBatchOverwritesEmptyClaims(t *testing.T) {
	identity := directIdentity()
	batch := models.SyncBatch{}

	if err := GuardBatch(identity, &batch); err != nil {
		t.Fatalf("GuardBatch() error = %v", err)
	}
	if batch.StoreID != "S1" || batch.StoreType != models.StoreTypeDirect || batch.ServerRole != models.RoleDirectStore {
		t.Errorf("batch identity = %s/%s/%s, want credential identity",
			batch.StoreID, batch.StoreType, batch.ServerRole)
	}
}

func TestGuardBatchAcceptsMatchingClaims(t *testing.T) {
	identity := directIdentity()
	batch := models.SyncBatch{
		StoreID:    "S1",
		StoreType:  models.StoreTypeDirect,
		ServerRole: models.RoleDirectStore,
	}

	if err := GuardBatch(identity, &batch); err != nil {
		t.Errorf("matching claims should pass, got %v", err)
	}
}

func TestGuardBatchRejectsMismatch(t *testing.T) {
	identity := directIdentity()

	cases := []struct {
		name  string
		batch models.SyncBatch
	}{
		{"storeId", models.SyncBatch{StoreID: "S2"}},
		{"storeType", models.SyncBatch{StoreType: models.StoreTypeFranchise}},
		{"serverRole", models.SyncBatch{ServerRole: models.RoleFranchiseStore}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := GuardBatch(identity, &tc.batch)
			if !errors.Is(err, errors.ErrIdentityMismatch) {
				t.Errorf("error = %v, want identity mismatch", err)
			}
		})
	}
}

func TestGuardQuery(t *testing.T) {
	identity := directIdentity()

	if err := GuardQuery(identity, "", ""); err != nil {
		t.Errorf("empty query identity should pass, got %v", err)
	}
	if err := GuardQuery(identity, "S1", "DIRECT"); err != nil {
		t.Errorf("matching query identity should pass, got %v", err)
	}
	if err := GuardQuery(identity, "S2", ""); !errors.Is(err, errors.ErrIdentityMismatch) {
		t.Errorf("foreign storeId should be refused, got %v", err)
	}
	if err := GuardQuery(identity, "S1", "FRANCHISE"); !errors.Is(err, errors.ErrIdentityMismatch) {
		t.Errorf("foreign storeType should be refused, got %v", err)
	}
}

func TestRequireStore(t *testing.T) {
	if err := RequireStore(directIdentity()); err != nil {
		t.Errorf("store credential should pass, got %v", err)
	}
	central := models.NodeIdentity{ServerRole: models.RoleCentral}
	if err := RequireStore(central); !errors.Is(err, errors.ErrIdentityMismatch) {
		t.Errorf("central credential should be refused, got %v", err)
	}
}
