// Package sync implements the store-to-central synchronization engine:
// identity-guarded upload and download handling on the central side,
// and the HTTP client the store scheduler drives.
package sync

import (
	"fmt"

	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/models"
)

// GuardBatch validates that any identity the batch claims matches the
// credential-bound identity, then overwrites the batch's identity
// fields with the credential's. A payload-declared identity can never
// override the credential; a compromised or misconfigured client
// cannot write into another store's sync scope.
func GuardBatch(identity models.NodeIdentity, batch *models.SyncBatch) error {
	if err := guardField("storeId", batch.StoreID, identity.StoreID); err != nil {
		return err
	}
	if err := guardField("storeType", string(batch.StoreType), string(identity.StoreType)); err != nil {
		return err
	}
	if err := guardField("serverRole", string(batch.ServerRole), string(identity.ServerRole)); err != nil {
		return err
	}

	batch.StoreID = identity.StoreID
	batch.StoreType = identity.StoreType
	batch.ServerRole = identity.ServerRole
	return nil
}

// GuardQuery validates identity values passed as query parameters
// against the credential-bound identity.
func GuardQuery(identity models.NodeIdentity, storeID, storeType string) error {
	if err := guardField("storeId", storeID, identity.StoreID); err != nil {
		return err
	}
	return guardField("storeType", storeType, string(identity.StoreType))
}

// guardField rejects a claimed value that disagrees with the
// credential. Empty claims are allowed; the credential fills them in.
func guardField(name, claimed, bound string) error {
	if claimed != "" && claimed != bound {
		return errors.Wrap(errors.ErrIdentityMismatch,
			"request identity does not match credential",
			fmt.Errorf("%s %q does not match credential %q", name, claimed, bound))
	}
	return nil
}

// RequireStore rejects credentials that do not belong to a store-side
// node. Central's own credential cannot be used to feed the sync
// endpoints.
func RequireStore(identity models.NodeIdentity) error {
	if !identity.ServerRole.IsStore() {
		return errors.New(errors.ErrIdentityMismatch, "credential is not bound to a store")
	}
	return nil
}
