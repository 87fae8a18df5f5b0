package auth

import (
	stderrors "errors"

	"github.com/fixline/bodyshop/internal/db"
	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
)

// Authenticator exchanges machine keys for session tokens.
type Authenticator struct {
	repo   *db.Repository
	issuer *Issuer
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(repo *db.Repository, issuer *Issuer) *Authenticator {
	return &Authenticator{repo: repo, issuer: issuer}
}

// Login resolves the machine key through the identity lookup table
// and issues a token with the resolved triple as claims.
func (a *Authenticator) Login(machineKey string) (*models.LoginResponse, error) {
	if machineKey == "" {
		return nil, errors.New(errors.ErrUnauthorized, "machine key is required")
	}

	identity, err := a.repo.LookupMachineIdentity(machineKey)
	if err != nil {
		if stderrors.Is(err, db.ErrUnknownMachineKey) {
			logging.Warn("Login attempt with unknown machine key", nil)
			return nil, errors.New(errors.ErrUnauthorized, "unknown machine key")
		}
		return nil, errors.Wrap(errors.ErrDatabase, "machine identity lookup failed", err)
	}

	token, err := a.issuer.Issue(*identity)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "token issuance failed", err)
	}

	return &models.LoginResponse{
		Token:      token,
		StoreID:    identity.StoreID,
		StoreType:  identity.StoreType,
		ServerRole: identity.ServerRole,
	}, nil
}
