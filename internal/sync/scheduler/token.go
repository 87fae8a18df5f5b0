// Package scheduler drives a store node's periodic sync against
// central: it batches unsynced change log entries, uploads them,
// downloads central-side changes, and maintains the session token.
package scheduler

import (
	"sync"

	"github.com/fixline/bodyshop/internal/models"
)

// tokenState tracks the credential lifecycle:
// NoToken -> Authenticating -> Valid -> (401) -> NoToken.
type tokenState int

const (
	stateNoToken tokenState = iota
	stateAuthenticating
	stateValid
)

// tokenHolder is the scheduler-owned token cache. It is scoped to the
// scheduler instance, not process-wide, so several store identities
// can run in one process under test without cross-talk.
type tokenHolder struct {
	mu       sync.Mutex
	state    tokenState
	token    string
	identity models.NodeIdentity
}

// get returns the cached token and identity if one is valid.
func (h *tokenHolder) get() (string, models.NodeIdentity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateValid {
		return "", models.NodeIdentity{}, false
	}
	return h.token, h.identity, true
}

// beginAuth transitions to Authenticating.
func (h *tokenHolder) beginAuth() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = stateAuthenticating
	h.token = ""
}

// set stores a fresh credential.
func (h *tokenHolder) set(login *models.LoginResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = stateValid
	h.token = login.Token
	h.identity = models.NodeIdentity{
		StoreID:    login.StoreID,
		StoreType:  login.StoreType,
		ServerRole: login.ServerRole,
	}
}

// clear drops the credential after a rejection. The identity is kept;
// it was true when issued and only the token expired.
func (h *tokenHolder) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = stateNoToken
	h.token = ""
}
