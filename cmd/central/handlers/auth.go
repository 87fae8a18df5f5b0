package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fixline/bodyshop/internal/auth"
	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
)

// AuthHandler serves POST /auth/login.
type AuthHandler struct {
	authenticator *auth.Authenticator
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authenticator: authenticator}
}

// Login exchanges a machine key for a session token carrying the
// node's resolved sync identity.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.authenticator.Login(req.MachineKey)
	if err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		logging.Error("Login failed", err, nil)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
