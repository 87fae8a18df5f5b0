// Package handlers provides the central server's HTTP handler layer.
package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/fixline/bodyshop/internal/auth"
	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
	"github.com/fixline/bodyshop/internal/sync"
)

// SyncHandler serves POST /sync/upload and GET /sync/changes.
type SyncHandler struct {
	service *sync.Service
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(service *sync.Service) *SyncHandler {
	return &SyncHandler{service: service}
}

// Upload handles POST /sync/upload. The caller's identity comes from
// the verified credential; any identity the body claims is validated
// against it and then discarded.
func (h *SyncHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}
	if err := sync.RequireStore(identity); err != nil {
		http.Error(w, "credential is not store-bound", http.StatusForbidden)
		return
	}

	var batch models.SyncBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := sync.GuardBatch(identity, &batch); err != nil {
		logging.Warn("Rejected upload with mismatched identity",
			map[string]interface{}{
				"credential": identity.StoreID,
				"claimed":    batch.StoreID,
				"remote":     r.RemoteAddr,
			})
		http.Error(w, "identity mismatch", http.StatusForbidden)
		return
	}

	result, err := h.service.Upload(r.Context(), identity, remoteIP(r), batch)
	if err != nil {
		logging.Error("Upload failed", err,
			map[string]interface{}{"storeId": identity.StoreID})
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Changes handles GET /sync/changes.
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}
	if err := sync.RequireStore(identity); err != nil {
		http.Error(w, "credential is not store-bound", http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	if err := sync.GuardQuery(identity, q.Get("storeId"), q.Get("storeType")); err != nil {
		logging.Warn("Rejected download with mismatched identity",
			map[string]interface{}{
				"credential": identity.StoreID,
				"claimed":    q.Get("storeId"),
				"remote":     r.RemoteAddr,
			})
		http.Error(w, "identity mismatch", http.StatusForbidden)
		return
	}

	var since int64
	if raw := q.Get("lastSyncTime"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid lastSyncTime", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid pageSize", http.StatusBadRequest)
			return
		}
		pageSize = parsed
	}

	diff, err := h.service.Download(r.Context(), identity, remoteIP(r), since, pageSize)
	if err != nil {
		logging.Error("Download failed", err,
			map[string]interface{}{"storeId": identity.StoreID})
		http.Error(w, "download failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, diff)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
