package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
)

type contextKey string

const identityKey contextKey = "sync-identity"

// IdentityFromContext returns the credential-bound identity placed by
// RequireIdentity.
func IdentityFromContext(ctx context.Context) (models.NodeIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(models.NodeIdentity)
	return identity, ok
}

// WithIdentity returns a context carrying the identity. Exposed for
// handler tests.
func WithIdentity(ctx context.Context, identity models.NodeIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// RequireIdentity wraps a handler with bearer-token verification. A
// missing or invalid credential, or one without identity claims, is a
// hard 401.
func RequireIdentity(issuer *Issuer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		identity, err := issuer.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			logging.Warn("Rejected request with invalid credential",
				map[string]interface{}{"remote": r.RemoteAddr})
			http.Error(w, "invalid credential", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
