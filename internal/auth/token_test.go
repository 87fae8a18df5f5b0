package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/models"
)

const testSecret = "test-secret-but-long-enough"

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	want := models.NodeIdentity{
		StoreID:    "S1",
		StoreType:  models.StoreTypeFranchise,
		ServerRole: models.RoleFranchiseStore,
	}

	token, err := issuer.Issue(want)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIssueVerifyCentralIdentity(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	token, err := issuer.Issue(models.NodeIdentity{ServerRole: models.RoleCentral})
	require.NoError(t, err)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCentral, got.ServerRole)
	assert.Empty(t, got.StoreID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	other := NewIssuer("a-different-secret", time.Hour)

	token, err := other.Issue(models.NodeIdentity{
		StoreID: "S1", StoreType: models.StoreTypeDirect, ServerRole: models.RoleDirectStore,
	})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewIssuer(testSecret, -time.Minute)

	token, err := issuer.Issue(models.NodeIdentity{
		StoreID: "S1", StoreType: models.StoreTypeDirect, ServerRole: models.RoleDirectStore,
	})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestVerifyRejectsMissingIdentityClaims(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	// A structurally valid token signed with the right secret but
	// carrying no identity claims must still be refused.
	bare := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := bare.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestVerifyRejectsStoreRoleWithoutStoreID(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	partial := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		StoreType:  string(models.StoreTypeDirect),
		ServerRole: string(models.RoleDirectStore),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := partial.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestVerifyRejectsUnexpectedAlg(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		StoreID:    "S1",
		StoreType:  string(models.StoreTypeDirect),
		ServerRole: string(models.RoleDirectStore),
	})
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.Error(t, err)
}

func TestRequireIdentityMissingToken(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	handler := RequireIdentity(issuer, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a credential")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/upload", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireIdentityInvalidToken(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	handler := RequireIdentity(issuer, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad credential")
	}))

	req := httptest.NewRequest(http.MethodPost, "/sync/upload", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireIdentityPassesIdentityThrough(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	want := models.NodeIdentity{
		StoreID: "S1", StoreType: models.StoreTypeDirect, ServerRole: models.RoleDirectStore,
	}
	token, err := issuer.Issue(want)
	require.NoError(t, err)

	var seen models.NodeIdentity
	handler := RequireIdentity(issuer, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		seen = identity
	}))

	req := httptest.NewRequest(http.MethodPost, "/sync/upload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, seen)
}

func TestLoginUnknownKey(t *testing.T) {
	// Authenticator over an empty identity table: any key is unknown.
	repo := openAuthTestRepo(t)
	auth := NewAuthenticator(repo, NewIssuer(testSecret, time.Hour))

	_, err := auth.Login("nobody")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = auth.Login("")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestLoginIssuesTokenForKnownKey(t *testing.T) {
	repo := openAuthTestRepo(t)
	issuer := NewIssuer(testSecret, time.Hour)
	auth := NewAuthenticator(repo, issuer)

	identity := models.NodeIdentity{
		StoreID: "S7", StoreType: models.StoreTypeFranchise, ServerRole: models.RoleFranchiseStore,
	}
	require.NoError(t, repo.RegisterMachineIdentity("key-s7", identity))

	resp, err := auth.Login("key-s7")
	require.NoError(t, err)
	assert.Equal(t, "S7", resp.StoreID)
	assert.Equal(t, models.StoreTypeFranchise, resp.StoreType)
	assert.Equal(t, models.RoleFranchiseStore, resp.ServerRole)

	got, err := issuer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}
