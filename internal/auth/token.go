// Package auth issues and verifies the bearer credentials that bind a
// node's sync identity to its requests.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/models"
)

// Claims are the JWT claims carried by a node's session credential.
// The store identity triple is embedded at login and can never be
// overridden by request payloads.
type Claims struct {
	StoreID    string `json:"storeId"`
	StoreType  string `json:"storeType"`
	ServerRole string `json:"serverRole"`
	jwt.RegisteredClaims
}

// Issuer signs session tokens for resolved node identities.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. The secret must be non-empty; that is
// enforced at configuration load, not here.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token embedding the identity triple.
func (i *Issuer) Issue(identity models.NodeIdentity) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		StoreID:    identity.StoreID,
		StoreType:  string(identity.StoreType),
		ServerRole: string(identity.ServerRole),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bodyshop-central",
			Subject:   identity.StoreID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and extracts the identity triple. Absent
// or malformed identity claims are a hard failure, never a default.
func (i *Issuer) Verify(tokenString string) (models.NodeIdentity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return models.NodeIdentity{}, errors.Wrap(errors.ErrUnauthorized, "invalid token", err)
	}

	role, err := models.ParseServerRole(claims.ServerRole)
	if err != nil {
		return models.NodeIdentity{}, errors.Wrap(errors.ErrUnauthorized, "missing server role claim", err)
	}

	identity := models.NodeIdentity{
		StoreID:    claims.StoreID,
		ServerRole: role,
	}
	if role.IsStore() {
		storeType, err := models.ParseStoreType(claims.StoreType)
		if err != nil {
			return models.NodeIdentity{}, errors.Wrap(errors.ErrUnauthorized, "missing store type claim", err)
		}
		identity.StoreType = storeType
		if identity.StoreID == "" {
			return models.NodeIdentity{}, errors.New(errors.ErrUnauthorized, "missing store id claim")
		}
	}
	return identity, nil
}
