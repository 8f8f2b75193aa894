// Package auth turns access tokens issued by the identity provider into an
// Identity. Tokens are HS256 JWTs sharing a secret with the provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the identity attributes an
// access list can match on.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string `json:"user_id"`
	ProviderID string `json:"provider_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// GenerateToken signs a token for identity. The server itself never issues
// tokens; this is used by tests and the client's dev tooling.
func GenerateToken(identity models.Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID:     identity.UserID,
		ProviderID: identity.ProviderID,
		Email:      identity.Email,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// IdentityFromToken validates tokenString and returns its identity. Expired
// tokens yield common.ErrTokenExpired, anything else that fails validation
// common.ErrInvalidToken.
func IdentityFromToken(tokenString string, secretKey []byte) (models.Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, common.ErrTokenExpired
		}
		return models.Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return models.Identity{}, common.ErrInvalidToken
	}

	id := models.Identity{UserID: claims.UserID, ProviderID: claims.ProviderID, Email: claims.Email}
	if id.UserID == "" {
		id.UserID = claims.Subject
	}
	if id.Anonymous() {
		return models.Identity{}, fmt.Errorf("%w: token names nobody", common.ErrInvalidToken)
	}
	return id, nil
}

type ctxKey struct{}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFrom returns the identity stored in ctx, or the anonymous identity.
func IdentityFrom(ctx context.Context) models.Identity {
	id, _ := ctx.Value(ctxKey{}).(models.Identity)
	return id
}
