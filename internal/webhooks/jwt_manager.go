package webhooks

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTManager signs the bearer tokens attached to status callbacks, so receivers can
// verify the payload came from this anchor.
type JWTManager struct {
	secret                 []byte
	expirationMilliseconds int64
}

func NewJWTManager(secret string, expirationMilliseconds int64) (*JWTManager, error) {
	const minSecretSize = 12
	if len(secret) < minSecretSize {
		return nil, fmt.Errorf("secret is required to have at least %d characters", minSecretSize)
	}

	const minExpirationMilliseconds = 5000
	if expirationMilliseconds < minExpirationMilliseconds {
		return nil, fmt.Errorf("expiration milliseconds is required to be at least %d", minExpirationMilliseconds)
	}

	return &JWTManager{secret: []byte(secret), expirationMilliseconds: expirationMilliseconds}, nil
}

// GenerateCallbackToken generates a token whose ID is the transaction ID being notified.
func (manager *JWTManager) GenerateCallbackToken(transactionID string) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        transactionID,
		Subject:   "anchor-deposits-processor",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Millisecond * time.Duration(manager.expirationMilliseconds))),
	}
	if err := claims.Valid(); err != nil {
		return "", fmt.Errorf("validating token claims: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(manager.secret)
	if err != nil {
		return "", fmt.Errorf("signing callback token: %w", err)
	}

	return signedToken, nil
}

// ParseCallbackTokenClaims parses and verifies a callback token. Meant for tests and for
// receivers built on this package.
func (manager *JWTManager) ParseCallbackTokenClaims(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return manager.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing callback token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
