// Package auth verifies and issues the signed session tokens presented in
// connection handshakes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWT is an HMAC-signed token verifier/issuer implementing core.TokenVerifier.
type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl}
}

// Verify parses and validates a token, returning the embedded user id. Any
// failure (missing, malformed, bad signature, expired) maps to ErrAuthFailed;
// the original cause stays wrapped for logs.
func (j *JWT) Verify(token string) (domain.UserID, error) {
	if token == "" {
		return "", core.ErrAuthFailed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return "", errors.Join(core.ErrAuthFailed, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return "", core.ErrAuthFailed
	}
	return domain.UserID(claims.UserID), nil
}

// Issue signs a session token for the user.
func (j *JWT) Issue(uid domain.UserID) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: string(uid),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}
