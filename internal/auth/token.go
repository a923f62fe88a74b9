// Package auth provides token issuance and credential checks.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
)

// Claims carries the token payload. Only the user id is encoded; the
// rest of the identity is resolved from the store per request.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed bearer tokens. Verification
// is pure: there is no revocation list, expiry is the only
// invalidation mechanism.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService creates a TokenService signing with the given secret.
// Returns an error for an empty secret so a misconfigured deployment
// fails at startup rather than issuing forgeable tokens.
func NewTokenService(secret string, expiry time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if expiry <= 0 {
		expiry = 168 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		expiry: expiry,
	}, nil
}

// Expiry returns the configured token lifetime.
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}

// Issue produces a signed, time-limited token bound to the user id.
func (s *TokenService) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the encoded user id.
// Any malformed, tampered or expired token fails closed with
// domain.ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return uuid.Nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return userID, nil
}
