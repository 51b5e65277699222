package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/subwave/billing-service/internal/domain/models"
)

// Claims are the token claims issued by the identity service
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// TokenManager validates and issues HMAC-signed JWT tokens. Tokens are
// normally issued by the identity service; local issuance exists for
// development tooling and tests.
type TokenManager struct {
	secretKey []byte
	method    jwt.SigningMethod
}

// NewTokenManager creates a token manager for the given shared secret and
// HMAC algorithm (HS256, HS384 or HS512)
func NewTokenManager(secretKey, algorithm string) (*TokenManager, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("signing key must not be empty")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm: %s", algorithm)
	}
	if !strings.HasPrefix(algorithm, "HS") {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}

	return &TokenManager{
		secretKey: []byte(secretKey),
		method:    method,
	}, nil
}

// GenerateToken issues a token for the given user
func (tm *TokenManager) GenerateToken(userID string, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(tm.method, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken verifies the token signature and expiry and returns its
// claims
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if token.Method.Alg() != tm.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
		}
		return tm.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing user_id claim")
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("token user_id is not a valid UUID")
	}

	return claims, nil
}
