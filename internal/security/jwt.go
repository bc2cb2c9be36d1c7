package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims carries the JWT claims for an admin session token.
type AdminClaims struct {
	AdminID uint64 `json:"admin_id"`
	jwt.RegisteredClaims
}

// ErrMissingJWTSecret indicates the JWT secret is not configured.
var ErrMissingJWTSecret = errors.New("security: missing jwt secret")

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("security: invalid token")

// SignAdminToken issues a signed session token for the admin ID.
func SignAdminToken(secret string, adminID uint64, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingJWTSecret
	}
	now := time.Now().UTC()
	claims := AdminClaims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAdminToken validates a session token and returns its claims.
func ParseAdminToken(secret, raw string) (*AdminClaims, error) {
	if secret == "" {
		return nil, ErrMissingJWTSecret
	}
	var claims AdminClaims
	token, errParse := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if errParse != nil {
		return nil, errParse
	}
	if !token.Valid || claims.AdminID == 0 {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
