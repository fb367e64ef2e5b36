package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerIDKey = "owner_id"

// Claims are the bearer token claims. The subject is the owner id every record is
// scoped to; tokens are issued elsewhere.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for owner. Used by tooling and tests.
func GenerateToken(ownerID, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// AuthMiddleware verifies the bearer token and stores the owner id on the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			writeError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("%w: authorization header required", ErrUnauthorized))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("%w: invalid authorization header format", ErrUnauthorized))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
			writeError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("%w: invalid or expired token", ErrUnauthorized))
			return
		}

		c.Set(ownerIDKey, claims.Subject)
		c.Next()
	}
}

// OwnerID returns the authenticated owner id.
func OwnerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}
