package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Context keys set by RequireAuth.
const (
	ContextCaller = "caller"
	ContextRole   = "role"
)

// Caller roles.
const (
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
	// RoleService is assigned to callers authenticated by API key.
	RoleService = "service"
)

const apiKeyHeader = "X-API-Key"

// JWTClaims represents the JWT token claims.
type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates callers by HMAC signed bearer token or by an
// API key checked against bcrypt hashes.
type AuthMiddleware struct {
	secretKey    []byte
	apiKeyHashes [][]byte
	now          func() time.Time
}

// NewAuthMiddleware creates a new authentication middleware. Empty hashes
// are ignored.
func NewAuthMiddleware(secretKey string, apiKeyHashes []string) *AuthMiddleware {
	am := &AuthMiddleware{secretKey: []byte(secretKey), now: time.Now}
	for _, h := range apiKeyHashes {
		if h = strings.TrimSpace(h); h != "" {
			am.apiKeyHashes = append(am.apiKeyHashes, []byte(h))
		}
	}
	return am
}

// RequireAuth rejects requests without a valid API key or bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(apiKeyHeader); key != "" {
			if !am.ValidateAPIKey(key) {
				abortUnauthorized(c, "Invalid API key")
				return
			}
			c.Set(ContextCaller, "api-key")
			c.Set(ContextRole, RoleService)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header or X-API-Key required")
			return
		}

		// Bearer prefix is case-insensitive (RFC 6750)
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") || tokenParts[1] == "" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := am.ValidateToken(tokenParts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "Token expired")
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		role := claims.Role
		if role == "" {
			role = RoleAnalyst
		}
		c.Set(ContextCaller, claims.Subject)
		c.Set(ContextRole, role)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// ValidateAPIKey reports whether key matches one of the configured hashes.
func (am *AuthMiddleware) ValidateAPIKey(key string) bool {
	for _, h := range am.apiKeyHashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// GenerateToken signs a token for subject with the given role.
func (am *AuthMiddleware) GenerateToken(subject, role string, duration time.Duration) (string, error) {
	now := am.now()
	claims := &JWTClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.secretKey)
}

// ValidateToken validates a JWT token and returns claims.
func (am *AuthMiddleware) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.secretKey, nil
	}, jwt.WithTimeFunc(am.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// HashAPIKey returns the bcrypt hash to put in security.api_key_hashes.
func HashAPIKey(key string, cost int) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("api key must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(h), nil
}
