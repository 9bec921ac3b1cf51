// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates bearer tokens and enforces role requirements.
// Auth stores the caller under the ContextUserID and ContextUserRole keys;
// every downstream middleware and handler reads identity from there.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/auth"
)

// Gin context keys set by Auth.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// TokenParser validates a bearer token; satisfied by *auth.TokenIssuer.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthOptions tunes Auth.
type AuthOptions struct {
	// AllowQueryToken also accepts ?token=, for clients that cannot set
	// headers on a WebSocket handshake.
	AllowQueryToken bool
}

// Auth rejects requests without a valid bearer token with 401.
func Auth(parser TokenParser, opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" && opts.AllowQueryToken {
			tok = strings.TrimSpace(c.Query("token"))
		}
		if tok == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "No token, authorization denied")
			return
		}
		claims, err := parser.Parse(tok)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Token is not valid")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed with 403. It must run
// after Auth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[UserRole(c)]; !ok {
			abortJSON(c, http.StatusForbidden, "forbidden", "Access denied")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" when Auth did not run.
func UserID(c *gin.Context) string {
	return contextString(c, ContextUserID)
}

// UserRole returns the authenticated role, or "".
func UserRole(c *gin.Context) string {
	return contextString(c, ContextUserRole)
}

func contextString(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// abortJSON writes the error envelope shared with the handlers package.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
