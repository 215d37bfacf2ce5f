package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by Middleware on successful key validation.
const (
	ContextKeyAPIKey      = "apiKey"
	ContextKeyAccountAddr = "authAccountAddr"
)

// credential pulls the API key from the request. Authorization wins over
// X-API-Key when both are present.
func credential(c *gin.Context) string {
	if v := c.GetHeader("Authorization"); v != "" {
		return v
	}
	return c.GetHeader("X-API-Key")
}

// Middleware validates the request's API key, if any, and records the key
// and account address in the gin context. It never rejects on its own;
// pair it with RequireAuth on routes that need an identity.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := credential(c); raw != "" {
			if key, err := m.ValidateKey(c.Request.Context(), raw); err == nil {
				c.Set(ContextKeyAPIKey, key)
				c.Set(ContextKeyAccountAddr, key.AccountAddr)
			}
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 unless Middleware validated a key earlier
// in the chain.
func RequireAuth(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer sk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireOwnership aborts unless the authenticated account matches the
// address in the named URL parameter. Comparison is case-insensitive.
func RequireOwnership(m *Manager, paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := GetAPIKey(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required.",
			})
			return
		}
		if !strings.EqualFold(key.AccountAddr, c.Param(paramName)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You do not own this account.",
			})
			return
		}
		c.Next()
	}
}

// AdminMiddleware guards staff routes with a shared secret header. An
// empty secret disables the routes outright rather than leaving them open.
func AdminMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Admin-Secret") != secret {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin access denied.",
			})
			return
		}
		c.Next()
	}
}

// GetAPIKey returns the validated key for this request, if any.
func GetAPIKey(c *gin.Context) (*APIKey, bool) {
	v, ok := c.Get(ContextKeyAPIKey)
	if !ok {
		return nil, false
	}
	key, ok := v.(*APIKey)
	return key, ok
}

// GetAuthenticatedAccount returns the caller's address, or "" when the
// request carried no valid key.
func GetAuthenticatedAccount(c *gin.Context) string {
	return c.GetString(ContextKeyAccountAddr)
}

// IsAuthenticated reports whether Middleware validated a key.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := c.Get(ContextKeyAPIKey)
	return ok
}
