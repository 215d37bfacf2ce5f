package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mintora/mintora/internal/validation"
)

// Handler serves account registration and API key management.
type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// RegisterRoutes sets up the public routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/accounts", h.Register)
	r.GET("/auth/info", h.Info)
}

// RegisterProtectedRoutes sets up key management, which always acts on
// the caller's own account.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.GetCurrentAccount)
	r.GET("/auth/keys", h.ListKeys)
	r.POST("/auth/keys", h.CreateKey)
	r.DELETE("/auth/keys/:keyId", h.RevokeKey)
	r.POST("/auth/keys/:keyId/regenerate", h.RegenerateKey)
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

// currentKey aborts with 401 when the request carries no validated key.
func currentKey(c *gin.Context) (*APIKey, bool) {
	key, ok := GetAPIKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return key, ok
}

const keyWarning = "Store this key securely. It will not be shown again."

// RegisterRequest is the body for POST /v1/accounts.
type RegisterRequest struct {
	Address string `json:"address" binding:"required"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Register creates an account and returns its first API key. The raw
// key appears in this response only.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "address is required")
		return
	}
	if !validation.IsValidWalletAddress(req.Address) {
		fail(c, http.StatusBadRequest, "invalid_address", "address must be a valid wallet address")
		return
	}

	account, rawKey, err := h.manager.Register(c.Request.Context(),
		validation.SanitizeAddress(req.Address),
		validation.SanitizeString(req.Name, 100),
		validation.SanitizeString(req.Email, 200))
	switch {
	case errors.Is(err, ErrAccountExists):
		fail(c, http.StatusConflict, "account_exists", "An account with this address is already registered")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "internal_error", "Failed to register account")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"account": account,
		"apiKey":  rawKey,
		"warning": keyWarning,
	})
}

// Info describes the authentication scheme for API discovery.
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"type":      "api_key",
		"header":    "Authorization: Bearer sk_...",
		"altHeader": "X-API-Key: sk_...",
		"note":      "API key is returned on account registration. Store it securely.",
		"publicEndpoints": []string{
			"GET /v1/categories",
			"GET /v1/nfts",
			"GET /v1/nfts/:id",
			"GET /v1/transfers/:id",
			"GET /v1/transfers/:id/remaining",
		},
		"protectedEndpoints": []string{
			"POST /v1/orders",
			"POST /v1/transfers/:id/pay",
			"POST /v1/transfers/:id/release",
			"POST /v1/transfers/:id/appeal",
			"POST /v1/transfers/:id/cancel",
			"POST /v1/tickets",
		},
	})
}

// GetCurrentAccount resolves the caller's key to its account.
func (h *Handler) GetCurrentAccount(c *gin.Context) {
	key, ok := currentKey(c)
	if !ok {
		return
	}
	account, err := h.manager.GetAccount(c.Request.Context(), key.AccountAddr)
	if err != nil {
		fail(c, http.StatusNotFound, "not_found", "Account not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":  account,
		"keyId":    key.ID,
		"keyName":  key.Name,
		"lastUsed": key.LastUsed,
	})
}

// ListKeys returns the caller's keys without their hashes.
func (h *Handler) ListKeys(c *gin.Context) {
	key, ok := currentKey(c)
	if !ok {
		return
	}
	keys, err := h.manager.ListKeys(c.Request.Context(), key.AccountAddr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list keys"})
		return
	}

	out := make([]gin.H, len(keys))
	for i, k := range keys {
		out[i] = gin.H{
			"id":        k.ID,
			"name":      k.Name,
			"createdAt": k.CreatedAt,
			"lastUsed":  k.LastUsed,
			"revoked":   k.Revoked,
		}
	}
	c.JSON(http.StatusOK, gin.H{"keys": out, "count": len(out)})
}

// CreateKeyRequest is the body for POST /v1/auth/keys.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// CreateKey mints an additional key for the caller's account.
func (h *Handler) CreateKey(c *gin.Context) {
	key, ok := currentKey(c)
	if !ok {
		return
	}

	var req CreateKeyRequest
	_ = c.ShouldBindJSON(&req)
	if req.Name == "" {
		req.Name = "Additional key"
	}

	rawKey, newKey, err := h.manager.GenerateKey(c.Request.Context(), key.AccountAddr, req.Name)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to create key", "Failed to create API key")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"apiKey":  rawKey,
		"keyId":   newKey.ID,
		"name":    newKey.Name,
		"warning": keyWarning,
	})
}

// RevokeKey disables one of the caller's keys. The key in use cannot
// revoke itself; that would strand the account without rotation.
func (h *Handler) RevokeKey(c *gin.Context) {
	key, ok := currentKey(c)
	if !ok {
		return
	}
	keyID := c.Param("keyId")
	if keyID == key.ID {
		fail(c, http.StatusBadRequest, "cannot_revoke_current", "Cannot revoke the key you're using")
		return
	}
	if err := h.manager.RevokeKey(c.Request.Context(), keyID, key.AccountAddr); err != nil {
		fail(c, http.StatusNotFound, "key_not_found", "Key not found or already revoked")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked", "keyId": keyID})
}

// RegenerateKey rotates a key: the old one is revoked and a fresh raw
// key is returned.
func (h *Handler) RegenerateKey(c *gin.Context) {
	key, ok := currentKey(c)
	if !ok {
		return
	}
	keyID := c.Param("keyId")
	_ = h.manager.RevokeKey(c.Request.Context(), keyID, key.AccountAddr)

	rawKey, newKey, err := h.manager.GenerateKey(c.Request.Context(), key.AccountAddr, "Regenerated key")
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to regenerate", "Failed to regenerate API key")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"apiKey":   rawKey,
		"keyId":    newKey.ID,
		"oldKeyId": keyID,
		"warning":  keyWarning,
	})
}
