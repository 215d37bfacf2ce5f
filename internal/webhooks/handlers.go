package webhooks

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mintora/mintora/internal/idgen"
	"github.com/mintora/mintora/internal/security"
)

// Handler provides HTTP endpoints for webhook management
type Handler struct {
	store Store
}

// NewHandler creates a webhook handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterProtectedRoutes sets up auth-required webhook routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/accounts/:address/webhooks", h.Create)
	r.GET("/accounts/:address/webhooks", h.List)
	r.DELETE("/accounts/:address/webhooks/:webhookId", h.Delete)
}

// CreateRequest is the body for POST /v1/accounts/:address/webhooks.
type CreateRequest struct {
	URL    string   `json:"url" binding:"required"`
	Events []string `json:"events" binding:"required"`
}

// requireOwner ensures the authenticated account matches the address param.
func requireOwner(c *gin.Context) (string, bool) {
	address := c.Param("address")
	caller := c.GetString("authAccountAddr")
	if !strings.EqualFold(address, caller) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You can only manage your own webhooks",
		})
		return "", false
	}
	return caller, true
}

// Create handles POST /v1/accounts/:address/webhooks
func (h *Handler) Create(c *gin.Context) {
	address, ok := requireOwner(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "url and events are required",
		})
		return
	}

	if err := security.ValidateEndpointURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_url",
			"message": err.Error(),
		})
		return
	}

	events := make([]EventType, len(req.Events))
	for i, e := range req.Events {
		et := EventType(e)
		if !KnownEvent(et) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_event",
				"message": "Unknown event type: " + e,
			})
			return
		}
		events[i] = et
	}

	secret := "whsec_" + idgen.Hex(24)
	sub := &Subscription{
		ID:             idgen.New("wh"),
		AccountAddress: address,
		URL:            req.URL,
		Secret:         secret,
		Events:         events,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.store.Create(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create webhook",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"webhook": sub,
		"secret":  secret, // Only shown once
		"usage": gin.H{
			"signature": "Verify with HMAC-SHA256(payload, secret)",
			"header":    "X-Mintora-Signature",
		},
	})
}

// List handles GET /v1/accounts/:address/webhooks
func (h *Handler) List(c *gin.Context) {
	address, ok := requireOwner(c)
	if !ok {
		return
	}

	subs, err := h.store.GetByAccount(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list webhooks",
		})
		return
	}
	if subs == nil {
		subs = []*Subscription{}
	}

	c.JSON(http.StatusOK, gin.H{"webhooks": subs, "count": len(subs)})
}

// Delete handles DELETE /v1/accounts/:address/webhooks/:webhookId
func (h *Handler) Delete(c *gin.Context) {
	address, ok := requireOwner(c)
	if !ok {
		return
	}

	sub, err := h.store.Get(c.Request.Context(), c.Param("webhookId"))
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Webhook not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load webhook",
		})
		return
	}
	if !strings.EqualFold(sub.AccountAddress, address) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Webhook not found",
		})
		return
	}

	if err := h.store.Delete(c.Request.Context(), sub.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to delete webhook",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
