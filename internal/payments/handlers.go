package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for payment methods.
type Handler struct {
	service *Service
}

// NewHandler creates a payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public payment method routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/payment-methods", h.List)
}

// RegisterAdminRoutes sets up admin-only payment method routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/admin/payment-methods", h.ListAll)
	r.POST("/admin/payment-methods", h.Create)
	r.PUT("/admin/payment-methods/:id/enabled", h.SetEnabled)
	r.DELETE("/admin/payment-methods/:id", h.Delete)
}

// List handles GET /v1/payment-methods
func (h *Handler) List(c *gin.Context) {
	methods, err := h.service.List(c.Request.Context(), true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paymentMethods": methods, "count": len(methods)})
}

// ListAll handles GET /v1/admin/payment-methods
func (h *Handler) ListAll(c *gin.Context) {
	methods, err := h.service.List(c.Request.Context(), false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paymentMethods": methods, "count": len(methods)})
}

// CreateMethodRequest is the body for POST /v1/admin/payment-methods.
type CreateMethodRequest struct {
	Name     string            `json:"name" binding:"required"`
	Network  string            `json:"network"`
	Currency string            `json:"currency"`
	Details  map[string]string `json:"details"`
}

// Create handles POST /v1/admin/payment-methods
func (h *Handler) Create(c *gin.Context) {
	var req CreateMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "name is required",
		})
		return
	}

	m, err := h.service.Create(c.Request.Context(), CreateRequest{
		Name:     req.Name,
		Network:  req.Network,
		Currency: req.Currency,
		Details:  req.Details,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"paymentMethod": m})
}

// SetEnabledRequest is the body for PUT /v1/admin/payment-methods/:id/enabled.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetEnabled handles PUT /v1/admin/payment-methods/:id/enabled
func (h *Handler) SetEnabled(c *gin.Context) {
	var req SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "enabled is required",
		})
		return
	}

	m, err := h.service.SetEnabled(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		if errors.Is(err, ErrMethodNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Payment method not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paymentMethod": m})
}

// Delete handles DELETE /v1/admin/payment-methods/:id
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrMethodNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Payment method not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
