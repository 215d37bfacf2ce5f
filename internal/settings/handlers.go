package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides admin HTTP endpoints for settings.
type Handler struct {
	service *Service
}

// NewHandler creates a settings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterAdminRoutes sets up admin-only settings routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/admin/settings", h.List)
	r.GET("/admin/settings/:key", h.Get)
	r.PUT("/admin/settings/:key", h.Set)
}

// List handles GET /v1/admin/settings
func (h *Handler) List(c *gin.Context) {
	all, err := h.service.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": all, "count": len(all)})
}

// Get handles GET /v1/admin/settings/:key
func (h *Handler) Get(c *gin.Context) {
	s, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Setting not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"setting": s})
}

// SetRequest is the body for PUT /v1/admin/settings/:key.
type SetRequest struct {
	Value string `json:"value" binding:"required"`
}

// Set handles PUT /v1/admin/settings/:key
func (h *Handler) Set(c *gin.Context) {
	var req SetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "value is required",
		})
		return
	}

	key := c.Param("key")
	if err := h.service.Set(c.Request.Context(), key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	s, err := h.service.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"setting": s})
}
