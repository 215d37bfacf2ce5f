package p2p

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for transfer operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) transfer routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/transfers/:id", h.GetTransfer)
	r.GET("/transfers/:id/remaining", h.GetRemaining)
}

// RegisterProtectedRoutes sets up auth-required transfer routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/accounts/:address/transfers", h.ListTransfers)
	r.POST("/transfers/:id/pay", h.MarkPaid)
	r.POST("/transfers/:id/release", h.Release)
	r.POST("/transfers/:id/appeal", h.Appeal)
	r.POST("/transfers/:id/cancel", h.Cancel)
}

// RegisterAdminRoutes sets up admin-only transfer routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/admin/transfers", h.ListByStatus)
	r.POST("/transfers/:id/appeal/approve", h.ApproveAppeal)
	r.POST("/transfers/:id/appeal/reject", h.RejectAppeal)
	r.POST("/transfers/:id/admin-release", h.AdminRelease)
}

// GetTransfer handles GET /v1/transfers/:id
func (h *Handler) GetTransfer(c *gin.Context) {
	transfer, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrTransferNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Transfer not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// GetRemaining handles GET /v1/transfers/:id/remaining
//
// Returns the seconds left on the active timer, or null for states with no
// timer. Clients poll this for countdown display only.
func (h *Handler) GetRemaining(c *gin.Context) {
	seconds, ok, err := h.service.RemainingTime(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrTransferNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Transfer not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	if !ok {
		c.JSON(http.StatusOK, gin.H{"remainingSeconds": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"remainingSeconds": seconds})
}

// ListTransfers handles GET /v1/accounts/:address/transfers
func (h *Handler) ListTransfers(c *gin.Context) {
	address := c.Param("address")
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	transfers, err := h.service.ListByAddress(c.Request.Context(), address, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transfers": transfers,
		"count":     len(transfers),
	})
}

// MarkPaid handles POST /v1/transfers/:id/pay
func (h *Handler) MarkPaid(c *gin.Context) {
	id := c.Param("id")
	callerAddr := c.GetString("authAccountAddr") // Set by auth middleware

	transfer, err := h.service.MarkPaid(c.Request.Context(), id, callerAddr)
	if err != nil {
		h.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// Release handles POST /v1/transfers/:id/release
func (h *Handler) Release(c *gin.Context) {
	id := c.Param("id")
	callerAddr := c.GetString("authAccountAddr")

	transfer, err := h.service.Release(c.Request.Context(), id, callerAddr)
	if err != nil {
		h.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// AppealRequest is the body for POST /v1/transfers/:id/appeal.
type AppealRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Appeal handles POST /v1/transfers/:id/appeal
func (h *Handler) Appeal(c *gin.Context) {
	id := c.Param("id")
	callerAddr := c.GetString("authAccountAddr")

	var req AppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Reason is required",
		})
		return
	}

	transfer, err := h.service.Appeal(c.Request.Context(), id, callerAddr, req.Reason)
	if err != nil {
		h.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// Cancel handles POST /v1/transfers/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id := c.Param("id")
	callerAddr := c.GetString("authAccountAddr")

	transfer, err := h.service.Cancel(c.Request.Context(), id, callerAddr)
	if err != nil {
		h.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// ListByStatus handles GET /v1/admin/transfers?status=appealed
func (h *Handler) ListByStatus(c *gin.Context) {
	status := Status(c.DefaultQuery("status", string(StatusAppealed)))
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	transfers, err := h.service.ListByStatus(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transfers": transfers,
		"count":     len(transfers),
	})
}

// ApproveAppeal handles POST /v1/transfers/:id/appeal/approve
func (h *Handler) ApproveAppeal(c *gin.Context) {
	transfer, err := h.service.ApproveAppeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// RejectAppeal handles POST /v1/transfers/:id/appeal/reject
func (h *Handler) RejectAppeal(c *gin.Context) {
	transfer, err := h.service.RejectAppeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// AdminRelease handles POST /v1/transfers/:id/admin-release
func (h *Handler) AdminRelease(c *gin.Context) {
	transfer, err := h.service.AdminRelease(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.transferError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}

// transferError maps service errors to HTTP responses.
func (h *Handler) transferError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrTransferNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
		code = "unauthorized"
	case errors.Is(err, ErrInvalidTransition):
		status = http.StatusConflict
		code = "invalid_state"
	case errors.Is(err, ErrStaleTransfer):
		status = http.StatusConflict
		code = "conflict_retry"
	case errors.Is(err, ErrAppealReasonNeeded):
		status = http.StatusBadRequest
		code = "invalid_request"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
