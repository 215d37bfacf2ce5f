package tickets

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mintora/mintora/internal/validation"
)

// Handler provides HTTP endpoints for support tickets.
type Handler struct {
	service *Service
}

// NewHandler creates a tickets handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up auth-required ticket routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/tickets", h.Open)
	r.GET("/tickets/:id", h.Get)
	r.GET("/accounts/:address/tickets", h.List)
	r.POST("/tickets/:id/messages", h.Reply)
	r.POST("/tickets/:id/close", h.Close)
}

// RegisterAdminRoutes sets up admin-only ticket routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/admin/tickets", h.AdminList)
	r.GET("/admin/tickets/:id", h.AdminGet)
	r.POST("/admin/tickets/:id/messages", h.AdminReply)
	r.POST("/admin/tickets/:id/close", h.AdminClose)
}

// OpenRequest is the body for POST /v1/tickets.
type OpenRequest struct {
	OrderID string `json:"orderId"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// Open handles POST /v1/tickets
func (h *Handler) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "subject and body are required",
		})
		return
	}

	tk, err := h.service.Open(c.Request.Context(),
		c.GetString("authAccountAddr"),
		req.OrderID,
		validation.SanitizeString(req.Subject, 200),
		validation.SanitizeString(req.Body, validation.MaxStringLength))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": tk})
}

// Get handles GET /v1/tickets/:id
func (h *Handler) Get(c *gin.Context) {
	h.get(c, false)
}

// AdminGet handles GET /v1/admin/tickets/:id
func (h *Handler) AdminGet(c *gin.Context) {
	h.get(c, true)
}

func (h *Handler) get(c *gin.Context, asAdmin bool) {
	tk, msgs, err := h.service.Get(c.Request.Context(), c.Param("id"), c.GetString("authAccountAddr"), asAdmin)
	if err != nil {
		h.ticketError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": tk, "messages": msgs})
}

// List handles GET /v1/accounts/:address/tickets
func (h *Handler) List(c *gin.Context) {
	address := c.Param("address")
	list, err := h.service.ListByAccount(c.Request.Context(), address, queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": list, "count": len(list)})
}

// AdminList handles GET /v1/admin/tickets?status=open
func (h *Handler) AdminList(c *gin.Context) {
	status := Status(c.DefaultQuery("status", string(StatusOpen)))
	list, err := h.service.ListByStatus(c.Request.Context(), status, queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": list, "count": len(list)})
}

// ReplyRequest is the body for ticket message posts.
type ReplyRequest struct {
	Body string `json:"body" binding:"required"`
}

// Reply handles POST /v1/tickets/:id/messages
func (h *Handler) Reply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "body is required",
		})
		return
	}

	m, err := h.service.Reply(c.Request.Context(), c.Param("id"),
		c.GetString("authAccountAddr"),
		validation.SanitizeString(req.Body, validation.MaxStringLength))
	if err != nil {
		h.ticketError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": m})
}

// AdminReply handles POST /v1/admin/tickets/:id/messages
func (h *Handler) AdminReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "body is required",
		})
		return
	}

	m, err := h.service.AdminReply(c.Request.Context(), c.Param("id"),
		validation.SanitizeString(req.Body, validation.MaxStringLength))
	if err != nil {
		h.ticketError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": m})
}

// Close handles POST /v1/tickets/:id/close
func (h *Handler) Close(c *gin.Context) {
	tk, err := h.service.Close(c.Request.Context(), c.Param("id"), c.GetString("authAccountAddr"), false)
	if err != nil {
		h.ticketError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": tk})
}

// AdminClose handles POST /v1/admin/tickets/:id/close
func (h *Handler) AdminClose(c *gin.Context) {
	tk, err := h.service.Close(c.Request.Context(), c.Param("id"), "", true)
	if err != nil {
		h.ticketError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": tk})
}

func (h *Handler) ticketError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrTicketNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ErrNotTicketOwner):
		status = http.StatusForbidden
		code = "unauthorized"
	case errors.Is(err, ErrTicketClosed):
		status = http.StatusConflict
		code = "ticket_closed"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func queryLimit(c *gin.Context) int {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	return limit
}
