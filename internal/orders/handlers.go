package orders

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mintora/mintora/internal/catalog"
	"github.com/mintora/mintora/internal/p2p"
	"github.com/mintora/mintora/internal/validation"
)

// Handler provides HTTP endpoints for orders.
type Handler struct {
	service *Service
}

// NewHandler creates an order handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) order routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/orders/:id", h.GetOrder)
}

// RegisterProtectedRoutes sets up auth-required order routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.PlaceOrder)
	r.GET("/accounts/:address/orders", h.ListOrders)
}

// PlaceOrderRequest is the body for POST /v1/orders.
type PlaceOrderRequest struct {
	NFTID                  string `json:"nftId" binding:"required"`
	PaymentMethod          string `json:"paymentMethod" binding:"required"`
	PartnerPaymentMethodID string `json:"partnerPaymentMethodId"`
	CardToken              string `json:"cardToken"`
	Notes                  string `json:"notes"`
}

// PlaceOrder handles POST /v1/orders
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "nftId and paymentMethod are required",
		})
		return
	}

	callerAddr := c.GetString("authAccountAddr")
	if errs := validation.Validate(
		validation.ValidAddress("buyer_address", callerAddr),
		validation.MaxLength("notes", req.Notes, 2000),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	result, err := h.service.Place(c.Request.Context(), PlaceRequest{
		BuyerAddress:           callerAddr,
		NFTID:                  req.NFTID,
		PaymentMethod:          strings.ToLower(req.PaymentMethod),
		PartnerPaymentMethodID: req.PartnerPaymentMethodID,
		CardToken:              req.CardToken,
		Notes:                  validation.SanitizeString(req.Notes, 2000),
	})
	if err != nil {
		status := http.StatusInternalServerError
		code := "order_failed"
		switch {
		case errors.Is(err, catalog.ErrNFTNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, catalog.ErrNFTNotAvailable):
			status = http.StatusConflict
			code = "nft_unavailable"
		case errors.Is(err, ErrOwnListing), errors.Is(err, ErrUnknownPaymentPath):
			status = http.StatusBadRequest
			code = "invalid_request"
		case errors.Is(err, p2p.ErrDuplicateTransfer):
			status = http.StatusConflict
			code = "transfer_exists"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetOrder handles GET /v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Order not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ListOrders handles GET /v1/accounts/:address/orders
func (h *Handler) ListOrders(c *gin.Context) {
	address := c.Param("address")
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	list, err := h.service.ListByBuyer(c.Request.Context(), address, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}
