package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mintora/mintora/internal/validation"
)

// Handler provides HTTP endpoints for catalog browsing and administration.
type Handler struct {
	service *Service
}

// NewHandler creates a catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public catalog routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/categories", h.ListCategories)
	r.GET("/nfts", h.ListNFTs)
	r.GET("/nfts/:id", h.GetNFT)
}

// RegisterAdminRoutes sets up admin-only catalog routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/admin/categories", h.CreateCategory)
	r.DELETE("/admin/categories/:id", h.DeleteCategory)
	r.POST("/admin/nfts", h.CreateNFT)
}

// ListCategories handles GET /v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
}

// CreateCategoryRequest is the body for POST /v1/admin/categories.
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

// CreateCategory handles POST /v1/admin/categories
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "name is required",
		})
		return
	}

	category, err := h.service.CreateCategory(c.Request.Context(), req.Name, req.Slug)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "slug_taken",
				"message": "Category slug already exists",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// DeleteCategory handles DELETE /v1/admin/categories/:id
func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.service.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Category not found",
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

// ListNFTs handles GET /v1/nfts
func (h *Handler) ListNFTs(c *gin.Context) {
	f := NFTFilter{
		CategoryID: c.Query("category"),
		Status:     NFTStatus(c.Query("status")),
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			f.Limit = parsed
		}
	}

	nfts, err := h.service.ListNFTs(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfts": nfts, "count": len(nfts)})
}

// GetNFT handles GET /v1/nfts/:id
func (h *Handler) GetNFT(c *gin.Context) {
	n, err := h.service.GetNFT(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNFTNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "NFT not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nft": n})
}

// CreateNFTRequest is the body for POST /v1/admin/nfts.
type CreateNFTRequest struct {
	CategoryID   string `json:"categoryId" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl"`
	Price        string `json:"price" binding:"required"`
	Network      string `json:"network"`
	OwnerAddress string `json:"ownerAddress" binding:"required"`
}

// CreateNFT handles POST /v1/admin/nfts
func (h *Handler) CreateNFT(c *gin.Context) {
	var req CreateNFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "categoryId, name, price and ownerAddress are required",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAddress("owner_address", req.OwnerAddress),
		validation.ValidAmount("price", req.Price),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	n, err := h.service.ListNFT(c.Request.Context(), ListNFTRequest{
		CategoryID:   req.CategoryID,
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Price:        req.Price,
		Network:      req.Network,
		OwnerAddress: req.OwnerAddress,
	})
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Category not found",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"nft": n})
}
