// Package catalog manages the NFT listings buyers browse and order from.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mintora/mintora/internal/idgen"
	"github.com/mintora/mintora/internal/security"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrNFTNotFound      = errors.New("nft not found")
	ErrNFTNotAvailable  = errors.New("nft is not available")
	ErrSlugTaken        = errors.New("category slug already exists")
)

// NFTStatus tracks whether a listing can be ordered.
type NFTStatus string

const (
	NFTAvailable NFTStatus = "available"
	NFTReserved  NFTStatus = "reserved" // held by an in-flight order
	NFTSold      NFTStatus = "sold"
)

// Category groups listings.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// NFT is one marketplace listing.
type NFT struct {
	ID           string    `json:"id"`
	CategoryID   string    `json:"categoryId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Price        string    `json:"price"`
	Network      string    `json:"network"`
	OwnerAddress string    `json:"ownerAddress"`
	Status       NFTStatus `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NFTFilter narrows listing queries.
type NFTFilter struct {
	CategoryID string
	Status     NFTStatus
	Limit      int
}

// Store persists catalog data.
type Store interface {
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateNFT(ctx context.Context, n *NFT) error
	GetNFT(ctx context.Context, id string) (*NFT, error)
	UpdateNFT(ctx context.Context, n *NFT) error
	ListNFTs(ctx context.Context, f NFTFilter) ([]*NFT, error)
	// SetNFTStatus flips the status only when the current one matches
	// expected, returning ErrNFTNotAvailable on a lost race.
	SetNFTStatus(ctx context.Context, id string, from, to NFTStatus) error
}

// Announcer pushes new-listing events to connected clients.
type Announcer interface {
	EmitNFTListed(nftID, ownerAddr, price string)
}

// Service manages catalog operations.
type Service struct {
	store     Store
	announcer Announcer
	logger    *slog.Logger
}

// NewService creates a catalog service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "catalog")}
}

// WithAnnouncer attaches a realtime listing announcer.
func (s *Service) WithAnnouncer(a Announcer) *Service {
	s.announcer = a
	return s
}

// CreateCategory adds a category; the slug is derived from the name when
// not supplied.
func (s *Service) CreateCategory(ctx context.Context, name, slug string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	if slug == "" {
		slug = Slugify(name)
	}
	c := &Category{
		ID:        idgen.New("cat"),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCategory returns one category.
func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	return s.store.GetCategory(ctx, id)
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.store.ListCategories(ctx)
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.store.DeleteCategory(ctx, id)
}

// ListNFTRequest holds parameters for creating a listing.
type ListNFTRequest struct {
	CategoryID   string
	Name         string
	Description  string
	ImageURL     string
	Price        string
	Network      string
	OwnerAddress string
}

// ListNFT publishes a new listing in the available state.
func (s *Service) ListNFT(ctx context.Context, req ListNFTRequest) (*NFT, error) {
	if req.Name == "" || req.Price == "" || req.OwnerAddress == "" {
		return nil, fmt.Errorf("name, price and ownerAddress are required")
	}
	if _, err := s.store.GetCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	if req.ImageURL != "" {
		if err := security.ValidateEndpointURL(req.ImageURL); err != nil {
			return nil, fmt.Errorf("imageUrl: %w", err)
		}
	}
	now := time.Now().UTC()
	n := &NFT{
		ID:           idgen.New("nft"),
		CategoryID:   req.CategoryID,
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Price:        req.Price,
		Network:      req.Network,
		OwnerAddress: strings.ToLower(req.OwnerAddress),
		Status:       NFTAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateNFT(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Info("nft listed", "nft_id", n.ID, "category_id", n.CategoryID, "price", n.Price)
	if s.announcer != nil {
		s.announcer.EmitNFTListed(n.ID, n.OwnerAddress, n.Price)
	}
	return n, nil
}

// GetNFT returns one listing.
func (s *Service) GetNFT(ctx context.Context, id string) (*NFT, error) {
	return s.store.GetNFT(ctx, id)
}

// ListNFTs returns listings matching the filter.
func (s *Service) ListNFTs(ctx context.Context, f NFTFilter) ([]*NFT, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.store.ListNFTs(ctx, f)
}

// Reserve holds an available NFT for an order. Fails with ErrNFTNotAvailable
// when another order got there first.
func (s *Service) Reserve(ctx context.Context, id string) error {
	return s.store.SetNFTStatus(ctx, id, NFTAvailable, NFTReserved)
}

// Relist returns a reserved NFT to the market after a cancelled or
// unwound order.
func (s *Service) Relist(ctx context.Context, id string) error {
	return s.store.SetNFTStatus(ctx, id, NFTReserved, NFTAvailable)
}

// MarkSold finalizes a reserved NFT after a released transfer or a
// captured card charge.
func (s *Service) MarkSold(ctx context.Context, id string) error {
	return s.store.SetNFTStatus(ctx, id, NFTReserved, NFTSold)
}

// Slugify lowercases a name and collapses runs of non-alphanumerics
// into single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
