// Package payments manages the payment rails sellers accept and the card
// charge path for non-P2P orders.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintora/mintora/internal/idgen"
)

var (
	ErrMethodNotFound = errors.New("payment method not found")
	ErrMethodDisabled = errors.New("payment method is disabled")
	ErrChargeFailed   = errors.New("card charge failed")
)

// Method is one payment rail a seller accepts (a network/currency pair plus
// free-form routing details such as a wallet address or bank alias).
type Method struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Network   string            `json:"network"`
	Currency  string            `json:"currency"`
	Details   map[string]string `json:"details,omitempty"`
	Enabled   bool              `json:"enabled"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store persists payment methods.
type Store interface {
	Create(ctx context.Context, m *Method) error
	Get(ctx context.Context, id string) (*Method, error)
	Update(ctx context.Context, m *Method) error
	List(ctx context.Context, enabledOnly bool) ([]*Method, error)
	Delete(ctx context.Context, id string) error
}

// CardCharger charges a card for an order. Implemented by StripeCharger;
// tests substitute a fake.
type CardCharger interface {
	Charge(ctx context.Context, req ChargeRequest) (chargeID string, err error)
}

// ChargeRequest describes one card charge.
type ChargeRequest struct {
	OrderID       string
	Amount        string // decimal, e.g. "150.00"
	Currency      string // ISO code, e.g. "usd"
	PaymentMethod string // tokenized card reference from the client
}

// Service manages payment method operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a payments service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "payments")}
}

// CreateRequest holds parameters for adding a payment method.
type CreateRequest struct {
	Name     string
	Network  string
	Currency string
	Details  map[string]string
}

// Create adds an enabled payment method.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Method, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	now := time.Now().UTC()
	m := &Method{
		ID:        idgen.New("pm"),
		Name:      req.Name,
		Network:   req.Network,
		Currency:  req.Currency,
		Details:   req.Details,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns one payment method.
func (s *Service) Get(ctx context.Context, id string) (*Method, error) {
	return s.store.Get(ctx, id)
}

// GetEnabled returns a payment method only if it is enabled.
func (s *Service) GetEnabled(ctx context.Context, id string) (*Method, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Enabled {
		return nil, ErrMethodDisabled
	}
	return m, nil
}

// List returns payment methods; enabledOnly hides disabled rails from
// public listings.
func (s *Service) List(ctx context.Context, enabledOnly bool) ([]*Method, error) {
	return s.store.List(ctx, enabledOnly)
}

// SetEnabled flips a method's availability.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (*Method, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Enabled = enabled
	m.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a payment method.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
