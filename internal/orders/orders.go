// Package orders handles order placement and keeps orders in sync with
// their settlement path: a P2P transfer or a card charge.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mintora/mintora/internal/catalog"
	"github.com/mintora/mintora/internal/idgen"
	"github.com/mintora/mintora/internal/metrics"
	"github.com/mintora/mintora/internal/p2p"
	"github.com/mintora/mintora/internal/payments"
	"github.com/mintora/mintora/internal/traces"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrUnknownPaymentPath = errors.New("unsupported payment method")
	ErrOwnListing         = errors.New("cannot order your own listing")
)

// Status tracks an order through its life.
type Status string

const (
	StatusPending   Status = "pending"   // awaiting settlement
	StatusCompleted Status = "completed" // settled, NFT handed over
	StatusCancelled Status = "cancelled" // settlement abandoned, NFT relisted
	StatusFailed    Status = "failed"    // settlement failed, needs admin review
)

// Payment paths.
const (
	PayP2P  = "p2p"
	PayCard = "card"
)

// Order is one purchase attempt against a listing.
type Order struct {
	ID            string    `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	BuyerAddress  string    `json:"buyerAddress"`
	NFTID         string    `json:"nftId"`
	Quantity      int       `json:"quantity"`
	TotalPrice    string    `json:"totalPrice"`
	PaymentMethod string    `json:"paymentMethod"`
	TransactionID string    `json:"transactionId,omitempty"` // transfer ID or charge ID
	Status        Status    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByBuyer(ctx context.Context, addr string, limit int) ([]*Order, error)
}

// Listings is the slice of the catalog the order flow needs.
type Listings interface {
	GetNFT(ctx context.Context, id string) (*catalog.NFT, error)
	Reserve(ctx context.Context, id string) error
	Relist(ctx context.Context, id string) error
	MarkSold(ctx context.Context, id string) error
}

// Transfers opens P2P transfers for orders.
type Transfers interface {
	Create(ctx context.Context, req p2p.CreateRequest) (*p2p.Transfer, error)
}

// Service manages order operations.
type Service struct {
	store    Store
	listings Listings
	xfers    Transfers
	charger  payments.CardCharger
	logger   *slog.Logger
}

// NewService creates an order service. charger may be nil when card
// payments are not configured; card orders then fail cleanly.
func NewService(store Store, listings Listings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, listings: listings, logger: logger.With("component", "orders")}
}

// WithTransfers attaches the P2P transfer opener.
func (s *Service) WithTransfers(t Transfers) *Service {
	s.xfers = t
	return s
}

// WithCharger attaches the card charger.
func (s *Service) WithCharger(c payments.CardCharger) *Service {
	s.charger = c
	return s
}

// PlaceRequest holds parameters for placing an order.
type PlaceRequest struct {
	BuyerAddress           string
	NFTID                  string
	PaymentMethod          string // "p2p" or "card"
	PartnerPaymentMethodID string // p2p: the rail the seller is paid on
	CardToken              string // card: tokenized card reference
	Notes                  string
}

// PlaceResult is an order plus the transfer opened for it, if any.
type PlaceResult struct {
	Order    *Order        `json:"order"`
	Transfer *p2p.Transfer `json:"transfer,omitempty"`
}

// Place reserves the NFT, records the order, and starts settlement. The
// reservation is a compare-and-swap, so two buyers racing for one listing
// cannot both succeed. Any failure after the reservation rolls it back.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	if req.PaymentMethod != PayP2P && req.PaymentMethod != PayCard {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentPath, req.PaymentMethod)
	}
	ctx, span := traces.StartSpan(ctx, "orders.Place",
		traces.NFTID(req.NFTID),
		traces.AccountAddr(req.BuyerAddress))
	defer span.End()

	buyer := strings.ToLower(req.BuyerAddress)

	nft, err := s.listings.GetNFT(ctx, req.NFTID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(nft.OwnerAddress, buyer) {
		return nil, ErrOwnListing
	}

	if err := s.listings.Reserve(ctx, nft.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &Order{
		ID:            idgen.New("ord"),
		OrderNumber:   idgen.OrderNumber(now),
		BuyerAddress:  buyer,
		NFTID:         nft.ID,
		Quantity:      1,
		TotalPrice:    nft.Price,
		PaymentMethod: req.PaymentMethod,
		Status:        StatusPending,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, order); err != nil {
		s.rollbackReservation(ctx, nft.ID)
		return nil, fmt.Errorf("creating order: %w", err)
	}

	switch req.PaymentMethod {
	case PayP2P:
		return s.settleP2P(ctx, order, nft, req)
	default:
		return s.settleCard(ctx, order, req)
	}
}

// settleP2P opens the companion transfer. Order creation and transfer
// creation must act as one unit: if the transfer cannot be opened the order
// is marked failed and the NFT relisted.
func (s *Service) settleP2P(ctx context.Context, order *Order, nft *catalog.NFT, req PlaceRequest) (*PlaceResult, error) {
	if s.xfers == nil {
		s.unwind(ctx, order)
		return nil, fmt.Errorf("p2p settlement is not configured")
	}
	transfer, err := s.xfers.Create(ctx, p2p.CreateRequest{
		OrderID:                order.ID,
		SenderAddress:          order.BuyerAddress,
		PartnerAddress:         nft.OwnerAddress,
		PartnerPaymentMethodID: req.PartnerPaymentMethodID,
		Amount:                 order.TotalPrice,
		Network:                nft.Network,
	})
	if err != nil {
		s.unwind(ctx, order)
		return nil, fmt.Errorf("opening transfer: %w", err)
	}

	order.TransactionID = transfer.ID
	order.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, order); err != nil {
		s.logger.Error("linking transfer to order failed", "order_id", order.ID, "transfer_id", transfer.ID, "error", err)
	}

	metrics.OrdersTotal.WithLabelValues(string(PayP2P), "placed").Inc()
	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"nft_id", order.NFTID,
		"path", PayP2P,
		"transfer_id", transfer.ID)
	return &PlaceResult{Order: order, Transfer: transfer}, nil
}

// settleCard charges the buyer's card synchronously.
func (s *Service) settleCard(ctx context.Context, order *Order, req PlaceRequest) (*PlaceResult, error) {
	if s.charger == nil {
		s.unwind(ctx, order)
		return nil, fmt.Errorf("card settlement is not configured")
	}
	chargeID, err := s.charger.Charge(ctx, payments.ChargeRequest{
		OrderID:       order.ID,
		Amount:        order.TotalPrice,
		Currency:      "usd",
		PaymentMethod: req.CardToken,
	})
	if err != nil {
		s.unwind(ctx, order)
		return nil, err
	}

	order.TransactionID = chargeID
	order.Status = StatusCompleted
	order.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("finalizing order: %w", err)
	}
	if err := s.listings.MarkSold(ctx, order.NFTID); err != nil {
		s.logger.Error("marking nft sold failed", "order_id", order.ID, "nft_id", order.NFTID, "error", err)
	}

	metrics.OrdersTotal.WithLabelValues(string(PayCard), "completed").Inc()
	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"nft_id", order.NFTID,
		"path", PayCard,
		"charge_id", chargeID)
	return &PlaceResult{Order: order}, nil
}

// unwind marks a just-created order failed and frees its reservation.
func (s *Service) unwind(ctx context.Context, order *Order) {
	order.Status = StatusFailed
	order.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, order); err != nil {
		s.logger.Error("order unwind failed", "order_id", order.ID, "error", err)
	}
	s.rollbackReservation(ctx, order.NFTID)
}

func (s *Service) rollbackReservation(ctx context.Context, nftID string) {
	if err := s.listings.Relist(ctx, nftID); err != nil {
		s.logger.Error("reservation rollback failed", "nft_id", nftID, "error", err)
	}
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// ListByBuyer returns a buyer's orders, newest first.
func (s *Service) ListByBuyer(ctx context.Context, addr string, limit int) ([]*Order, error) {
	return s.store.ListByBuyer(ctx, strings.ToLower(addr), limit)
}

// ApplyTransferOutcome moves the order (and its NFT) when its transfer
// reaches a terminal state:
//
//   - released:        order completed, NFT sold
//   - cancelled:       order cancelled, NFT relisted
//   - appeal_approved: order cancelled, NFT relisted (buyer may retry)
//   - appeal_rejected: order failed, NFT stays reserved for admin review
func (s *Service) ApplyTransferOutcome(ctx context.Context, orderID, transferID string, outcome p2p.Outcome) error {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}

	switch outcome {
	case p2p.OutcomeReleased:
		order.Status = StatusCompleted
	case p2p.OutcomeCancelled, p2p.OutcomeAppealApproved:
		order.Status = StatusCancelled
	case p2p.OutcomeAppealRejected:
		order.Status = StatusFailed
	default:
		return fmt.Errorf("unknown transfer outcome %q", outcome)
	}
	order.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, order); err != nil {
		return fmt.Errorf("updating order %s: %w", orderID, err)
	}

	switch outcome {
	case p2p.OutcomeReleased:
		if err := s.listings.MarkSold(ctx, order.NFTID); err != nil {
			s.logger.Error("marking nft sold failed", "order_id", orderID, "nft_id", order.NFTID, "error", err)
		}
	case p2p.OutcomeCancelled, p2p.OutcomeAppealApproved:
		s.rollbackReservation(ctx, order.NFTID)
	}

	metrics.OrdersTotal.WithLabelValues(string(PayP2P), string(order.Status)).Inc()
	s.logger.Info("order updated from transfer",
		"order_id", orderID,
		"transfer_id", transferID,
		"outcome", string(outcome),
		"status", string(order.Status))
	return nil
}

// Compile-time assertion that Service satisfies the transfer callback.
var _ p2p.OrderSync = (*Service)(nil)
