package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mintora/mintora/internal/syncutil"
	"github.com/mintora/mintora/internal/traces"
)

// Outcome is reported to the owning order when a transfer reaches a
// terminal state.
type Outcome string

const (
	OutcomeReleased       Outcome = "released"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeAppealApproved Outcome = "appeal_approved"
	OutcomeAppealRejected Outcome = "appeal_rejected"
)

// OrderSync propagates transfer outcomes back to the owning order.
type OrderSync interface {
	ApplyTransferOutcome(ctx context.Context, orderID, transferID string, outcome Outcome) error
}

// EventEmitter pushes transfer updates to connected clients.
type EventEmitter interface {
	EmitTransferUpdate(t *Transfer)
}

// Recorder records transfer metrics.
type Recorder interface {
	RecordTransferTransition(from, to string)
}

// Service manages P2P transfer operations.
type Service struct {
	store    Store
	cfg      ConfigProvider
	orders   OrderSync
	events   EventEmitter
	recorder Recorder
	logger   *slog.Logger

	// locks serializes operations per transfer ID
	locks *syncutil.KeyedMutex

	now func() time.Time
}

// NewService creates a transfer service.
func NewService(store Store, cfg ConfigProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "p2p"),
		locks:  syncutil.NewKeyedMutex(),
		now:    time.Now,
	}
}

// WithOrders attaches the order synchronizer.
func (s *Service) WithOrders(o OrderSync) *Service {
	s.orders = o
	return s
}

// WithEvents attaches a realtime event emitter.
func (s *Service) WithEvents(e EventEmitter) *Service {
	s.events = e
	return s
}

// WithRecorder attaches a metrics recorder.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// CreateRequest holds parameters for opening a transfer.
type CreateRequest struct {
	OrderID                string
	SenderAddress          string // buyer
	PartnerAddress         string // seller
	PartnerPaymentMethodID string
	Amount                 string
	Network                string
}

// Create opens a pending transfer for an order. Exactly one active transfer
// may exist per order; a second attempt returns ErrDuplicateTransfer.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Transfer, error) {
	if req.OrderID == "" || req.SenderAddress == "" || req.PartnerAddress == "" {
		return nil, fmt.Errorf("orderID, senderAddress and partnerAddress are required")
	}
	ctx, span := traces.StartSpan(ctx, "p2p.Create",
		traces.OrderID(req.OrderID),
		traces.Amount(req.Amount))
	defer span.End()
	now := s.now().UTC()
	t := &Transfer{
		ID:                     generateTransferID(),
		OrderID:                req.OrderID,
		TransferCode:           generateTransferCode(),
		SenderAddress:          strings.ToLower(req.SenderAddress),
		PartnerAddress:         strings.ToLower(req.PartnerAddress),
		PartnerPaymentMethodID: req.PartnerPaymentMethodID,
		Amount:                 req.Amount,
		Network:                req.Network,
		Status:                 StatusPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating transfer: %w", err)
	}
	s.logger.Info("transfer created",
		"transfer_id", t.ID,
		"order_id", t.OrderID,
		"amount", t.Amount,
		"network", t.Network)
	s.emit(t)
	return t, nil
}

// Get retrieves a transfer by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transfer, error) {
	return s.store.Get(ctx, id)
}

// GetByOrder retrieves the transfer attached to an order.
func (s *Service) GetByOrder(ctx context.Context, orderID string) (*Transfer, error) {
	return s.store.GetByOrder(ctx, orderID)
}

// ListByAddress returns transfers where addr is the buyer or the seller.
func (s *Service) ListByAddress(ctx context.Context, addr string, limit int) ([]*Transfer, error) {
	return s.store.ListByAddress(ctx, strings.ToLower(addr), limit)
}

// ListByStatus returns transfers in the given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Transfer, error) {
	return s.store.ListByStatus(ctx, status, limit)
}

// RemainingTime returns the seconds left on the transfer's active timer,
// or ok=false when no timer applies. Advisory: display only.
func (s *Service) RemainingTime(ctx context.Context, id string) (int64, bool, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	cfg := s.cfg.P2PConfig(ctx).WithDefaults()
	left, ok := t.Remaining(s.now().UTC(), cfg)
	if !ok {
		return 0, false, nil
	}
	return int64(left.Seconds()), true, nil
}

// MarkPaid records that the buyer sent the payment and starts the release
// timer. Only the buyer may call it.
func (s *Service) MarkPaid(ctx context.Context, id, caller string) (*Transfer, error) {
	return s.transition(ctx, id, EventMarkPaid, func(t *Transfer, cfg Config, now time.Time) error {
		if !strings.EqualFold(caller, t.SenderAddress) {
			return ErrUnauthorized
		}
		t.PaymentCompletedAt = &now
		t.ReleaseTimerStartedAt = &now
		at := now.Add(cfg.AutoRelease)
		t.AutoReleaseAt = &at
		return nil
	})
}

// Release hands the NFT over to the buyer. Only the seller may call it;
// admins use AdminRelease.
func (s *Service) Release(ctx context.Context, id, caller string) (*Transfer, error) {
	return s.transition(ctx, id, EventRelease, func(t *Transfer, _ Config, _ time.Time) error {
		if !strings.EqualFold(caller, t.PartnerAddress) {
			return ErrUnauthorized
		}
		return nil
	})
}

// AdminRelease releases a transfer without a party check.
func (s *Service) AdminRelease(ctx context.Context, id string) (*Transfer, error) {
	return s.transition(ctx, id, EventRelease, nil)
}

// Appeal freezes the transfer for admin review. Either party may appeal;
// a reason is required.
func (s *Service) Appeal(ctx context.Context, id, caller, reason string) (*Transfer, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrAppealReasonNeeded
	}
	return s.transition(ctx, id, EventAppeal, func(t *Transfer, _ Config, now time.Time) error {
		if !t.isParty(caller) {
			return ErrUnauthorized
		}
		t.AppealReason = reason
		t.AppealedAt = &now
		return nil
	})
}

// Cancel aborts a transfer that has not yet been released or appealed.
// Either party may cancel.
func (s *Service) Cancel(ctx context.Context, id, caller string) (*Transfer, error) {
	return s.transition(ctx, id, EventCancel, func(t *Transfer, _ Config, _ time.Time) error {
		if !t.isParty(caller) {
			return ErrUnauthorized
		}
		return nil
	})
}

// ApproveAppeal resolves an appeal in the appellant's favor (admin only).
func (s *Service) ApproveAppeal(ctx context.Context, id string) (*Transfer, error) {
	return s.transition(ctx, id, EventApproveAppeal, nil)
}

// RejectAppeal resolves an appeal against the appellant (admin only).
func (s *Service) RejectAppeal(ctx context.Context, id string) (*Transfer, error) {
	return s.transition(ctx, id, EventRejectAppeal, nil)
}

// transition runs one guarded state change under the transfer's lock.
// apply may mutate timer fields after the edge is validated; returning an
// error aborts the change.
func (s *Service) transition(ctx context.Context, id string, ev Event, apply func(t *Transfer, cfg Config, now time.Time) error) (*Transfer, error) {
	ctx, span := traces.StartSpan(ctx, "p2p."+string(ev), traces.TransferID(id))
	defer span.End()

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := t.Status
	to, err := t.next(ev)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot %s a %s transfer", ErrInvalidTransition, ev, t.Status)
	}

	now := s.now().UTC()
	cfg := s.cfg.P2PConfig(ctx).WithDefaults()
	if apply != nil {
		if err := apply(t, cfg, now); err != nil {
			return nil, err
		}
	}
	t.Status = to
	t.UpdatedAt = now

	if err := s.store.Update(ctx, t, from); err != nil {
		return nil, err
	}

	s.logger.Info("transfer transition",
		"transfer_id", t.ID,
		"order_id", t.OrderID,
		"event", string(ev),
		"from", string(from),
		"to", string(to))
	if s.recorder != nil {
		s.recorder.RecordTransferTransition(string(from), string(to))
	}
	s.emit(t)
	s.notifyOrder(ctx, t)
	return t, nil
}

// notifyOrder reports a terminal outcome to the owning order. Failures are
// logged, not propagated: the transfer transition already committed.
func (s *Service) notifyOrder(ctx context.Context, t *Transfer) {
	if s.orders == nil {
		return
	}
	var outcome Outcome
	switch t.Status {
	case StatusReleased:
		outcome = OutcomeReleased
	case StatusCancelled:
		outcome = OutcomeCancelled
	case StatusAppealApproved:
		outcome = OutcomeAppealApproved
	case StatusAppealRejected:
		outcome = OutcomeAppealRejected
	default:
		return
	}
	if err := s.orders.ApplyTransferOutcome(ctx, t.OrderID, t.ID, outcome); err != nil {
		s.logger.Error("order sync failed",
			"transfer_id", t.ID,
			"order_id", t.OrderID,
			"outcome", string(outcome),
			"error", err)
	}
}

func (s *Service) emit(t *Transfer) {
	if s.events != nil {
		s.events.EmitTransferUpdate(t)
	}
}

// SweepResult summarizes one scanner pass.
type SweepResult struct {
	Cancelled int
	Released  int
	Skipped   int
	Failed    int
}

const sweepBatchSize = 100

// Sweep performs one pass of timer enforcement: cancel unpaid transfers past
// the payment deadline, then release paid transfers past auto_release_at.
// Races with user actions are expected; a transfer that changed status since
// listing is skipped, not failed.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now().UTC()
	cfg := s.cfg.P2PConfig(ctx).WithDefaults()

	expired, err := s.store.ListExpiredPending(ctx, now.Add(-cfg.PaymentDeadline), sweepBatchSize)
	if err != nil {
		return res, fmt.Errorf("listing expired transfers: %w", err)
	}
	for _, t := range expired {
		switch _, err := s.transition(ctx, t.ID, EventDeadlineExpired, nil); {
		case err == nil:
			res.Cancelled++
		case isRaceLoss(err):
			res.Skipped++
		default:
			res.Failed++
			s.logger.Error("deadline cancel failed", "transfer_id", t.ID, "error", err)
		}
	}

	due, err := s.store.ListAutoReleasable(ctx, now, sweepBatchSize)
	if err != nil {
		return res, fmt.Errorf("listing auto-releasable transfers: %w", err)
	}
	for _, t := range due {
		switch _, err := s.autoRelease(ctx, t.ID); {
		case err == nil:
			res.Released++
		case isRaceLoss(err):
			res.Skipped++
		default:
			res.Failed++
			s.logger.Error("auto-release failed", "transfer_id", t.ID, "error", err)
		}
	}
	return res, nil
}

// autoRelease releases one transfer if it is still due, re-checking
// eligibility under the lock.
func (s *Service) autoRelease(ctx context.Context, id string) (*Transfer, error) {
	return s.transition(ctx, id, EventAutoRelease, func(t *Transfer, _ Config, now time.Time) error {
		if !t.ShouldAutoRelease(now) {
			return ErrInvalidTransition
		}
		return nil
	})
}

// isRaceLoss reports whether an error means another actor moved the transfer
// first, which the sweep treats as success-by-proxy.
func isRaceLoss(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrStaleTransfer) || errors.Is(err, ErrTransferNotFound)
}

func (t *Transfer) isParty(addr string) bool {
	return strings.EqualFold(addr, t.SenderAddress) || strings.EqualFold(addr, t.PartnerAddress)
}

// generateTransferID creates a unique transfer ID like "p2p_a1b2c3d4e5f6".
func generateTransferID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("p2p_%d", time.Now().UnixNano())
	}
	return "p2p_" + hex.EncodeToString(b)
}

// generateTransferCode creates the short human-facing code the parties quote
// to each other, like "TRX-4F9A2C".
func generateTransferCode() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("TRX-%06d", time.Now().UnixNano()%1000000)
	}
	return "TRX-" + strings.ToUpper(hex.EncodeToString(b))
}
