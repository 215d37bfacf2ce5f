// Package p2p tracks the off-chain payment handshake that settles an order.
//
// Flow:
//  1. Buyer places an order with payment method "p2p" → transfer created (pending)
//  2. Buyer sends crypto directly to the seller and marks the payment sent
//  3. Seller confirms receipt and releases the NFT, or the timer releases it
//  4. Either party may appeal; an admin resolves the appeal
//  5. A pending transfer that is never paid is cancelled after the deadline
package p2p

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTransferNotFound   = errors.New("transfer not found")
	ErrInvalidTransition  = errors.New("transfer status does not allow this operation")
	ErrStaleTransfer      = errors.New("transfer was modified concurrently, retry")
	ErrUnauthorized       = errors.New("not a party to this transfer")
	ErrDuplicateTransfer  = errors.New("order already has an active transfer")
	ErrAppealReasonNeeded = errors.New("appeal reason is required")
)

// Status represents the state of a P2P transfer.
type Status string

const (
	StatusPending          Status = "pending"           // Created, waiting for the buyer to send payment
	StatusPaymentCompleted Status = "payment_completed" // Buyer marked payment sent, release timer running
	StatusReleased         Status = "released"          // Seller (or the timer) released the NFT
	StatusAppealed         Status = "appealed"          // Disputed, frozen until an admin resolves it
	StatusCancelled        Status = "cancelled"         // Cancelled explicitly or by the payment deadline
	StatusAppealApproved   Status = "appeal_approved"   // Admin sided with the appellant; order reopens
	StatusAppealRejected   Status = "appeal_rejected"   // Admin rejected the appeal; order failed
)

// Event names a transition attempt. Every mutation path resolves its target
// status through the transitions table; nothing else writes Status.
type Event string

const (
	EventMarkPaid        Event = "mark_paid"
	EventDeadlineExpired Event = "deadline_expired"
	EventRelease         Event = "release"
	EventAutoRelease     Event = "auto_release"
	EventAppeal          Event = "appeal"
	EventCancel          Event = "cancel"
	EventApproveAppeal   Event = "approve_appeal"
	EventRejectAppeal    Event = "reject_appeal"
)

// transitions is the complete set of legal status edges. An appealed transfer
// is frozen: only an admin resolution moves it, so EventCancel is absent there.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventMarkPaid:        StatusPaymentCompleted,
		EventDeadlineExpired: StatusCancelled,
		EventCancel:          StatusCancelled,
	},
	StatusPaymentCompleted: {
		EventRelease:     StatusReleased,
		EventAutoRelease: StatusReleased,
		EventAppeal:      StatusAppealed,
		EventCancel:      StatusCancelled,
	},
	StatusAppealed: {
		EventApproveAppeal: StatusAppealApproved,
		EventRejectAppeal:  StatusAppealRejected,
	},
}

// Transfer is the escrow-like record for one order's P2P settlement.
type Transfer struct {
	ID                     string     `json:"id"`
	OrderID                string     `json:"orderId"`
	TransferCode           string     `json:"transferCode"`
	SenderAddress          string     `json:"senderAddress"`  // buyer's wallet
	PartnerAddress         string     `json:"partnerAddress"` // seller's wallet
	PartnerPaymentMethodID string     `json:"partnerPaymentMethodId,omitempty"`
	Amount                 string     `json:"amount"`
	Network                string     `json:"network"`
	Status                 Status     `json:"status"`
	PaymentCompletedAt     *time.Time `json:"paymentCompletedAt,omitempty"`
	ReleaseTimerStartedAt  *time.Time `json:"releaseTimerStartedAt,omitempty"`
	AutoReleaseAt          *time.Time `json:"autoReleaseAt,omitempty"`
	AppealReason           string     `json:"appealReason,omitempty"`
	AppealedAt             *time.Time `json:"appealedAt,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// IsTerminal returns true if the transfer is in a final state.
func (t *Transfer) IsTerminal() bool {
	switch t.Status {
	case StatusReleased, StatusCancelled, StatusAppealApproved, StatusAppealRejected:
		return true
	}
	return false
}

// next resolves the status an event leads to from the current status.
func (t *Transfer) next(ev Event) (Status, error) {
	if to, ok := transitions[t.Status][ev]; ok {
		return to, nil
	}
	return "", ErrInvalidTransition
}

// ShouldAutoRelease is the authoritative auto-release check: true iff payment
// is completed and the release timer has elapsed. Once the transfer leaves
// payment_completed this is false forever.
func (t *Transfer) ShouldAutoRelease(now time.Time) bool {
	return t.Status == StatusPaymentCompleted &&
		t.AutoReleaseAt != nil &&
		!now.Before(*t.AutoReleaseAt)
}

// PaymentDeadlineAt returns the moment an unpaid transfer expires.
func (t *Transfer) PaymentDeadlineAt(cfg Config) time.Time {
	return t.CreatedAt.Add(cfg.PaymentDeadline)
}

// Remaining returns the time left on the active timer, clamped to zero.
// The second return is false for states with no timer (appealed, terminal).
// Display-only: transitions are driven by ShouldAutoRelease and the scanner,
// never by this value.
func (t *Transfer) Remaining(now time.Time, cfg Config) (time.Duration, bool) {
	var deadline time.Time
	switch t.Status {
	case StatusPending:
		deadline = t.PaymentDeadlineAt(cfg)
	case StatusPaymentCompleted:
		if t.AutoReleaseAt == nil {
			return 0, false
		}
		deadline = *t.AutoReleaseAt
	default:
		return 0, false
	}
	left := deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Config is the settings snapshot a state-machine evaluation runs against.
// Callers obtain it once per operation so a mid-operation settings change
// cannot produce inconsistent guard decisions.
type Config struct {
	PaymentDeadline time.Duration // pending → cancelled cutoff
	AutoRelease     time.Duration // payment_completed → released grace period
}

// Defaults applied when the settings table has no value for a key.
const (
	DefaultPaymentDeadline = 15 * time.Minute
	DefaultAutoRelease     = 30 * time.Minute
)

// WithDefaults fills zero durations with the documented defaults.
func (c Config) WithDefaults() Config {
	if c.PaymentDeadline <= 0 {
		c.PaymentDeadline = DefaultPaymentDeadline
	}
	if c.AutoRelease <= 0 {
		c.AutoRelease = DefaultAutoRelease
	}
	return c
}

// ConfigProvider supplies the current settings snapshot.
type ConfigProvider interface {
	P2PConfig(ctx context.Context) Config
}

// StaticConfig is a ConfigProvider returning a fixed snapshot (tests, demos).
type StaticConfig Config

func (s StaticConfig) P2PConfig(context.Context) Config {
	return Config(s).WithDefaults()
}

// Store persists transfer data.
type Store interface {
	Create(ctx context.Context, t *Transfer) error
	Get(ctx context.Context, id string) (*Transfer, error)
	GetByOrder(ctx context.Context, orderID string) (*Transfer, error)
	// Update persists t only if the stored status still equals expected,
	// returning ErrStaleTransfer when another transition won the race.
	Update(ctx context.Context, t *Transfer, expected Status) error
	ListByAddress(ctx context.Context, addr string, limit int) ([]*Transfer, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Transfer, error)
	// ListExpiredPending returns pending transfers created before the cutoff.
	ListExpiredPending(ctx context.Context, createdBefore time.Time, limit int) ([]*Transfer, error)
	// ListAutoReleasable returns payment_completed transfers whose
	// auto_release_at is at or before the given time.
	ListAutoReleasable(ctx context.Context, before time.Time, limit int) ([]*Transfer, error)
}
