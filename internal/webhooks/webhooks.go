// Package webhooks delivers marketplace events to external services.
//
// Accounts register webhook URLs to be notified about:
// - Transfer lifecycle changes (paid, released, appealed, cancelled)
// - New listings
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/mintora/mintora/internal/retry"
)

// ErrSubscriptionNotFound is returned when a subscription ID is unknown.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// EventType names a deliverable marketplace event.
type EventType string

const (
	EventTransferPending          EventType = "transfer.pending"
	EventTransferPaymentCompleted EventType = "transfer.payment_completed"
	EventTransferReleased         EventType = "transfer.released"
	EventTransferAppealed         EventType = "transfer.appealed"
	EventTransferCancelled        EventType = "transfer.cancelled"
	EventTransferAppealApproved   EventType = "transfer.appeal_approved"
	EventTransferAppealRejected   EventType = "transfer.appeal_rejected"
	EventNFTListed                EventType = "nft.listed"
)

// KnownEvent reports whether t is a deliverable event type.
func KnownEvent(t EventType) bool {
	switch t {
	case EventTransferPending, EventTransferPaymentCompleted, EventTransferReleased,
		EventTransferAppealed, EventTransferCancelled, EventTransferAppealApproved,
		EventTransferAppealRejected, EventNFTListed:
		return true
	}
	return false
}

// Event is the payload POSTed to a subscriber's endpoint.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Subscription is one registered endpoint. The signing secret never
// leaves the server after creation.
type Subscription struct {
	ID             string      `json:"id"`
	AccountAddress string      `json:"accountAddress"`
	URL            string      `json:"url"`
	Secret         string      `json:"-"`
	Events         []EventType `json:"events"`
	Active         bool        `json:"active"`
	CreatedAt      time.Time   `json:"createdAt"`
	LastSuccess    *time.Time  `json:"lastSuccess,omitempty"`
	LastError      string      `json:"lastError,omitempty"`
}

// wants reports whether the subscription covers the given event type.
func (s *Subscription) wants(t EventType) bool {
	return slices.Contains(s.Events, t)
}

// Store persists subscriptions.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByAccount(ctx context.Context, accountAddr string) ([]*Subscription, error)
	GetByEvent(ctx context.Context, eventType EventType) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// Dispatcher sends webhook events with retry. Transient failures are
// retried with backoff; a 4xx from the receiver is not.
type Dispatcher struct {
	store  Store
	client *http.Client
	logger *slog.Logger
}

func NewDispatcher(store Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:  store,
		logger: logger.With("component", "webhooks"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// DispatchToAccount sends an event to the account's matching subscriptions.
// Delivery is asynchronous; the caller never blocks on receiver latency.
func (d *Dispatcher) DispatchToAccount(ctx context.Context, accountAddr string, event *Event) error {
	subs, err := d.store.GetByAccount(ctx, accountAddr)
	if err != nil {
		return fmt.Errorf("loading subscriptions: %w", err)
	}

	for _, sub := range subs {
		if !sub.Active || !sub.wants(event.Type) {
			continue
		}
		go d.send(sub, event)
	}

	return nil
}

func (d *Dispatcher) send(sub *Subscription, event *Event) {
	// Delivery outlives the request that triggered it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		d.recordError(ctx, sub, "failed to marshal event")
		return
	}

	err = retry.Do(ctx, 3, time.Second, func() error {
		return d.deliver(ctx, sub, event, payload)
	})
	if err != nil {
		d.recordError(ctx, sub, err.Error())
		d.logger.Warn("webhook delivery failed",
			"subscription_id", sub.ID,
			"event", string(event.Type),
			"error", err)
		return
	}
	d.recordSuccess(ctx, sub)
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", sub.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("building request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mintora-Event", string(event.Type))
	req.Header.Set("X-Mintora-Timestamp", strconv.FormatInt(event.Timestamp.Unix(), 10))
	if sub.Secret != "" {
		req.Header.Set("X-Mintora-Signature", sign(payload, sub.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The receiver rejected the event; retrying won't change that.
		return retry.Permanent(fmt.Errorf("receiver returned %d", resp.StatusCode))
	default:
		return fmt.Errorf("receiver returned %d", resp.StatusCode)
	}
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks an X-Mintora-Signature header against the payload.
// Exported for receiver-side use in integrations and tests.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(sign(payload, secret)), []byte(signature))
}

func (d *Dispatcher) recordSuccess(ctx context.Context, sub *Subscription) {
	now := time.Now()
	sub.LastSuccess = &now
	sub.LastError = ""
	if err := d.store.Update(ctx, sub); err != nil {
		d.logger.Warn("webhook status update failed", "subscription_id", sub.ID, "error", err)
	}
}

func (d *Dispatcher) recordError(ctx context.Context, sub *Subscription, errMsg string) {
	sub.LastError = errMsg
	if err := d.store.Update(ctx, sub); err != nil {
		d.logger.Warn("webhook status update failed", "subscription_id", sub.ID, "error", err)
	}
}

// MemoryStore backs development mode and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Subscription)}
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (m *MemoryStore) GetByAccount(_ context.Context, accountAddr string) ([]*Subscription, error) {
	return m.filter(func(sub *Subscription) bool { return sub.AccountAddress == accountAddr })
}

func (m *MemoryStore) GetByEvent(_ context.Context, eventType EventType) ([]*Subscription, error) {
	return m.filter(func(sub *Subscription) bool { return sub.wants(eventType) })
}

func (m *MemoryStore) filter(keep func(*Subscription) bool) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*Subscription
	for _, sub := range m.subs {
		if keep(sub) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func (m *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	return nil
}
