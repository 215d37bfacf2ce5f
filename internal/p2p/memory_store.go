package p2p

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	transfers map[string]*Transfer
	byOrder   map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transfers: make(map[string]*Transfer),
		byOrder:   make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, t *Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byOrder[t.OrderID]; ok {
		if existing := m.transfers[existingID]; existing != nil && existing.Status != StatusCancelled {
			return ErrDuplicateTransfer
		}
	}
	m.transfers[t.ID] = copyTransfer(t)
	m.byOrder[t.OrderID] = t.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transfers[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	return copyTransfer(t), nil
}

func (m *MemoryStore) GetByOrder(_ context.Context, orderID string) (*Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrTransferNotFound
	}
	return copyTransfer(m.transfers[id]), nil
}

func (m *MemoryStore) Update(_ context.Context, t *Transfer, expected Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.transfers[t.ID]
	if !ok {
		return ErrTransferNotFound
	}
	if current.Status != expected {
		return ErrStaleTransfer
	}
	m.transfers[t.ID] = copyTransfer(t)
	return nil
}

func (m *MemoryStore) ListByAddress(_ context.Context, addr string, limit int) ([]*Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Transfer
	for _, t := range m.transfers {
		if strings.EqualFold(t.SenderAddress, addr) || strings.EqualFold(t.PartnerAddress, addr) {
			out = append(out, copyTransfer(t))
		}
	}
	sortNewestFirst(out)
	return clampList(out, limit), nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Transfer
	for _, t := range m.transfers {
		if t.Status == status {
			out = append(out, copyTransfer(t))
		}
	}
	sortNewestFirst(out)
	return clampList(out, limit), nil
}

func (m *MemoryStore) ListExpiredPending(_ context.Context, createdBefore time.Time, limit int) ([]*Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Transfer
	for _, t := range m.transfers {
		if t.Status == StatusPending && t.CreatedAt.Before(createdBefore) {
			out = append(out, copyTransfer(t))
		}
	}
	sortNewestFirst(out)
	return clampList(out, limit), nil
}

func (m *MemoryStore) ListAutoReleasable(_ context.Context, before time.Time, limit int) ([]*Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Transfer
	for _, t := range m.transfers {
		if t.Status == StatusPaymentCompleted && t.AutoReleaseAt != nil && !t.AutoReleaseAt.After(before) {
			out = append(out, copyTransfer(t))
		}
	}
	sortNewestFirst(out)
	return clampList(out, limit), nil
}

func sortNewestFirst(ts []*Transfer) {
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}

func clampList(ts []*Transfer, limit int) []*Transfer {
	if limit > 0 && len(ts) > limit {
		return ts[:limit]
	}
	return ts
}

// copyTransfer deep-copies a transfer so callers can't mutate stored state.
func copyTransfer(t *Transfer) *Transfer {
	c := *t
	c.PaymentCompletedAt = copyTime(t.PaymentCompletedAt)
	c.ReleaseTimerStartedAt = copyTime(t.ReleaseTimerStartedAt)
	c.AutoReleaseAt = copyTime(t.AutoReleaseAt)
	c.AppealedAt = copyTime(t.AppealedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var _ Store = (*MemoryStore)(nil)
