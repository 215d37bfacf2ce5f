package tickets

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	tickets  map[string]*Ticket
	messages map[string][]*Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:  make(map[string]*Ticket),
		messages: make(map[string][]*Message),
	}
}

func (m *MemoryStore) CreateTicket(_ context.Context, tk *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *tk
	m.tickets[tk.ID] = &c
	return nil
}

func (m *MemoryStore) GetTicket(_ context.Context, id string) (*Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tk, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	c := *tk
	return &c, nil
}

func (m *MemoryStore) UpdateTicket(_ context.Context, tk *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[tk.ID]; !ok {
		return ErrTicketNotFound
	}
	c := *tk
	m.tickets[tk.ID] = &c
	return nil
}

func (m *MemoryStore) ListByAccount(_ context.Context, addr string, limit int) ([]*Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Ticket
	for _, tk := range m.tickets {
		if tk.AccountAddress == addr {
			c := *tk
			out = append(out, &c)
		}
	}
	return sortClamp(out, limit), nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Ticket
	for _, tk := range m.tickets {
		if tk.Status == status {
			c := *tk
			out = append(out, &c)
		}
	}
	return sortClamp(out, limit), nil
}

func (m *MemoryStore) AddMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[msg.TicketID]; !ok {
		return ErrTicketNotFound
	}
	c := *msg
	m.messages[msg.TicketID] = append(m.messages[msg.TicketID], &c)
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, ticketID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[ticketID]
	out := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		c := *msg
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func sortClamp(ts []*Ticket, limit int) []*Ticket {
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedAt.After(ts[j].CreatedAt) })
	if limit > 0 && len(ts) > limit {
		return ts[:limit]
	}
	return ts
}

var _ Store = (*MemoryStore)(nil)
