package payments

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	methods map[string]*Method
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{methods: make(map[string]*Method)}
}

func (m *MemoryStore) Create(_ context.Context, pm *Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[pm.ID] = copyMethod(pm)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Method, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.methods[id]
	if !ok {
		return nil, ErrMethodNotFound
	}
	return copyMethod(pm), nil
}

func (m *MemoryStore) Update(_ context.Context, pm *Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[pm.ID]; !ok {
		return ErrMethodNotFound
	}
	m.methods[pm.ID] = copyMethod(pm)
	return nil
}

func (m *MemoryStore) List(_ context.Context, enabledOnly bool) ([]*Method, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Method
	for _, pm := range m.methods {
		if enabledOnly && !pm.Enabled {
			continue
		}
		out = append(out, copyMethod(pm))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[id]; !ok {
		return ErrMethodNotFound
	}
	delete(m.methods, id)
	return nil
}

func copyMethod(pm *Method) *Method {
	c := *pm
	if pm.Details != nil {
		c.Details = make(map[string]string, len(pm.Details))
		for k, v := range pm.Details {
			c.Details[k] = v
		}
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
