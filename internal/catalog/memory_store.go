package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]*Category
	slugs      map[string]string
	nfts       map[string]*NFT
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]*Category),
		slugs:      make(map[string]string),
		nfts:       make(map[string]*NFT),
	}
}

func (m *MemoryStore) CreateCategory(_ context.Context, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.slugs[c.Slug]; taken {
		return ErrSlugTaken
	}
	cc := *c
	m.categories[c.ID] = &cc
	m.slugs[c.Slug] = c.ID
	return nil
}

func (m *MemoryStore) GetCategory(_ context.Context, id string) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *MemoryStore) ListCategories(_ context.Context) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Category, 0, len(m.categories))
	for _, c := range m.categories {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return ErrCategoryNotFound
	}
	delete(m.slugs, c.Slug)
	delete(m.categories, id)
	return nil
}

func (m *MemoryStore) CreateNFT(_ context.Context, n *NFT) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nn := *n
	m.nfts[n.ID] = &nn
	return nil
}

func (m *MemoryStore) GetNFT(_ context.Context, id string) (*NFT, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nfts[id]
	if !ok {
		return nil, ErrNFTNotFound
	}
	nn := *n
	return &nn, nil
}

func (m *MemoryStore) UpdateNFT(_ context.Context, n *NFT) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nfts[n.ID]; !ok {
		return ErrNFTNotFound
	}
	nn := *n
	m.nfts[n.ID] = &nn
	return nil
}

func (m *MemoryStore) ListNFTs(_ context.Context, f NFTFilter) ([]*NFT, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*NFT
	for _, n := range m.nfts {
		if f.CategoryID != "" && n.CategoryID != f.CategoryID {
			continue
		}
		if f.Status != "" && n.Status != f.Status {
			continue
		}
		nn := *n
		out = append(out, &nn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) SetNFTStatus(_ context.Context, id string, from, to NFTStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nfts[id]
	if !ok {
		return ErrNFTNotFound
	}
	if n.Status != from {
		return ErrNFTNotAvailable
	}
	n.Status = to
	n.UpdatedAt = time.Now().UTC()
	return nil
}

var _ Store = (*MemoryStore)(nil)
