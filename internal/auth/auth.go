// Package auth provides account registration and API authentication for
// the Mintora API.
//
// Authentication model:
// - Public endpoints (catalog browse, transfer reads): no auth required
// - Mutations (orders, transfer actions, tickets): require an API key
// - API keys are issued on account registration and shown once
// - Admin endpoints require the X-Admin-Secret header
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

// Errors
var (
	ErrNoAPIKey       = errors.New("API key required")
	ErrInvalidAPIKey  = errors.New("invalid or expired API key")
	ErrNotOwner       = errors.New("not authorized for this resource")
	ErrKeyNotFound    = errors.New("API key not found")
	ErrAccountExists  = errors.New("account already registered")
	ErrAccountMissing = errors.New("account not found")
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is a registered marketplace user keyed by wallet address.
type Account struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// APIKey is the stored metadata for one issued key. Only the SHA-256
// hash is kept; the raw key is shown to the caller once.
type APIKey struct {
	ID          string     `json:"id"`
	Hash        string     `json:"-"`
	AccountAddr string     `json:"accountAddr"`
	Name        string     `json:"name"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsed    time.Time  `json:"lastUsed,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Revoked     bool       `json:"revoked"`
}

// Store persists accounts and API keys.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, addr string) (*Account, error)

	CreateKey(ctx context.Context, key *APIKey) error
	GetKeyByHash(ctx context.Context, hash string) (*APIKey, error)
	GetKeysByAccount(ctx context.Context, addr string) ([]*APIKey, error)
	UpdateKey(ctx context.Context, key *APIKey) error
	DeleteKey(ctx context.Context, id string) error
}

// Manager issues and validates API keys on top of a Store.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Register creates an account and its first API key. The raw key is
// returned once and never stored.
func (m *Manager) Register(ctx context.Context, addr, name, email string) (*Account, string, error) {
	account := &Account{
		ID:        "acc_" + randomHex(8),
		Address:   strings.ToLower(addr),
		Name:      name,
		Email:     email,
		Role:      RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.CreateAccount(ctx, account); err != nil {
		return nil, "", err
	}
	rawKey, _, err := m.GenerateKey(ctx, account.Address, "default")
	if err != nil {
		return nil, "", err
	}
	return account, rawKey, nil
}

// GetAccount returns an account by address.
func (m *Manager) GetAccount(ctx context.Context, addr string) (*Account, error) {
	return m.store.GetAccount(ctx, strings.ToLower(addr))
}

// GenerateKey mints a key for an account and returns the raw secret
// alongside the stored metadata.
func (m *Manager) GenerateKey(ctx context.Context, accountAddr, name string) (rawKey string, key *APIKey, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}

	rawKey = "sk_" + hex.EncodeToString(b)

	key = &APIKey{
		ID:          "ak_" + hex.EncodeToString(b[:8]),
		Hash:        hashKey(rawKey),
		AccountAddr: strings.ToLower(accountAddr),
		Name:        name,
		CreatedAt:   time.Now(),
	}

	if err := m.store.CreateKey(ctx, key); err != nil {
		return "", nil, err
	}

	return rawKey, key, nil
}

// ValidateKey resolves a raw key, with or without its Bearer prefix, to
// its stored metadata. Revoked and expired keys fail closed.
func (m *Manager) ValidateKey(ctx context.Context, rawKey string) (*APIKey, error) {
	if rawKey == "" {
		return nil, ErrNoAPIKey
	}

	rawKey = strings.TrimPrefix(rawKey, "Bearer ")
	rawKey = strings.TrimSpace(rawKey)

	if !strings.HasPrefix(rawKey, "sk_") {
		return nil, ErrInvalidAPIKey
	}

	hash := hashKey(rawKey)
	key, err := m.store.GetKeyByHash(ctx, hash)
	if err != nil {
		return nil, ErrInvalidAPIKey
	}

	if key.Revoked {
		return nil, ErrInvalidAPIKey
	}

	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrInvalidAPIKey
	}

	// Last-used is best effort; a lost update does not matter.
	go func() {
		key.LastUsed = time.Now()
		_ = m.store.UpdateKey(context.Background(), key)
	}()

	return key, nil
}

// ListKeys returns every key issued to an account.
func (m *Manager) ListKeys(ctx context.Context, accountAddr string) ([]*APIKey, error) {
	return m.store.GetKeysByAccount(ctx, strings.ToLower(accountAddr))
}

// RevokeKey marks one of the account's keys revoked.
func (m *Manager) RevokeKey(ctx context.Context, keyID, accountAddr string) error {
	keys, err := m.store.GetKeysByAccount(ctx, accountAddr)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if k.ID == keyID {
			k.Revoked = true
			return m.store.UpdateKey(ctx, k)
		}
	}

	return ErrKeyNotFound
}

func hashKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// MemoryStore keeps accounts and keys in maps. Used by tests and by
// the server when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by lowercase address
	keys     map[string]*APIKey  // keyed by key ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		keys:     make(map[string]*APIKey),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.Address]; exists {
		return ErrAccountExists
	}
	s.accounts[a.Address] = a
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, addr string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[addr]
	if !ok {
		return nil, ErrAccountMissing
	}
	return a, nil
}

func (s *MemoryStore) CreateKey(ctx context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *MemoryStore) GetKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.Hash == hash {
			return k, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryStore) GetKeysByAccount(ctx context.Context, addr string) ([]*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*APIKey
	for _, k := range s.keys {
		if strings.EqualFold(k.AccountAddr, addr) {
			result = append(result, k)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpdateKey(ctx context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *MemoryStore) DeleteKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}
