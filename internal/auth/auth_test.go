package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newManager() (*Manager, context.Context) {
	return NewManager(NewMemoryStore()), context.Background()
}

func TestRegisterIssuesWorkingKey(t *testing.T) {
	mgr, ctx := newManager()

	account, rawKey, err := mgr.Register(ctx, "0xABCD567890123456789012345678901234567890", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !strings.HasPrefix(account.ID, "acc_") {
		t.Errorf("account ID %q lacks acc_ prefix", account.ID)
	}
	if account.Address != "0xabcd567890123456789012345678901234567890" {
		t.Errorf("address not lowercased: %s", account.Address)
	}
	if account.Role != RoleUser {
		t.Errorf("role = %s, want %s", account.Role, RoleUser)
	}

	key, err := mgr.ValidateKey(ctx, rawKey)
	if err != nil {
		t.Fatalf("registration key rejected: %v", err)
	}
	if key.AccountAddr != account.Address {
		t.Errorf("key bound to %s, want %s", key.AccountAddr, account.Address)
	}
}

func TestRegisterDuplicateAddress(t *testing.T) {
	mgr, ctx := newManager()
	addr := "0xabcdef7890123456789012345678901234567890"

	if _, _, err := mgr.Register(ctx, addr, "Alice", ""); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	// Same address in a different case is still the same account.
	_, _, err := mgr.Register(ctx, "0xABCDEF7890123456789012345678901234567890", "Mallory", "")
	if !errors.Is(err, ErrAccountExists) {
		t.Errorf("got %v, want ErrAccountExists", err)
	}
}

func TestGenerateKeyShape(t *testing.T) {
	mgr, ctx := newManager()

	rawKey, key, err := mgr.GenerateKey(ctx, "0xAccount123", "Primary")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if !strings.HasPrefix(rawKey, "sk_") || len(rawKey) != 67 {
		t.Errorf("raw key %q: want sk_ prefix and 67 chars", rawKey)
	}
	if !strings.HasPrefix(key.ID, "ak_") {
		t.Errorf("key ID %q lacks ak_ prefix", key.ID)
	}
	if key.AccountAddr != "0xaccount123" {
		t.Errorf("account addr %q not lowercased", key.AccountAddr)
	}
	if key.Name != "Primary" {
		t.Errorf("name = %q", key.Name)
	}
	if key.Hash == "" || key.Hash == rawKey {
		t.Error("stored hash must be set and must not be the raw key")
	}
}

func TestValidateKeyRejections(t *testing.T) {
	mgr, ctx := newManager()

	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrNoAPIKey},
		{"no sk_ prefix", "not_a_valid_key", ErrInvalidAPIKey},
		{"unknown key", "sk_0000000000000000000000000000000000000000000000000000000000000000", ErrInvalidAPIKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mgr.ValidateKey(ctx, tc.raw); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidateKeyAcceptsBearerForm(t *testing.T) {
	mgr, ctx := newManager()
	rawKey, _, err := mgr.GenerateKey(ctx, "0xAccount123", "Primary")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	for _, form := range []string{rawKey, "Bearer " + rawKey, "Bearer " + rawKey + " "} {
		if _, err := mgr.ValidateKey(ctx, form); err != nil {
			t.Errorf("ValidateKey(%q): %v", form, err)
		}
	}
}

func TestListKeysScopedToAccount(t *testing.T) {
	mgr, ctx := newManager()
	mustGenerate := func(addr, name string) {
		if _, _, err := mgr.GenerateKey(ctx, addr, name); err != nil {
			t.Fatalf("GenerateKey(%s): %v", name, err)
		}
	}
	mustGenerate("0xAccount1", "first")
	mustGenerate("0xAccount1", "second")
	mustGenerate("0xAccount2", "other")

	keys, err := mgr.ListKeys(ctx, "0xACCOUNT1")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("account1 has %d keys, want 2", len(keys))
	}
	keys, _ = mgr.ListKeys(ctx, "0xAccount2")
	if len(keys) != 1 {
		t.Errorf("account2 has %d keys, want 1", len(keys))
	}
}

func TestRevokeKey(t *testing.T) {
	mgr, ctx := newManager()
	rawKey, key, err := mgr.GenerateKey(ctx, "0xAccount1", "doomed")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	if err := mgr.RevokeKey(ctx, key.ID, "0xAccount1"); err != nil {
		t.Fatalf("RevokeKey: %v", err)
	}
	if _, err := mgr.ValidateKey(ctx, rawKey); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("revoked key validated: %v", err)
	}
	// Revoking an unknown ID reports the miss.
	if err := mgr.RevokeKey(ctx, "ak_missing", "0xAccount1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("got %v, want ErrKeyNotFound", err)
	}
}

func TestKeyHashNeverSerialized(t *testing.T) {
	mgr, ctx := newManager()
	rawKey, _, err := mgr.GenerateKey(ctx, "0xAccount1", "Primary")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	key, err := mgr.ValidateKey(ctx, rawKey)
	if err != nil {
		t.Fatalf("ValidateKey: %v", err)
	}

	out, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(out), key.Hash) {
		t.Error("key hash leaked into JSON output")
	}
}
