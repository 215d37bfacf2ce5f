package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestNewFormat(t *testing.T) {
	id := New("ord")
	if !strings.HasPrefix(id, "ord_") {
		t.Errorf("missing prefix: %s", id)
	}
	if len(id) != len("ord_")+24 {
		t.Errorf("unexpected length: %s", id)
	}
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New("x")
		if seen[id] {
			t.Fatalf("duplicate ID: %s", id)
		}
		seen[id] = true
	}
}

func TestHexLength(t *testing.T) {
	if got := Hex(8); len(got) != 16 {
		t.Errorf("Hex(8) length = %d, want 16", len(got))
	}
}

func TestOrderNumber(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := OrderNumber(at)
	if !strings.HasPrefix(n, "MTR-20260301-") {
		t.Errorf("unexpected order number: %s", n)
	}
	if len(n) != len("MTR-20260301-")+6 {
		t.Errorf("unexpected length: %s", n)
	}
	if n == OrderNumber(at) {
		t.Error("order numbers should differ")
	}
}
