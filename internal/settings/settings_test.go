package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mintora/mintora/internal/p2p"
)

func testService() *Service {
	return NewService(NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSetAndGet(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("expected ErrSettingNotFound, got %v", err)
	}

	if err := svc.Set(ctx, "site_name", "Mintora"); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(ctx, "site_name")
	if err != nil {
		t.Fatal(err)
	}
	if got.Value != "Mintora" {
		t.Errorf("value = %q, want Mintora", got.Value)
	}

	// Overwrite.
	if err := svc.Set(ctx, "site_name", "Mintora NFT"); err != nil {
		t.Fatal(err)
	}
	got, _ = svc.Get(ctx, "site_name")
	if got.Value != "Mintora NFT" {
		t.Errorf("value = %q after overwrite", got.Value)
	}
}

func TestP2PConfigDefaults(t *testing.T) {
	svc := testService()

	cfg := svc.P2PConfig(context.Background())
	if cfg.WithDefaults().PaymentDeadline != p2p.DefaultPaymentDeadline {
		t.Errorf("PaymentDeadline = %v, want default", cfg.PaymentDeadline)
	}
	if cfg.WithDefaults().AutoRelease != p2p.DefaultAutoRelease {
		t.Errorf("AutoRelease = %v, want default", cfg.AutoRelease)
	}
}

func TestP2PConfigFromSettings(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	if err := svc.Set(ctx, KeyPaymentDeadlineMinutes, "5"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Set(ctx, KeyAutoReleaseMinutes, "60"); err != nil {
		t.Fatal(err)
	}

	cfg := svc.P2PConfig(ctx)
	if cfg.PaymentDeadline != 5*time.Minute {
		t.Errorf("PaymentDeadline = %v, want 5m", cfg.PaymentDeadline)
	}
	if cfg.AutoRelease != 60*time.Minute {
		t.Errorf("AutoRelease = %v, want 60m", cfg.AutoRelease)
	}
}

func TestP2PConfigIgnoresGarbageValues(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	for _, bad := range []string{"abc", "-3", "0", ""} {
		if err := svc.Set(ctx, KeyPaymentDeadlineMinutes, bad); err != nil {
			t.Fatal(err)
		}
		cfg := svc.P2PConfig(ctx)
		if cfg.PaymentDeadline != p2p.DefaultPaymentDeadline {
			t.Errorf("value %q: PaymentDeadline = %v, want default", bad, cfg.PaymentDeadline)
		}
	}
}

func TestAllSorted(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	for _, k := range []string{"zeta", "alpha", "mid"} {
		if err := svc.Set(ctx, k, "v"); err != nil {
			t.Fatal(err)
		}
	}
	all, err := svc.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Key != "alpha" || all[2].Key != "zeta" {
		t.Errorf("unexpected order: %v", all)
	}
}
