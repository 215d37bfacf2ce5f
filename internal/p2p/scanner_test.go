package p2p

import (
	"context"
	"testing"
	"time"
)

func newScannerService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	svc := NewService(store, StaticConfig{
		PaymentDeadline: time.Millisecond,
		AutoRelease:     time.Millisecond,
	}, testLogger())
	return svc, store
}

func TestScannerCancelsExpiredTransfers(t *testing.T) {
	svc, _ := newScannerService()
	tr := mustCreate(t, svc, "ord_1")

	sc := NewScanner(svc, 10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.Start(ctx)
	defer sc.Stop()

	deadline := time.After(2 * time.Second)
	for {
		got, err := svc.Get(context.Background(), tr.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == StatusCancelled {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("transfer still %s after 2s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScannerReleasesPaidTransfers(t *testing.T) {
	svc, _ := newScannerService()
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	sc := NewScanner(svc, 10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.Start(ctx)
	defer sc.Stop()

	deadline := time.After(2 * time.Second)
	for {
		got, err := svc.Get(context.Background(), tr.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == StatusReleased {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("transfer still %s after 2s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScannerStop(t *testing.T) {
	svc, _ := newScannerService()
	sc := NewScanner(svc, 10*time.Millisecond, testLogger())

	done := make(chan struct{})
	go func() {
		sc.Start(context.Background())
		close(done)
	}()

	// Wait for the loop to come up before stopping it.
	for i := 0; i < 100 && !sc.IsRunning(); i++ {
		time.Sleep(time.Millisecond)
	}
	sc.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop")
	}
	if sc.IsRunning() {
		t.Error("IsRunning = true after stop")
	}

	// Stop is safe to call twice.
	sc.Stop()
}

func TestScannerContextCancel(t *testing.T) {
	svc, _ := newScannerService()
	sc := NewScanner(svc, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sc.Start(ctx)
		close(done)
	}()

	for i := 0; i < 100 && !sc.IsRunning(); i++ {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop on context cancel")
	}
}

func TestScannerRefusesDoubleStart(t *testing.T) {
	svc, _ := newScannerService()
	sc := NewScanner(svc, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.Start(ctx)

	for i := 0; i < 100 && !sc.IsRunning(); i++ {
		time.Sleep(time.Millisecond)
	}

	// Second Start returns immediately instead of spinning a second loop.
	done := make(chan struct{})
	go func() {
		sc.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Start did not return")
	}
}
