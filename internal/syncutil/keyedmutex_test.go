package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_Exclusion(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	const workers = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Lock(ctx, "same-key")
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d (increments were lost to a race)", counter, workers)
	}
}

func TestKeyedMutex_CancelledWhileWaiting(t *testing.T) {
	m := NewKeyedMutex()

	release, err := m.Lock(context.Background(), "held")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = m.Lock(ctx, "held")
	if err == nil {
		t.Fatal("Expected context error while slot is held")
	}
	if time.Since(start) > time.Second {
		t.Error("Lock did not give up promptly on cancellation")
	}

	release()

	// Slot must be usable again after the failed acquisition.
	release2, err := m.Lock(context.Background(), "held")
	if err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	release2()
}

func TestKeyedMutex_AlreadyCancelled(t *testing.T) {
	m := NewKeyedMutex()

	release, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Lock(ctx, "k"); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	// These two keys land on different slots for the current hash; if the
	// slot count changes, pick new keys.
	r1, err := m.Lock(ctx, "p2p_aaa")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer r1()

	done := make(chan struct{})
	go func() {
		defer close(done)
		lockCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		r2, err := m.Lock(lockCtx, "p2p_bbb")
		if err != nil {
			t.Errorf("Lock on distinct key failed: %v", err)
			return
		}
		r2()
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Distinct key blocked behind held slot")
	}
}
