package p2p

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

const (
	buyerAddr  = "0x1111111111111111111111111111111111111111"
	sellerAddr = "0x2222222222222222222222222222222222222222"
	otherAddr  = "0x3333333333333333333333333333333333333333"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	svc := NewService(store, StaticConfig{
		PaymentDeadline: 15 * time.Minute,
		AutoRelease:     30 * time.Minute,
	}, testLogger())
	return svc, store
}

// setNow pins the service clock for deterministic timer tests.
func setNow(s *Service, at time.Time) {
	s.now = func() time.Time { return at }
}

func mustCreate(t *testing.T, svc *Service, orderID string) *Transfer {
	t.Helper()
	tr, err := svc.Create(context.Background(), CreateRequest{
		OrderID:        orderID,
		SenderAddress:  buyerAddr,
		PartnerAddress: sellerAddr,
		Amount:         "150.00",
		Network:        "ethereum",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return tr
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type outcomeCall struct {
	orderID    string
	transferID string
	outcome    Outcome
}

type mockOrderSync struct {
	mu    sync.Mutex
	calls []outcomeCall
	err   error
}

func (m *mockOrderSync) ApplyTransferOutcome(_ context.Context, orderID, transferID string, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, outcomeCall{orderID, transferID, outcome})
	return m.err
}

func (m *mockOrderSync) last() (outcomeCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return outcomeCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

type mockRecorder struct {
	mu          sync.Mutex
	transitions []string
}

func (m *mockRecorder) RecordTransferTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateTransfer(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	if tr.Status != StatusPending {
		t.Errorf("status = %s, want pending", tr.Status)
	}
	if tr.ID == "" || tr.TransferCode == "" {
		t.Error("expected generated ID and transfer code")
	}
	if tr.SenderAddress != buyerAddr || tr.PartnerAddress != sellerAddr {
		t.Errorf("addresses not stored: %s / %s", tr.SenderAddress, tr.PartnerAddress)
	}
	if tr.AutoReleaseAt != nil || tr.PaymentCompletedAt != nil {
		t.Error("timer fields must be unset before payment")
	}
}

func TestCreateRejectsSecondActiveTransferForOrder(t *testing.T) {
	svc, _ := newTestService()
	mustCreate(t, svc, "ord_1")

	_, err := svc.Create(context.Background(), CreateRequest{
		OrderID:        "ord_1",
		SenderAddress:  buyerAddr,
		PartnerAddress: sellerAddr,
		Amount:         "150.00",
		Network:        "ethereum",
	})
	if !errors.Is(err, ErrDuplicateTransfer) {
		t.Errorf("expected ErrDuplicateTransfer, got %v", err)
	}
}

func TestCreateAllowsRetryAfterCancellation(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.Cancel(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateRequest{
		OrderID:        "ord_1",
		SenderAddress:  buyerAddr,
		PartnerAddress: sellerAddr,
		Amount:         "150.00",
		Network:        "ethereum",
	}); err != nil {
		t.Errorf("expected new transfer after cancellation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// MarkPaid
// ---------------------------------------------------------------------------

func TestMarkPaidStartsReleaseTimer(t *testing.T) {
	svc, _ := newTestService()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")

	got, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr)
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if got.Status != StatusPaymentCompleted {
		t.Errorf("status = %s, want payment_completed", got.Status)
	}
	if got.PaymentCompletedAt == nil || !got.PaymentCompletedAt.Equal(base) {
		t.Errorf("PaymentCompletedAt = %v, want %v", got.PaymentCompletedAt, base)
	}
	if got.ReleaseTimerStartedAt == nil || !got.ReleaseTimerStartedAt.Equal(base) {
		t.Errorf("ReleaseTimerStartedAt = %v, want %v", got.ReleaseTimerStartedAt, base)
	}
	want := base.Add(30 * time.Minute)
	if got.AutoReleaseAt == nil || !got.AutoReleaseAt.Equal(want) {
		t.Errorf("AutoReleaseAt = %v, want %v", got.AutoReleaseAt, want)
	}
}

func TestMarkPaidOnlyBuyer(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.MarkPaid(context.Background(), tr.ID, sellerAddr); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("seller MarkPaid: expected ErrUnauthorized, got %v", err)
	}
}

func TestMarkPaidTwiceRejected(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatalf("first MarkPaid failed: %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second MarkPaid: expected ErrInvalidTransition, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Release
// ---------------------------------------------------------------------------

func TestReleaseBySeller(t *testing.T) {
	svc, _ := newTestService()
	orders := &mockOrderSync{}
	svc.WithOrders(orders)
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	got, err := svc.Release(context.Background(), tr.ID, sellerAddr)
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if got.Status != StatusReleased {
		t.Errorf("status = %s, want released", got.Status)
	}
	call, ok := orders.last()
	if !ok || call.outcome != OutcomeReleased || call.orderID != "ord_1" {
		t.Errorf("order sync call = %+v, want released for ord_1", call)
	}
}

func TestReleaseByBuyerRejected(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Release(context.Background(), tr.ID, buyerAddr); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestReleaseBeforePaymentRejected(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.Release(context.Background(), tr.ID, sellerAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdminReleaseSkipsPartyCheck(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	got, err := svc.AdminRelease(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("AdminRelease failed: %v", err)
	}
	if got.Status != StatusReleased {
		t.Errorf("status = %s, want released", got.Status)
	}
}

// ---------------------------------------------------------------------------
// Appeal
// ---------------------------------------------------------------------------

func TestAppealFreezesTransfer(t *testing.T) {
	svc, _ := newTestService()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Appeal(context.Background(), tr.ID, buyerAddr, "never received the NFT")
	if err != nil {
		t.Fatalf("Appeal failed: %v", err)
	}
	if got.Status != StatusAppealed {
		t.Errorf("status = %s, want appealed", got.Status)
	}
	if got.AppealReason != "never received the NFT" || got.AppealedAt == nil {
		t.Errorf("appeal metadata not recorded: %+v", got)
	}

	// An appealed transfer must not be releasable by either party.
	if _, err := svc.Release(context.Background(), tr.ID, sellerAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("release after appeal: expected ErrInvalidTransition, got %v", err)
	}
}

func TestAppealRequiresReason(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Appeal(context.Background(), tr.ID, buyerAddr, "   "); !errors.Is(err, ErrAppealReasonNeeded) {
		t.Errorf("expected ErrAppealReasonNeeded, got %v", err)
	}
}

func TestAppealByStrangerRejected(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Appeal(context.Background(), tr.ID, otherAddr, "nope"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAppealBeforePaymentRejected(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.Appeal(context.Background(), tr.ID, buyerAddr, "too early"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestResolveAppeal(t *testing.T) {
	for _, tc := range []struct {
		name    string
		resolve func(*Service, string) (*Transfer, error)
		want    Status
		outcome Outcome
	}{
		{"approve", func(s *Service, id string) (*Transfer, error) {
			return s.ApproveAppeal(context.Background(), id)
		}, StatusAppealApproved, OutcomeAppealApproved},
		{"reject", func(s *Service, id string) (*Transfer, error) {
			return s.RejectAppeal(context.Background(), id)
		}, StatusAppealRejected, OutcomeAppealRejected},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService()
			orders := &mockOrderSync{}
			svc.WithOrders(orders)
			tr := mustCreate(t, svc, "ord_1")
			if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
				t.Fatal(err)
			}
			if _, err := svc.Appeal(context.Background(), tr.ID, buyerAddr, "dispute"); err != nil {
				t.Fatal(err)
			}

			got, err := tc.resolve(svc, tr.ID)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if got.Status != tc.want {
				t.Errorf("status = %s, want %s", got.Status, tc.want)
			}
			call, ok := orders.last()
			if !ok || call.outcome != tc.outcome {
				t.Errorf("order sync = %+v, want outcome %s", call, tc.outcome)
			}

			// Resolution is final.
			if _, err := tc.resolve(svc, tr.ID); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("double resolve: expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestResolveAppealRequiresAppealedStatus(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.ApproveAppeal(context.Background(), tr.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("approve on pending: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.RejectAppeal(context.Background(), tr.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reject on pending: expected ErrInvalidTransition, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

func TestCancelPending(t *testing.T) {
	svc, _ := newTestService()
	orders := &mockOrderSync{}
	svc.WithOrders(orders)
	tr := mustCreate(t, svc, "ord_1")

	got, err := svc.Cancel(context.Background(), tr.ID, sellerAddr)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if call, ok := orders.last(); !ok || call.outcome != OutcomeCancelled {
		t.Errorf("order sync = %+v, want cancelled", call)
	}
}

func TestCancelAppealedRejected(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Appeal(context.Background(), tr.ID, buyerAddr, "dispute"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Cancel(context.Background(), tr.ID, buyerAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel appealed: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelTerminalRejected(t *testing.T) {
	svc, _ := newTestService()
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Release(context.Background(), tr.ID, sellerAddr); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Cancel(context.Background(), tr.ID, buyerAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel released: expected ErrInvalidTransition, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Sweep: payment deadline
// ---------------------------------------------------------------------------

func TestSweepCancelsExpiredPending(t *testing.T) {
	svc, _ := newTestService()
	orders := &mockOrderSync{}
	svc.WithOrders(orders)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")

	// One minute before the 15-minute deadline: nothing happens.
	setNow(svc, base.Add(14*time.Minute))
	res, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res.Cancelled != 0 {
		t.Errorf("early sweep cancelled %d transfers", res.Cancelled)
	}

	// One minute past the deadline: cancelled.
	setNow(svc, base.Add(16*time.Minute))
	res, err = svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res.Cancelled != 1 {
		t.Errorf("Cancelled = %d, want 1", res.Cancelled)
	}

	got, err := svc.Get(context.Background(), tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if call, ok := orders.last(); !ok || call.outcome != OutcomeCancelled {
		t.Errorf("order sync = %+v, want cancelled", call)
	}
}

func TestSweepIgnoresPaidTransfersForDeadline(t *testing.T) {
	svc, _ := newTestService()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	// Way past the payment deadline but paid, and before auto-release.
	setNow(svc, base.Add(20*time.Minute))
	res, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Cancelled != 0 || res.Released != 0 {
		t.Errorf("sweep touched a healthy paid transfer: %+v", res)
	}
}

// ---------------------------------------------------------------------------
// Sweep: auto-release
// ---------------------------------------------------------------------------

func TestSweepAutoReleasesAtDeadline(t *testing.T) {
	svc, _ := newTestService()
	orders := &mockOrderSync{}
	svc.WithOrders(orders)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}

	// 29 minutes in: not yet.
	setNow(svc, base.Add(29*time.Minute))
	res, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Released != 0 {
		t.Errorf("released %d transfers a minute early", res.Released)
	}

	// Exactly 30 minutes: released.
	setNow(svc, base.Add(30*time.Minute))
	res, err = svc.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Released != 1 {
		t.Errorf("Released = %d, want 1", res.Released)
	}
	got, _ := svc.Get(context.Background(), tr.ID)
	if got.Status != StatusReleased {
		t.Errorf("status = %s, want released", got.Status)
	}
	if call, ok := orders.last(); !ok || call.outcome != OutcomeReleased {
		t.Errorf("order sync = %+v, want released", call)
	}

	// Sweeping again finds nothing: auto-release is idempotent.
	res, err = svc.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Released != 0 {
		t.Errorf("second sweep released %d transfers", res.Released)
	}
}

func TestSweepSkipsAppealedTransfers(t *testing.T) {
	svc, _ := newTestService()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")
	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Appeal(context.Background(), tr.ID, buyerAddr, "item not as described"); err != nil {
		t.Fatal(err)
	}

	// Hours past the would-be auto-release; the appeal freezes the clock.
	setNow(svc, base.Add(3*time.Hour))
	res, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Released != 0 {
		t.Errorf("sweep released an appealed transfer")
	}
	got, _ := svc.Get(context.Background(), tr.ID)
	if got.Status != StatusAppealed {
		t.Errorf("status = %s, want appealed", got.Status)
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentReleaseAndAppealExactlyOneWins(t *testing.T) {
	for i := 0; i < 20; i++ {
		svc, _ := newTestService()
		tr := mustCreate(t, svc, "ord_1")
		if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		var releaseErr, appealErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, releaseErr = svc.Release(context.Background(), tr.ID, sellerAddr)
		}()
		go func() {
			defer wg.Done()
			_, appealErr = svc.Appeal(context.Background(), tr.ID, buyerAddr, "race")
		}()
		wg.Wait()

		succeeded := 0
		if releaseErr == nil {
			succeeded++
		}
		if appealErr == nil {
			succeeded++
		}
		if succeeded != 1 {
			t.Fatalf("iteration %d: %d operations succeeded, want exactly 1 (release=%v appeal=%v)",
				i, succeeded, releaseErr, appealErr)
		}

		got, _ := svc.Get(context.Background(), tr.ID)
		if got.Status != StatusReleased && got.Status != StatusAppealed {
			t.Fatalf("iteration %d: unexpected final status %s", i, got.Status)
		}
	}
}

func TestStoreUpdateDetectsStaleStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	tr := &Transfer{ID: "p2p_x", OrderID: "ord_1", Status: StatusPending, CreatedAt: time.Now()}
	if err := store.Create(ctx, tr); err != nil {
		t.Fatal(err)
	}

	// Another actor moves the transfer first.
	moved := copyTransfer(tr)
	moved.Status = StatusCancelled
	if err := store.Update(ctx, moved, StatusPending); err != nil {
		t.Fatal(err)
	}

	late := copyTransfer(tr)
	late.Status = StatusPaymentCompleted
	if err := store.Update(ctx, late, StatusPending); !errors.Is(err, ErrStaleTransfer) {
		t.Errorf("expected ErrStaleTransfer, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

func TestOrderSyncFailureDoesNotRollBackTransition(t *testing.T) {
	svc, _ := newTestService()
	svc.WithOrders(&mockOrderSync{err: errors.New("orders down")})
	tr := mustCreate(t, svc, "ord_1")

	got, err := svc.Cancel(context.Background(), tr.ID, buyerAddr)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}

func TestRecorderSeesTransitions(t *testing.T) {
	svc, _ := newTestService()
	rec := &mockRecorder{}
	svc.WithRecorder(rec)
	tr := mustCreate(t, svc, "ord_1")

	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Release(context.Background(), tr.ID, sellerAddr); err != nil {
		t.Fatal(err)
	}

	want := []string{"pending->payment_completed", "payment_completed->released"}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", rec.transitions, want)
	}
	for i := range want {
		if rec.transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, rec.transitions[i], want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// RemainingTime through the service
// ---------------------------------------------------------------------------

func TestServiceRemainingTime(t *testing.T) {
	svc, _ := newTestService()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow(svc, base)
	tr := mustCreate(t, svc, "ord_1")

	secs, ok, err := svc.RemainingTime(context.Background(), tr.ID)
	if err != nil || !ok {
		t.Fatalf("RemainingTime = (%d, %v, %v)", secs, ok, err)
	}
	if secs != int64((15 * time.Minute).Seconds()) {
		t.Errorf("pending remaining = %d, want 900", secs)
	}

	if _, err := svc.MarkPaid(context.Background(), tr.ID, buyerAddr); err != nil {
		t.Fatal(err)
	}
	setNow(svc, base.Add(10*time.Minute))
	secs, ok, err = svc.RemainingTime(context.Background(), tr.ID)
	if err != nil || !ok {
		t.Fatalf("RemainingTime = (%d, %v, %v)", secs, ok, err)
	}
	if secs != int64((20 * time.Minute).Seconds()) {
		t.Errorf("paid remaining = %d, want 1200", secs)
	}

	if _, err := svc.Release(context.Background(), tr.ID, sellerAddr); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := svc.RemainingTime(context.Background(), tr.ID); err != nil || ok {
		t.Errorf("released transfer should report no timer (ok=%v err=%v)", ok, err)
	}
}
