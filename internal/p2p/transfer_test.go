package p2p

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Transition table
// ---------------------------------------------------------------------------

func TestTransitionTableLegalEdges(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
	}{
		{StatusPending, EventMarkPaid, StatusPaymentCompleted},
		{StatusPending, EventDeadlineExpired, StatusCancelled},
		{StatusPending, EventCancel, StatusCancelled},
		{StatusPaymentCompleted, EventRelease, StatusReleased},
		{StatusPaymentCompleted, EventAutoRelease, StatusReleased},
		{StatusPaymentCompleted, EventAppeal, StatusAppealed},
		{StatusPaymentCompleted, EventCancel, StatusCancelled},
		{StatusAppealed, EventApproveAppeal, StatusAppealApproved},
		{StatusAppealed, EventRejectAppeal, StatusAppealRejected},
	}
	for _, tc := range cases {
		tr := &Transfer{Status: tc.from}
		got, err := tr.next(tc.ev)
		if err != nil {
			t.Errorf("%s + %s: unexpected error %v", tc.from, tc.ev, err)
			continue
		}
		if got != tc.to {
			t.Errorf("%s + %s: got %s, want %s", tc.from, tc.ev, got, tc.to)
		}
	}
}

func TestTransitionTableRejectsEverythingElse(t *testing.T) {
	allStatuses := []Status{
		StatusPending, StatusPaymentCompleted, StatusReleased,
		StatusAppealed, StatusCancelled, StatusAppealApproved, StatusAppealRejected,
	}
	allEvents := []Event{
		EventMarkPaid, EventDeadlineExpired, EventRelease, EventAutoRelease,
		EventAppeal, EventCancel, EventApproveAppeal, EventRejectAppeal,
	}

	for _, st := range allStatuses {
		for _, ev := range allEvents {
			_, legal := transitions[st][ev]
			tr := &Transfer{Status: st}
			_, err := tr.next(ev)
			if legal && err != nil {
				t.Errorf("%s + %s: expected legal, got %v", st, ev, err)
			}
			if !legal && err != ErrInvalidTransition {
				t.Errorf("%s + %s: expected ErrInvalidTransition, got %v", st, ev, err)
			}
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, st := range []Status{StatusReleased, StatusCancelled, StatusAppealApproved, StatusAppealRejected} {
		if edges := transitions[st]; len(edges) != 0 {
			t.Errorf("terminal status %s has outgoing edges: %v", st, edges)
		}
		tr := &Transfer{Status: st}
		if !tr.IsTerminal() {
			t.Errorf("IsTerminal(%s) = false, want true", st)
		}
	}
	for _, st := range []Status{StatusPending, StatusPaymentCompleted, StatusAppealed} {
		tr := &Transfer{Status: st}
		if tr.IsTerminal() {
			t.Errorf("IsTerminal(%s) = true, want false", st)
		}
	}
}

// ---------------------------------------------------------------------------
// Auto-release check
// ---------------------------------------------------------------------------

func TestShouldAutoRelease(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := base.Add(30 * time.Minute)

	tr := &Transfer{Status: StatusPaymentCompleted, AutoReleaseAt: &due}

	if tr.ShouldAutoRelease(base.Add(29 * time.Minute)) {
		t.Error("should not auto-release one minute early")
	}
	if !tr.ShouldAutoRelease(due) {
		t.Error("should auto-release exactly at the deadline")
	}
	if !tr.ShouldAutoRelease(due.Add(time.Hour)) {
		t.Error("should auto-release after the deadline")
	}
}

func TestShouldAutoReleaseFalseOutsidePaymentCompleted(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	for _, st := range []Status{StatusPending, StatusReleased, StatusAppealed, StatusCancelled, StatusAppealApproved, StatusAppealRejected} {
		tr := &Transfer{Status: st, AutoReleaseAt: &past}
		if tr.ShouldAutoRelease(time.Now()) {
			t.Errorf("status %s: ShouldAutoRelease = true, want false", st)
		}
	}
}

func TestShouldAutoReleaseFalseWithoutTimestamp(t *testing.T) {
	tr := &Transfer{Status: StatusPaymentCompleted}
	if tr.ShouldAutoRelease(time.Now()) {
		t.Error("nil AutoReleaseAt should never auto-release")
	}
}

// ---------------------------------------------------------------------------
// Remaining time
// ---------------------------------------------------------------------------

func TestRemainingPending(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{PaymentDeadline: 15 * time.Minute, AutoRelease: 30 * time.Minute}
	tr := &Transfer{Status: StatusPending, CreatedAt: base}

	left, ok := tr.Remaining(base.Add(5*time.Minute), cfg)
	if !ok || left != 10*time.Minute {
		t.Errorf("got (%v, %v), want (10m, true)", left, ok)
	}

	// Past the deadline the value clamps to zero, never negative.
	left, ok = tr.Remaining(base.Add(20*time.Minute), cfg)
	if !ok || left != 0 {
		t.Errorf("got (%v, %v), want (0, true)", left, ok)
	}
}

func TestRemainingPaymentCompleted(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := base.Add(30 * time.Minute)
	cfg := Config{PaymentDeadline: 15 * time.Minute, AutoRelease: 30 * time.Minute}
	tr := &Transfer{Status: StatusPaymentCompleted, CreatedAt: base, AutoReleaseAt: &due}

	left, ok := tr.Remaining(base.Add(10*time.Minute), cfg)
	if !ok || left != 20*time.Minute {
		t.Errorf("got (%v, %v), want (20m, true)", left, ok)
	}
}

func TestRemainingNoTimerStates(t *testing.T) {
	cfg := Config{}.WithDefaults()
	for _, st := range []Status{StatusReleased, StatusAppealed, StatusCancelled, StatusAppealApproved, StatusAppealRejected} {
		tr := &Transfer{Status: st, CreatedAt: time.Now()}
		if _, ok := tr.Remaining(time.Now(), cfg); ok {
			t.Errorf("status %s: expected no remaining timer", st)
		}
	}
}

// ---------------------------------------------------------------------------
// Config defaults
// ---------------------------------------------------------------------------

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.PaymentDeadline != 15*time.Minute {
		t.Errorf("PaymentDeadline = %v, want 15m", cfg.PaymentDeadline)
	}
	if cfg.AutoRelease != 30*time.Minute {
		t.Errorf("AutoRelease = %v, want 30m", cfg.AutoRelease)
	}

	custom := Config{PaymentDeadline: time.Hour, AutoRelease: 2 * time.Hour}.WithDefaults()
	if custom.PaymentDeadline != time.Hour || custom.AutoRelease != 2*time.Hour {
		t.Errorf("custom values overwritten: %+v", custom)
	}
}
