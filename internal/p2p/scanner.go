package p2p

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mintora/mintora/internal/metrics"
)

// DefaultScanInterval is how often the scanner sweeps for due timers.
const DefaultScanInterval = 30 * time.Second

// Scanner periodically enforces transfer deadlines: cancelling unpaid
// transfers and releasing paid ones whose grace period elapsed. Deadlines are
// wall-clock comparisons against persisted timestamps, so a restart never
// loses a timer; the next sweep picks it up.
type Scanner struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewScanner creates a scanner. interval <= 0 selects the default.
func NewScanner(service *Service, interval time.Duration, logger *slog.Logger) *Scanner {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		service:  service,
		interval: interval,
		logger:   logger.With("component", "p2p-scanner"),
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called.
// Call in a goroutine.
func (sc *Scanner) Start(ctx context.Context) {
	if !sc.running.CompareAndSwap(false, true) {
		sc.logger.Warn("scanner already running")
		return
	}
	defer sc.running.Store(false)

	sc.logger.Info("scanner started", "interval", sc.interval.String())

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("scanner stopped", "reason", "context cancelled")
			return
		case <-sc.stop:
			sc.logger.Info("scanner stopped", "reason", "stop requested")
			return
		case <-ticker.C:
			sc.safeSweep(ctx)
		}
	}
}

// Stop signals the scanner to exit.
func (sc *Scanner) Stop() {
	select {
	case <-sc.stop:
	default:
		close(sc.stop)
	}
}

// IsRunning reports whether the loop is active.
func (sc *Scanner) IsRunning() bool {
	return sc.running.Load()
}

// safeSweep runs one sweep, recovering from panics so one bad pass cannot
// kill the loop.
func (sc *Scanner) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			sc.logger.Error("sweep panicked", "panic", r)
		}
	}()

	timer := time.Now()
	res, err := sc.service.Sweep(ctx)
	metrics.SweepDuration.Observe(time.Since(timer).Seconds())
	if err != nil {
		sc.logger.Error("sweep failed", "error", err)
		return
	}
	metrics.SweptTransfersTotal.WithLabelValues("cancelled").Add(float64(res.Cancelled))
	metrics.SweptTransfersTotal.WithLabelValues("released").Add(float64(res.Released))
	if res.Cancelled > 0 || res.Released > 0 || res.Failed > 0 {
		sc.logger.Info("sweep completed",
			"cancelled", res.Cancelled,
			"released", res.Released,
			"skipped", res.Skipped,
			"failed", res.Failed)
	}
}
