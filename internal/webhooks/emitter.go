package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mintora/mintora/internal/idgen"
	"github.com/mintora/mintora/internal/p2p"
)

var (
	webhookEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintora",
		Subsystem: "webhook",
		Name:      "emit_total",
		Help:      "Total webhook emit attempts by event type.",
	}, []string{"event_type"})

	webhookEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintora",
		Subsystem: "webhook",
		Name:      "emit_errors_total",
		Help:      "Total webhook emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(webhookEmitTotal, webhookEmitErrors)
}

// Emitter turns marketplace events into webhook dispatches. All methods are
// fire-and-forget: errors are logged but never returned, so a broken
// receiver cannot affect the operation that produced the event.
type Emitter struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewEmitter creates a webhook emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{d: d, logger: logger.With("component", "webhooks")}
}

// EmitTransferUpdate notifies both transfer parties of a status change.
func (e *Emitter) EmitTransferUpdate(t *p2p.Transfer) {
	if e == nil || e.d == nil {
		return
	}
	eventType := transferEventType(t.Status)
	if eventType == "" {
		return
	}
	data := map[string]interface{}{
		"transferId": t.ID,
		"orderId":    t.OrderID,
		"status":     string(t.Status),
		"amount":     t.Amount,
		"network":    t.Network,
	}
	if t.AutoReleaseAt != nil {
		data["autoReleaseAt"] = t.AutoReleaseAt
	}
	e.emit(t.SenderAddress, eventType, data)
	e.emit(t.PartnerAddress, eventType, data)
}

// EmitNFTListed notifies the owner that their listing is live.
func (e *Emitter) EmitNFTListed(nftID, ownerAddr, price string) {
	if e == nil || e.d == nil {
		return
	}
	e.emit(ownerAddr, EventNFTListed, map[string]interface{}{
		"nftId": nftID,
		"price": price,
	})
}

func (e *Emitter) emit(accountAddr string, eventType EventType, data map[string]interface{}) {
	webhookEmitTotal.WithLabelValues(string(eventType)).Inc()
	event := &Event{
		ID:        idgen.New("evt"),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.d.DispatchToAccount(ctx, accountAddr, event); err != nil {
		webhookEmitErrors.WithLabelValues(string(eventType)).Inc()
		e.logger.Warn("webhook emit failed",
			"event", string(eventType),
			"account", accountAddr,
			"error", err)
	}
}

func transferEventType(status p2p.Status) EventType {
	switch status {
	case p2p.StatusPending:
		return EventTransferPending
	case p2p.StatusPaymentCompleted:
		return EventTransferPaymentCompleted
	case p2p.StatusReleased:
		return EventTransferReleased
	case p2p.StatusAppealed:
		return EventTransferAppealed
	case p2p.StatusCancelled:
		return EventTransferCancelled
	case p2p.StatusAppealApproved:
		return EventTransferAppealApproved
	case p2p.StatusAppealRejected:
		return EventTransferAppealRejected
	}
	return ""
}

var _ p2p.EventEmitter = (*Emitter)(nil)
