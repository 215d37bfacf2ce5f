// Package realtime streams marketplace activity over WebSocket.
//
// Clients connect to /ws and optionally send a Subscription document to
// narrow what they receive; with no filters they get everything. Events
// cover transfer status changes, order settlement, new listings, and
// ticket activity.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mintora/mintora/internal/metrics"
	"github.com/mintora/mintora/internal/p2p"
)

// EventType tags the payload shape of an Event.
type EventType string

const (
	EventTransferUpdate EventType = "transfer_update"
	EventOrderUpdate    EventType = "order_update"
	EventNFTListed      EventType = "nft_listed"
	EventTicketUpdate   EventType = "ticket_update"
)

// Event is one message pushed to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Subscription narrows what a client receives. Zero filters means all
// events; AllEvents overrides the other fields.
type Subscription struct {
	AllEvents   bool        `json:"allEvents"`
	EventTypes  []EventType `json:"eventTypes"`
	Addresses   []string    `json:"addresses"`
	TransferIDs []string    `json:"transferIds"`
}

// wants reports whether an event passes the subscription's filters.
// Address filters only apply when the payload carries address fields.
func (s Subscription) wants(event *Event) bool {
	if s.AllEvents {
		return true
	}
	if len(s.EventTypes) > 0 && !slices.Contains(s.EventTypes, event.Type) {
		return false
	}

	data, _ := event.Data.(map[string]any)
	if data == nil {
		return true
	}

	if len(s.Addresses) > 0 {
		sender, _ := data["senderAddress"].(string)
		partner, _ := data["partnerAddress"].(string)
		owner, _ := data["ownerAddress"].(string)
		involved := func(addr string) bool {
			return strings.EqualFold(addr, sender) || strings.EqualFold(addr, partner) || strings.EqualFold(addr, owner)
		}
		if !slices.ContainsFunc(s.Addresses, involved) {
			return false
		}
	}

	if len(s.TransferIDs) > 0 {
		id, _ := data["transferId"].(string)
		if !slices.Contains(s.TransferIDs, id) {
			return false
		}
	}
	return true
}

// Connection tuning.
const (
	MaxClients   = 10000
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	maxFrameSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin.
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Client is one WebSocket connection and its current subscription.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	sub  Subscription
}

func (c *Client) subscription() Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub
}

// Hub fans events out to every connected client. All membership changes
// flow through Run's loop; the mutex only guards the clients map for
// readers outside it.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan *Event
	join      chan *Client
	leave     chan *Client
	mu        sync.RWMutex
	logger    *slog.Logger
	done      chan struct{} // closed when Run exits, so upgrades can refuse
	limit     int

	totalEvents  atomic.Int64
	totalClients atomic.Int64
	peakClients  atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan *Event, 256),
		join:      make(chan *Client),
		leave:     make(chan *Client),
		logger:    logger,
		done:      make(chan struct{}),
		limit:     MaxClients,
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("realtime hub stopped")
			return
		case client := <-h.join:
			h.add(client)
		case client := <-h.leave:
			h.drop(client)
		case event := <-h.broadcast:
			h.fanout(event)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.totalClients.Add(1)
	if n := int64(len(h.clients)); n > h.peakClients.Load() {
		h.peakClients.Store(n)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveWebSocketClients.Set(float64(n))
	h.logger.Info("client connected", "total", n)
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveWebSocketClients.Set(float64(n))
	h.logger.Info("client disconnected", "total", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for client := range h.clients {
		// writePump sends the close frame when its channel closes.
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	metrics.ActiveWebSocketClients.Set(0)
}

func (h *Hub) fanout(event *Event) {
	h.totalEvents.Add(1)
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("event marshal failed", "type", event.Type, "error", err)
		return
	}

	var stalled []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.subscription().wants(event) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	// A full send buffer means the client stopped reading. Cut it loose
	// rather than block the fanout.
	for _, client := range stalled {
		h.drop(client)
	}
}

// Broadcast queues an event for delivery. Drops when the hub is saturated.
func (h *Hub) Broadcast(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", event.Type)
	}
}

// EmitTransferUpdate streams a transfer's current state to subscribers.
// It satisfies the transfer service's EventEmitter interface.
func (h *Hub) EmitTransferUpdate(t *p2p.Transfer) {
	h.Broadcast(&Event{
		Type:      EventTransferUpdate,
		Timestamp: time.Now(),
		Data: map[string]any{
			"transferId":     t.ID,
			"orderId":        t.OrderID,
			"status":         string(t.Status),
			"senderAddress":  t.SenderAddress,
			"partnerAddress": t.PartnerAddress,
			"amount":         t.Amount,
			"updatedAt":      t.UpdatedAt,
		},
	})
}

// EmitNFTListed streams a new listing announcement.
func (h *Hub) EmitNFTListed(nftID, ownerAddr, price string) {
	h.Broadcast(&Event{
		Type:      EventNFTListed,
		Timestamp: time.Now(),
		Data: map[string]any{
			"nftId":        nftID,
			"ownerAddress": ownerAddr,
			"price":        price,
		},
	})
}

// Stats reports connection and delivery counters.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]any{
		"connectedClients": len(h.clients),
		"totalEvents":      h.totalEvents.Load(),
		"totalClients":     h.totalClients.Load(),
		"peakClients":      h.peakClients.Load(),
	}
}

// HandleWebSocket upgrades the request and starts the client's pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= h.limit {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		sub:  Subscription{AllEvents: true},
	}
	h.join <- client

	go client.writePump()
	go client.readPump()
}

// readPump consumes inbound frames. The only meaningful payload is a
// Subscription update; everything else keeps the read deadline fresh.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		var sub Subscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. It exits when the channel closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

var _ p2p.EventEmitter = (*Hub)(nil)
