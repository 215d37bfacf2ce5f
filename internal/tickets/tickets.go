// Package tickets implements the support flow: buyers and sellers open a
// ticket (optionally about an order), staff reply, either side closes it.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mintora/mintora/internal/idgen"
	"github.com/mintora/mintora/internal/metrics"
	"github.com/mintora/mintora/internal/traces"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClosed   = errors.New("ticket is closed")
	ErrNotTicketOwner = errors.New("not the ticket owner")
)

// Status tracks where a ticket is in its life.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAnswered Status = "answered" // staff replied, waiting on the opener
	StatusClosed   Status = "closed"
)

// Ticket is one support conversation.
type Ticket struct {
	ID             string    `json:"id"`
	AccountAddress string    `json:"accountAddress"`
	OrderID        string    `json:"orderId,omitempty"`
	Subject        string    `json:"subject"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Message is one entry in a ticket's thread.
type Message struct {
	ID            string    `json:"id"`
	TicketID      string    `json:"ticketId"`
	AuthorAddress string    `json:"authorAddress,omitempty"`
	Body          string    `json:"body"`
	Admin         bool      `json:"admin"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists tickets and their messages.
type Store interface {
	CreateTicket(ctx context.Context, tk *Ticket) error
	GetTicket(ctx context.Context, id string) (*Ticket, error)
	UpdateTicket(ctx context.Context, tk *Ticket) error
	ListByAccount(ctx context.Context, addr string, limit int) ([]*Ticket, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Ticket, error)

	AddMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, ticketID string) ([]*Message, error)
}

// Service manages support tickets.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a tickets service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "tickets")}
}

// Open creates a ticket with its first message.
func (s *Service) Open(ctx context.Context, addr, orderID, subject, body string) (*Ticket, error) {
	ctx, span := traces.StartSpan(ctx, "tickets.Open", traces.AccountAddr(addr))
	defer span.End()

	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" || body == "" {
		return nil, fmt.Errorf("subject and body are required")
	}
	now := time.Now().UTC()
	tk := &Ticket{
		ID:             idgen.New("tkt"),
		AccountAddress: strings.ToLower(addr),
		OrderID:        orderID,
		Subject:        subject,
		Status:         StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTicket(ctx, tk); err != nil {
		return nil, err
	}
	span.SetAttributes(traces.TicketID(tk.ID))
	if err := s.store.AddMessage(ctx, &Message{
		ID:            idgen.New("msg"),
		TicketID:      tk.ID,
		AuthorAddress: tk.AccountAddress,
		Body:          body,
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}
	metrics.TicketsTotal.WithLabelValues("opened").Inc()
	s.logger.Info("ticket opened", "ticket_id", tk.ID, "account", tk.AccountAddress)
	return tk, nil
}

// Get returns a ticket with its thread, restricted to the owner unless
// asAdmin is set.
func (s *Service) Get(ctx context.Context, id, caller string, asAdmin bool) (*Ticket, []*Message, error) {
	tk, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !asAdmin && !strings.EqualFold(tk.AccountAddress, caller) {
		return nil, nil, ErrNotTicketOwner
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return tk, msgs, nil
}

// Reply appends a message from the opener and reopens an answered ticket.
func (s *Service) Reply(ctx context.Context, id, caller, body string) (*Message, error) {
	return s.reply(ctx, id, caller, body, false)
}

// AdminReply appends a staff message and marks the ticket answered.
func (s *Service) AdminReply(ctx context.Context, id, body string) (*Message, error) {
	return s.reply(ctx, id, "", body, true)
}

func (s *Service) reply(ctx context.Context, id, caller, body string, admin bool) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("body is required")
	}
	tk, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if tk.Status == StatusClosed {
		return nil, ErrTicketClosed
	}
	if !admin && !strings.EqualFold(tk.AccountAddress, caller) {
		return nil, ErrNotTicketOwner
	}

	m := &Message{
		ID:            idgen.New("msg"),
		TicketID:      id,
		AuthorAddress: strings.ToLower(caller),
		Body:          body,
		Admin:         admin,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AddMessage(ctx, m); err != nil {
		return nil, err
	}

	if admin {
		tk.Status = StatusAnswered
	} else {
		tk.Status = StatusOpen
	}
	tk.UpdatedAt = m.CreatedAt
	if err := s.store.UpdateTicket(ctx, tk); err != nil {
		return nil, err
	}
	return m, nil
}

// Close ends the conversation. The owner or an admin may close.
func (s *Service) Close(ctx context.Context, id, caller string, asAdmin bool) (*Ticket, error) {
	tk, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asAdmin && !strings.EqualFold(tk.AccountAddress, caller) {
		return nil, ErrNotTicketOwner
	}
	if tk.Status == StatusClosed {
		return tk, nil
	}
	tk.Status = StatusClosed
	tk.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTicket(ctx, tk); err != nil {
		return nil, err
	}
	metrics.TicketsTotal.WithLabelValues("closed").Inc()
	s.logger.Info("ticket closed", "ticket_id", tk.ID)
	return tk, nil
}

// ListByAccount returns an account's tickets, newest first.
func (s *Service) ListByAccount(ctx context.Context, addr string, limit int) ([]*Ticket, error) {
	return s.store.ListByAccount(ctx, strings.ToLower(addr), limit)
}

// ListByStatus returns tickets in one status (admin queue view).
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Ticket, error) {
	return s.store.ListByStatus(ctx, status, limit)
}
