package tickets

import (
	"context"
	"database/sql"
)

// PostgresStore persists tickets in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ticket store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ticketColumns = `id, account_address, order_id, subject, status, created_at, updated_at`

func (p *PostgresStore) CreateTicket(ctx context.Context, tk *Ticket) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tk.ID, tk.AccountAddress, nullString(tk.OrderID), tk.Subject,
		string(tk.Status), tk.CreatedAt, tk.UpdatedAt)
	return err
}

func (p *PostgresStore) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	tk, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	return tk, err
}

func (p *PostgresStore) UpdateTicket(ctx context.Context, tk *Ticket) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3`,
		string(tk.Status), tk.UpdatedAt, tk.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (p *PostgresStore) ListByAccount(ctx context.Context, addr string, limit int) ([]*Ticket, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE account_address = $1
		ORDER BY created_at DESC
		LIMIT $2`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanTickets(rows)
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Ticket, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanTickets(rows)
}

func (p *PostgresStore) AddMessage(ctx context.Context, m *Message) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, author_address, body, admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.TicketID, nullString(m.AuthorAddress), m.Body, m.Admin, m.CreatedAt)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, ticketID string) ([]*Message, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, ticket_id, author_address, body, admin, created_at
		FROM ticket_messages
		WHERE ticket_id = $1
		ORDER BY created_at`, ticketID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		var author sql.NullString
		if err := rows.Scan(&m.ID, &m.TicketID, &author, &m.Body, &m.Admin, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.AuthorAddress = author.String
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(s scanner) (*Ticket, error) {
	tk := &Ticket{}
	var (
		orderID sql.NullString
		status  string
	)
	err := s.Scan(&tk.ID, &tk.AccountAddress, &orderID, &tk.Subject, &status, &tk.CreatedAt, &tk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tk.OrderID = orderID.String
	tk.Status = Status(status)
	return tk, nil
}

func scanTickets(rows *sql.Rows) ([]*Ticket, error) {
	var out []*Ticket
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tk)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
