package payments

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore persists payment methods in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed payment method store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const methodColumns = `id, name, network, currency, details, enabled, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, m *Method) error {
	details, _ := json.Marshal(m.Details)
	if m.Details == nil {
		details = []byte("{}")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payment_methods (`+methodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.Name, m.Network, m.Currency, details, m.Enabled, m.CreatedAt, m.UpdatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Method, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+methodColumns+` FROM payment_methods WHERE id = $1`, id)
	m, err := scanMethod(row)
	if err == sql.ErrNoRows {
		return nil, ErrMethodNotFound
	}
	return m, err
}

func (p *PostgresStore) Update(ctx context.Context, m *Method) error {
	details, _ := json.Marshal(m.Details)
	if m.Details == nil {
		details = []byte("{}")
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE payment_methods SET
			name = $1, network = $2, currency = $3, details = $4,
			enabled = $5, updated_at = $6
		WHERE id = $7`,
		m.Name, m.Network, m.Currency, details, m.Enabled, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMethodNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, enabledOnly bool) ([]*Method, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods`
	if enabledOnly {
		query += ` WHERE enabled`
	}
	query += ` ORDER BY name`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Method
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMethodNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMethod(s scanner) (*Method, error) {
	m := &Method{}
	var details []byte
	err := s.Scan(&m.ID, &m.Name, &m.Network, &m.Currency, &details, &m.Enabled, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		_ = json.Unmarshal(details, &m.Details)
	}
	return m, nil
}

var _ Store = (*PostgresStore)(nil)
