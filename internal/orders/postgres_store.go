package orders

import (
	"context"
	"database/sql"
)

// PostgresStore persists orders in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, order_number, buyer_address, nft_id, quantity, total_price,
		       payment_method, transaction_id, status, notes, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, o *Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::NUMERIC(20,8), $7, $8, $9, $10, $11, $12)`,
		o.ID, o.OrderNumber, o.BuyerAddress, o.NFTID, o.Quantity, o.TotalPrice,
		o.PaymentMethod, nullString(o.TransactionID), string(o.Status), nullString(o.Notes),
		o.CreatedAt, o.UpdatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (p *PostgresStore) Update(ctx context.Context, o *Order) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET
			transaction_id = $1, status = $2, notes = $3, updated_at = $4
		WHERE id = $5`,
		nullString(o.TransactionID), string(o.Status), nullString(o.Notes), o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (p *PostgresStore) ListByBuyer(ctx context.Context, addr string, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE buyer_address = $1
		ORDER BY created_at DESC
		LIMIT $2`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*Order, error) {
	o := &Order{}
	var (
		transactionID sql.NullString
		notes         sql.NullString
		status        string
	)
	err := s.Scan(
		&o.ID, &o.OrderNumber, &o.BuyerAddress, &o.NFTID, &o.Quantity, &o.TotalPrice,
		&o.PaymentMethod, &transactionID, &status, &notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.TransactionID = transactionID.String
	o.Notes = notes.String
	o.Status = Status(status)
	return o, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
