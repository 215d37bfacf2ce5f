package p2p

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists transfer data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transfer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Transfer) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO p2p_transfers (
			id, order_id, transfer_code, sender_address, partner_address,
			partner_payment_method_id, amount, network, status,
			payment_completed_at, release_timer_started_at, auto_release_at,
			appeal_reason, appealed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7::NUMERIC(20,8), $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16
		)`,
		t.ID, t.OrderID, t.TransferCode, t.SenderAddress, t.PartnerAddress,
		nullString(t.PartnerPaymentMethodID), t.Amount, t.Network, string(t.Status),
		nullTime(t.PaymentCompletedAt), nullTime(t.ReleaseTimerStartedAt), nullTime(t.AutoReleaseAt),
		nullString(t.AppealReason), nullTime(t.AppealedAt), t.CreatedAt, t.UpdatedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicateTransfer
	}
	return err
}

const transferColumns = `id, order_id, transfer_code, sender_address, partner_address,
		       partner_payment_method_id, amount, network, status,
		       payment_completed_at, release_timer_started_at, auto_release_at,
		       appeal_reason, appealed_at, created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transfer, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM p2p_transfers WHERE id = $1`, id)

	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	return t, err
}

func (p *PostgresStore) GetByOrder(ctx context.Context, orderID string) (*Transfer, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+transferColumns+`
		FROM p2p_transfers
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, orderID)

	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	return t, err
}

// Update writes the transfer only if the stored status still matches
// expected. Zero affected rows means either the row vanished or another
// transition won; a follow-up existence check picks the right error.
func (p *PostgresStore) Update(ctx context.Context, t *Transfer, expected Status) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE p2p_transfers SET
			status = $1, payment_completed_at = $2, release_timer_started_at = $3,
			auto_release_at = $4, appeal_reason = $5, appealed_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9`,
		string(t.Status), nullTime(t.PaymentCompletedAt), nullTime(t.ReleaseTimerStartedAt),
		nullTime(t.AutoReleaseAt), nullString(t.AppealReason), nullTime(t.AppealedAt), t.UpdatedAt,
		t.ID, string(expected),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM p2p_transfers WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTransferNotFound
		}
		return ErrStaleTransfer
	}
	return nil
}

func (p *PostgresStore) ListByAddress(ctx context.Context, addr string, limit int) ([]*Transfer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM p2p_transfers
		WHERE sender_address = $1 OR partner_address = $1
		ORDER BY created_at DESC
		LIMIT $2`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransfers(rows)
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Transfer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM p2p_transfers
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransfers(rows)
}

func (p *PostgresStore) ListExpiredPending(ctx context.Context, createdBefore time.Time, limit int) ([]*Transfer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM p2p_transfers
		WHERE status = 'pending'
		  AND created_at < $1
		LIMIT $2`, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransfers(rows)
}

func (p *PostgresStore) ListAutoReleasable(ctx context.Context, before time.Time, limit int) ([]*Transfer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM p2p_transfers
		WHERE status = 'payment_completed'
		  AND auto_release_at <= $1
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransfers(rows)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransfer(s scanner) (*Transfer, error) {
	t := &Transfer{}
	var (
		paymentMethodID    sql.NullString
		status             string
		paymentCompletedAt sql.NullTime
		timerStartedAt     sql.NullTime
		autoReleaseAt      sql.NullTime
		appealReason       sql.NullString
		appealedAt         sql.NullTime
	)

	err := s.Scan(
		&t.ID, &t.OrderID, &t.TransferCode, &t.SenderAddress, &t.PartnerAddress,
		&paymentMethodID, &t.Amount, &t.Network, &status,
		&paymentCompletedAt, &timerStartedAt, &autoReleaseAt,
		&appealReason, &appealedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.PartnerPaymentMethodID = paymentMethodID.String
	t.AppealReason = appealReason.String
	if paymentCompletedAt.Valid {
		t.PaymentCompletedAt = &paymentCompletedAt.Time
	}
	if timerStartedAt.Valid {
		t.ReleaseTimerStartedAt = &timerStartedAt.Time
	}
	if autoReleaseAt.Valid {
		t.AutoReleaseAt = &autoReleaseAt.Time
	}
	if appealedAt.Valid {
		t.AppealedAt = &appealedAt.Time
	}

	return t, nil
}

func scanTransfers(rows *sql.Rows) ([]*Transfer, error) {
	var result []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
