package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresStore keeps accounts and API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (p *PostgresStore) CreateAccount(ctx context.Context, a *Account) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO accounts (id, address, name, email, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Address, a.Name, a.Email, a.Role, a.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrAccountExists
	}
	return err
}

func (p *PostgresStore) GetAccount(ctx context.Context, addr string) (*Account, error) {
	a := &Account{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, address, name, email, role, created_at
		 FROM accounts WHERE address = $1`, addr).
		Scan(&a.ID, &a.Address, &a.Name, &a.Email, &a.Role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountMissing
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (p *PostgresStore) CreateKey(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, hash, account_address, name, created_at, expires_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Hash, key.AccountAddr, key.Name, key.CreatedAt, key.ExpiresAt, key.Revoked)
	return err
}

const keyColumns = `id, hash, account_address, name, created_at, last_used, expires_at, revoked`

// scanKey reads one api_keys row, folding nullable timestamps into the
// struct's zero values.
func scanKey(row interface{ Scan(...any) error }) (*APIKey, error) {
	key := &APIKey{}
	var lastUsed, expiresAt sql.NullTime
	err := row.Scan(&key.ID, &key.Hash, &key.AccountAddr, &key.Name,
		&key.CreatedAt, &lastUsed, &expiresAt, &key.Revoked)
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		key.LastUsed = lastUsed.Time
	}
	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	return key, nil
}

// GetKeyByHash resolves a key hash to live key metadata. Revoked and
// expired keys are filtered in SQL so they behave exactly like misses.
func (p *PostgresStore) GetKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	key, err := scanKey(p.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys
		 WHERE hash = $1
		   AND revoked = FALSE
		   AND (expires_at IS NULL OR expires_at > NOW())`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	return key, err
}

func (p *PostgresStore) GetKeysByAccount(ctx context.Context, addr string) ([]*APIKey, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys
		 WHERE account_address = $1 ORDER BY created_at DESC`, addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []*APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (p *PostgresStore) UpdateKey(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = $1, revoked = $2 WHERE id = $3`,
		key.LastUsed, key.Revoked, key.ID)
	return err
}

func (p *PostgresStore) DeleteKey(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}

var _ Store = (*PostgresStore)(nil)
