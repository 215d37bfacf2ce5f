package catalog

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lib/pq"
)

// PostgresStore persists catalog data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed catalog store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateCategory(ctx context.Context, c *Category) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Slug, c.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrSlugTaken
	}
	return err
}

func (p *PostgresStore) GetCategory(ctx context.Context, id string) (*Category, error) {
	c := &Category{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *PostgresStore) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Category
	for rows.Next() {
		c := &Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

const nftColumns = `id, category_id, name, description, image_url, price, network,
		       owner_address, status, created_at, updated_at`

func (p *PostgresStore) CreateNFT(ctx context.Context, n *NFT) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO nfts (`+nftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::NUMERIC(20,8), $7, $8, $9, $10, $11)`,
		n.ID, n.CategoryID, n.Name, nullString(n.Description), nullString(n.ImageURL),
		n.Price, n.Network, n.OwnerAddress, string(n.Status), n.CreatedAt, n.UpdatedAt)
	return err
}

func (p *PostgresStore) GetNFT(ctx context.Context, id string) (*NFT, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+nftColumns+` FROM nfts WHERE id = $1`, id)
	n, err := scanNFT(row)
	if err == sql.ErrNoRows {
		return nil, ErrNFTNotFound
	}
	return n, err
}

func (p *PostgresStore) UpdateNFT(ctx context.Context, n *NFT) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE nfts SET
			category_id = $1, name = $2, description = $3, image_url = $4,
			price = $5::NUMERIC(20,8), network = $6, owner_address = $7,
			status = $8, updated_at = $9
		WHERE id = $10`,
		n.CategoryID, n.Name, nullString(n.Description), nullString(n.ImageURL),
		n.Price, n.Network, n.OwnerAddress, string(n.Status), n.UpdatedAt, n.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNFTNotFound
	}
	return nil
}

func (p *PostgresStore) ListNFTs(ctx context.Context, f NFTFilter) ([]*NFT, error) {
	query := `SELECT ` + nftColumns + ` FROM nfts WHERE 1=1`
	args := []interface{}{}
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		query += ` AND category_id = $` + itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	args = append(args, f.Limit)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*NFT
	for rows.Next() {
		n, err := scanNFT(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SetNFTStatus(ctx context.Context, id string, from, to NFTStatus) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE nfts SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
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
			`SELECT EXISTS(SELECT 1 FROM nfts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNFTNotFound
		}
		return ErrNFTNotAvailable
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNFT(s scanner) (*NFT, error) {
	n := &NFT{}
	var (
		description sql.NullString
		imageURL    sql.NullString
		status      string
	)
	err := s.Scan(
		&n.ID, &n.CategoryID, &n.Name, &description, &imageURL, &n.Price, &n.Network,
		&n.OwnerAddress, &status, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Description = description.String
	n.ImageURL = imageURL.String
	n.Status = NFTStatus(status)
	return n, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

var _ Store = (*PostgresStore)(nil)
