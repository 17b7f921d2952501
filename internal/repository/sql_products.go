package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/shop-service/internal/domain"
)

const productColumns = `id, name, price, discount_price, stock, status, created_at, updated_at`

type sqlProducts struct {
	s *SQLStore
}

func (r *sqlProducts) Create(ctx context.Context, p *domain.Product) error {
	now := utcNow()
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	p.CreatedAt, p.UpdatedAt = now, now

	query := `INSERT INTO products (name, price, discount_price, stock, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`
	err := r.s.conn(ctx).QueryRowContext(ctx, query,
		p.Name,
		p.Price,
		p.DiscountPrice,
		p.Stock,
		p.Status,
		now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *sqlProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.get(ctx, id, "")
}

func (r *sqlProducts) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.get(ctx, id, r.s.forUpdate())
}

func (r *sqlProducts) get(ctx context.Context, id int64, suffix string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1` + suffix

	p, err := scanProduct(r.s.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

func (r *sqlProducts) GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	result := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + placeholders(1, len(ids)) + `)`

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

func (r *sqlProducts) DecrementStock(ctx context.Context, id int64, qty int) error {
	query := `UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3 AND stock >= $1`
	res, err := r.s.conn(ctx).ExecContext(ctx, query, qty, utcNow(), id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

func (r *sqlProducts) RestoreStock(ctx context.Context, id int64, qty int) error {
	query := `UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3`
	res, err := r.s.conn(ctx).ExecContext(ctx, query, qty, utcNow(), id)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.DiscountPrice,
		&p.Stock,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
