package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/shop-service/internal/domain"
)

type sqlUsers struct {
	s *SQLStore
}

func (r *sqlUsers) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.s.conn(ctx).ExecContext(ctx, `INSERT INTO users (id, email, name) VALUES ($1, $2, $3)`,
		u.ID, u.Email, u.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *sqlUsers) CreateAddress(ctx context.Context, a *domain.Address) error {
	query := `INSERT INTO addresses (user_id, line1, city, zip_code, country) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.s.conn(ctx).QueryRowContext(ctx, query, a.UserID, a.Line1, a.City, a.ZipCode, a.Country).
		Scan(&a.ID); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (r *sqlUsers) FindUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.s.conn(ctx).QueryRowContext(ctx, `SELECT id, email, name FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (r *sqlUsers) FindAddress(ctx context.Context, id int64) (*domain.Address, error) {
	var a domain.Address
	err := r.s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, user_id, line1, city, zip_code, country FROM addresses WHERE id = $1`, id).
		Scan(&a.ID, &a.UserID, &a.Line1, &a.City, &a.ZipCode, &a.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return &a, nil
}
