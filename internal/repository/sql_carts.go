package repository

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/shopspring/decimal"
)

type sqlCarts struct {
	s *SQLStore
}

func (r *sqlCarts) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.getOrCreate(ctx, userID, "")
}

func (r *sqlCarts) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.getOrCreate(ctx, userID, r.s.forUpdate())
}

func (r *sqlCarts) getOrCreate(ctx context.Context, userID string, suffix string) (*domain.Cart, error) {
	q := r.s.conn(ctx)

	insert := `INSERT INTO carts (user_id, total_price, created_at, updated_at)
	           VALUES ($1, $2, $3, $3) ON CONFLICT (user_id) DO NOTHING`
	if _, err := q.ExecContext(ctx, insert, userID, decimal.Zero, utcNow()); err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}

	cart := &domain.Cart{}
	query := `SELECT id, user_id, total_price, created_at, updated_at FROM carts WHERE user_id = $1` + suffix
	err := q.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.TotalPrice,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart by user id: %w", err)
	}

	items, err := r.items(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

func (r *sqlCarts) items(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity, added_at FROM cart_items WHERE cart_id = $1 ORDER BY id`
	rows, err := r.s.conn(ctx).QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *sqlCarts) Save(ctx context.Context, cart *domain.Cart) error {
	return r.s.WithTransaction(ctx, func(ctx context.Context) error {
		q := r.s.conn(ctx)
		now := utcNow()

		if _, err := q.ExecContext(ctx, `UPDATE carts SET total_price = $1, updated_at = $2 WHERE id = $3`,
			cart.TotalPrice, now, cart.ID); err != nil {
			return fmt.Errorf("update cart: %w", err)
		}
		cart.UpdatedAt = now

		existing, err := r.items(ctx, cart.ID)
		if err != nil {
			return err
		}
		keep := make(map[int64]bool, len(cart.Items))
		for _, item := range cart.Items {
			if item.ID != 0 {
				keep[item.ID] = true
			}
		}
		for _, item := range existing {
			if keep[item.ID] {
				continue
			}
			if _, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, item.ID); err != nil {
				return fmt.Errorf("delete cart item: %w", err)
			}
		}

		for i := range cart.Items {
			item := &cart.Items[i]
			item.CartID = cart.ID
			if item.ID != 0 {
				if _, err := q.ExecContext(ctx, `UPDATE cart_items SET quantity = $1 WHERE id = $2`,
					item.Quantity, item.ID); err != nil {
					return fmt.Errorf("update cart item: %w", err)
				}
				continue
			}
			if item.AddedAt.IsZero() {
				item.AddedAt = now
			}
			insert := `INSERT INTO cart_items (cart_id, product_id, quantity, added_at)
			           VALUES ($1, $2, $3, $4) RETURNING id`
			if err := q.QueryRowContext(ctx, insert, cart.ID, item.ProductID, item.Quantity, item.AddedAt).
				Scan(&item.ID); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicate
				}
				return fmt.Errorf("insert cart item: %w", err)
			}
		}
		return nil
	})
}

func (r *sqlCarts) CountItems(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM cart_items ci JOIN carts c ON c.id = ci.cart_id WHERE c.user_id = $1`
	var n int
	if err := r.s.conn(ctx).QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return n, nil
}
