package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/shop-service/internal/domain"
)

const orderColumns = `id, order_number, user_id, shipping_address_id, subtotal, shipping_fee, tax, total_price,
	status, notes, ordered_at, payment_at, shipped_at, delivered_at, cancelled_at, updated_at`

type sqlOrders struct {
	s *SQLStore
}

func (r *sqlOrders) Create(ctx context.Context, o *domain.Order) error {
	return r.s.WithTransaction(ctx, func(ctx context.Context) error {
		q := r.s.conn(ctx)

		query := `INSERT INTO orders (order_number, user_id, shipping_address_id, subtotal, shipping_fee, tax,
		          total_price, status, notes, ordered_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
		err := q.QueryRowContext(ctx, query,
			o.OrderNumber,
			o.UserID,
			o.ShippingAddressID,
			o.Subtotal,
			o.ShippingFee,
			o.Tax,
			o.TotalPrice,
			o.Status,
			o.Notes,
			o.OrderedAt,
			o.UpdatedAt,
		).Scan(&o.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range o.Items {
			item := &o.Items[i]
			item.OrderID = o.ID
			query := `INSERT INTO order_items (order_id, product_id, product_name, price, discount_price, quantity, subtotal)
			          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
			if err := q.QueryRowContext(ctx, query,
				item.OrderID,
				item.ProductID,
				item.ProductName,
				item.Price,
				item.DiscountPrice,
				item.Quantity,
				item.Subtotal,
			).Scan(&item.ID); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if o.Payment != nil {
			p := o.Payment
			p.OrderID = o.ID
			query := `INSERT INTO payments (order_id, amount, status, transaction_id, payment_date, created_at, updated_at)
			          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
			if err := q.QueryRowContext(ctx, query,
				p.OrderID,
				p.Amount,
				p.Status,
				nullString(p.TransactionID),
				p.PaymentDate,
				p.CreatedAt,
				p.UpdatedAt,
			).Scan(&p.ID); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		}
		return nil
	})
}

func (r *sqlOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *sqlOrders) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+r.s.forUpdate(), id)
}

func (r *sqlOrders) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (r *sqlOrders) getOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	o, err := scanOrder(r.s.conn(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := r.loadChildren(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *sqlOrders) ListByUser(ctx context.Context, userID string, f OrderFilter) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []any{userID}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY ordered_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, o := range orders {
		if err := r.loadChildren(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *sqlOrders) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *sqlOrders) UpdateStatus(ctx context.Context, o *domain.Order) error {
	query := `UPDATE orders SET status = $1, payment_at = $2, shipped_at = $3, delivered_at = $4,
	          cancelled_at = $5, updated_at = $6 WHERE id = $7`
	res, err := r.s.conn(ctx).ExecContext(ctx, query,
		o.Status,
		o.PaymentAt,
		o.ShippedAt,
		o.DeliveredAt,
		o.CancelledAt,
		o.UpdatedAt,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlOrders) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	query := `UPDATE payments SET status = $1, transaction_id = $2, payment_date = $3, updated_at = $4 WHERE id = $5`
	res, err := r.s.conn(ctx).ExecContext(ctx, query,
		p.Status,
		nullString(p.TransactionID),
		p.PaymentDate,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlOrders) loadChildren(ctx context.Context, o *domain.Order) error {
	q := r.s.conn(ctx)

	rows, err := q.QueryContext(ctx, `SELECT id, order_id, product_id, product_name, price, discount_price, quantity, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	o.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Price,
			&item.DiscountPrice,
			&item.Quantity,
			&item.Subtotal,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	var (
		p           domain.Payment
		txID        sql.NullString
		paymentDate sql.NullTime
	)
	err = q.QueryRowContext(ctx, `SELECT id, order_id, amount, status, transaction_id, payment_date, created_at, updated_at
		FROM payments WHERE order_id = $1`, o.ID).Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Status,
		&txID,
		&paymentDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query payment: %w", err)
	}
	p.TransactionID = txID.String
	p.PaymentDate = timePtr(paymentDate)
	o.Payment = &p
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                                              domain.Order
		paymentAt, shippedAt, deliveredAt, cancelledAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.ShippingAddressID,
		&o.Subtotal,
		&o.ShippingFee,
		&o.Tax,
		&o.TotalPrice,
		&o.Status,
		&o.Notes,
		&o.OrderedAt,
		&paymentAt,
		&shippedAt,
		&deliveredAt,
		&cancelledAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentAt = timePtr(paymentAt)
	o.ShippedAt = timePtr(shippedAt)
	o.DeliveredAt = timePtr(deliveredAt)
	o.CancelledAt = timePtr(cancelledAt)
	return &o, nil
}
