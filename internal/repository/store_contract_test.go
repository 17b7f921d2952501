package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behaviour every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("ProductStock", func(t *testing.T) { testProductStock(t, newStore(t)) })
	t.Run("CartLifecycle", func(t *testing.T) { testCartLifecycle(t, newStore(t)) })
	t.Run("OrderCreateAndQuery", func(t *testing.T) { testOrderCreateAndQuery(t, newStore(t)) })
	t.Run("OrderUpdates", func(t *testing.T) { testOrderUpdates(t, newStore(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testTransactionRollback(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func seedProduct(t *testing.T, s Store, name string, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: domain.ProductStatusActive,
	}
	require.NoError(t, s.Products().Create(context.Background(), p))
	return p
}

func testProductStock(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProduct(t, s, "Keyboard", "49.90", 5)
	require.NotZero(t, p.ID)

	require.NoError(t, s.Products().DecrementStock(ctx, p.ID, 5))
	err := s.Products().DecrementStock(ctx, p.ID, 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got, err := s.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, "49.9", got.Price.String())
	assert.False(t, got.DiscountPrice.Valid)

	require.NoError(t, s.Products().RestoreStock(ctx, p.ID, 3))
	got, err = s.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	_, err = s.Products().GetByID(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Products().DecrementStock(ctx, 999999, 1), ErrNotFound)

	byIDs, err := s.Products().GetByIDs(ctx, []int64{p.ID, 999999})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)
	assert.Contains(t, byIDs, p.ID)
}

func testCartLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	p1 := seedProduct(t, s, "Mouse", "10.00", 10)
	p2 := seedProduct(t, s, "Pad", "5.00", 10)

	cart, err := s.Carts().GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.NotZero(t, cart.ID)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalPrice.IsZero())

	again, err := s.Carts().GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	cart.Items = append(cart.Items,
		domain.CartItem{ProductID: p1.ID, Quantity: 2},
		domain.CartItem{ProductID: p2.ID, Quantity: 1},
	)
	cart.TotalPrice = decimal.RequireFromString("25.00")
	require.NoError(t, s.Carts().Save(ctx, cart))
	for _, item := range cart.Items {
		assert.NotZero(t, item.ID)
	}

	n, err := s.Carts().CountItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := s.Carts().GetOrCreateForUpdate(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.True(t, decimal.RequireFromString("25").Equal(loaded.TotalPrice))

	loaded.Items[0].Quantity = 5
	loaded.Items = loaded.Items[:1]
	loaded.TotalPrice = decimal.RequireFromString("50")
	require.NoError(t, s.Carts().Save(ctx, loaded))

	final, err := s.Carts().GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, final.Items, 1)
	assert.Equal(t, p1.ID, final.Items[0].ProductID)
	assert.Equal(t, 5, final.Items[0].Quantity)

	n, err = s.Carts().CountItems(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func newTestOrder(userID string, number string, p *domain.Product, orderedAt time.Time) *domain.Order {
	item := domain.NewOrderItem(p, 2)
	return &domain.Order{
		OrderNumber:       number,
		UserID:            userID,
		ShippingAddressID: 1,
		Subtotal:          item.Subtotal,
		ShippingFee:       decimal.NewFromInt(12),
		Tax:               item.Subtotal.Mul(decimal.RequireFromString("0.1")).Round(2),
		TotalPrice:        item.Subtotal.Add(decimal.NewFromInt(12)),
		Status:            domain.OrderStatusPending,
		Notes:             "leave at door",
		Items:             []domain.OrderItem{item},
		Payment: &domain.Payment{
			Amount:    item.Subtotal,
			Status:    domain.PaymentStatusPending,
			CreatedAt: orderedAt,
			UpdatedAt: orderedAt,
		},
		OrderedAt: orderedAt,
		UpdatedAt: orderedAt,
	}
}

func testOrderCreateAndQuery(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProduct(t, s, "Lamp", "100.00", 10)
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		o := newTestOrder("user-1", fmt.Sprintf("ORD-%d", i), p, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Orders().Create(ctx, o))
		assert.NotZero(t, o.ID)
		assert.NotZero(t, o.Payment.ID)
	}
	require.NoError(t, s.Orders().Create(ctx, newTestOrder("user-2", "ORD-x", p, base)))

	dup := newTestOrder("user-1", "ORD-0", p, base)
	assert.ErrorIs(t, s.Orders().Create(ctx, dup), ErrDuplicate)

	got, err := s.Orders().GetByNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "leave at door", got.Notes)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Lamp", got.Items[0].ProductName)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(200).Equal(got.Items[0].Subtotal))
	require.NotNil(t, got.Payment)
	assert.Equal(t, domain.PaymentStatusPending, got.Payment.Status)
	assert.Nil(t, got.ShippedAt)

	list, err := s.Orders().ListByUser(ctx, "user-1", OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ORD-2", list[0].OrderNumber)
	assert.Equal(t, "ORD-0", list[2].OrderNumber)

	page, err := s.Orders().ListByUser(ctx, "user-1", OrderFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "ORD-1", page[0].OrderNumber)

	count, err := s.Orders().CountByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = s.Orders().GetByID(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testOrderUpdates(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProduct(t, s, "Lamp", "100.00", 10)
	o := newTestOrder("user-1", "ORD-upd", p, time.Now().UTC())
	require.NoError(t, s.Orders().Create(ctx, o))

	now := time.Now().UTC()
	o.Stamp(domain.OrderStatusShipped, now)
	require.NoError(t, s.Orders().UpdateStatus(ctx, o))

	o.Payment.Status = domain.PaymentStatusCompleted
	o.Payment.TransactionID = "tx-1"
	o.Payment.PaymentDate = &now
	o.Payment.UpdatedAt = now
	require.NoError(t, s.Orders().UpdatePayment(ctx, o.Payment))

	got, err := s.Orders().GetByIDForUpdate(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
	require.NotNil(t, got.ShippedAt)
	assert.WithinDuration(t, now, *got.ShippedAt, time.Second)
	assert.Equal(t, "tx-1", got.Payment.TransactionID)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Payment.Status)

	shipped := domain.OrderStatusShipped
	filtered, err := s.Orders().ListByUser(ctx, "user-1", OrderFilter{Status: &shipped})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	missing := &domain.Order{ID: 999999, Status: domain.OrderStatusCancelled, UpdatedAt: now}
	assert.ErrorIs(t, s.Orders().UpdateStatus(ctx, missing), ErrNotFound)
}

func testTransactionRollback(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProduct(t, s, "Chair", "30.00", 5)
	boom := errors.New("boom")

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.Products().DecrementStock(ctx, p.ID, 3); err != nil {
			return err
		}
		cart, err := s.Carts().GetOrCreateForUpdate(ctx, "user-rb")
		if err != nil {
			return err
		}
		cart.Items = append(cart.Items, domain.CartItem{ProductID: p.ID, Quantity: 1})
		if err := s.Carts().Save(ctx, cart); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	n, err := s.Carts().CountItems(ctx, "user-rb")
	require.NoError(t, err)
	assert.Zero(t, n)

	err = s.WithTransaction(ctx, func(ctx context.Context) error {
		// nested call joins the outer transaction
		return s.WithTransaction(ctx, func(ctx context.Context) error {
			return s.Products().DecrementStock(ctx, p.ID, 2)
		})
	})
	require.NoError(t, err)
	got, err = s.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.Users().CreateUser(ctx, &domain.User{ID: "u1", Email: "u1@example.com", Name: "U One"}))
	assert.ErrorIs(t, s.Users().CreateUser(ctx, &domain.User{ID: "u1", Email: "other@example.com"}), ErrDuplicate)

	addr := &domain.Address{UserID: "u1", Line1: "1 Main St", City: "Springfield", ZipCode: "12345", Country: "US"}
	require.NoError(t, s.Users().CreateAddress(ctx, addr))
	assert.NotZero(t, addr.ID)

	u, err := s.Users().FindUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", u.Email)

	a, err := s.Users().FindAddress(ctx, addr.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UserID)

	_, err = s.Users().FindUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Users().FindAddress(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}
