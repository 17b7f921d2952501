package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount decimal.NullDecimal
		want     string
	}{
		{"no discount", "100", decimal.NullDecimal{}, "100"},
		{"lower discount", "100", decimal.NewNullDecimal(decimal.RequireFromString("80")), "80"},
		{"equal discount ignored", "100", decimal.NewNullDecimal(decimal.RequireFromString("100")), "100"},
		{"higher discount ignored", "100", decimal.NewNullDecimal(decimal.RequireFromString("120")), "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Price: decimal.RequireFromString(tt.price), DiscountPrice: tt.discount}
			assert.True(t, decimal.RequireFromString(tt.want).Equal(p.EffectivePrice()))
		})
	}
}

func TestCartRecalculate(t *testing.T) {
	products := map[int64]*Product{
		1: {ID: 1, Price: decimal.NewFromInt(100), DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(80))},
		2: {ID: 2, Price: decimal.RequireFromString("9.99")},
	}
	cart := Cart{Items: []CartItem{
		{ID: 10, ProductID: 1, Quantity: 3},
		{ID: 11, ProductID: 2, Quantity: 2},
	}}

	cart.Recalculate(products)
	assert.Equal(t, "259.98", cart.TotalPrice.StringFixed(2))

	cart.RemoveItems(map[int64]bool{10: true})
	require.Len(t, cart.Items, 1)
	cart.Recalculate(products)
	assert.Equal(t, "19.98", cart.TotalPrice.StringFixed(2))

	cart.RemoveItems(map[int64]bool{11: true})
	cart.Recalculate(products)
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestOrderStatusTransitions(t *testing.T) {
	for _, terminal := range []OrderStatus{OrderStatusCancelled, OrderStatusReturned, OrderStatusRefunded} {
		assert.True(t, terminal.IsTerminal())
		assert.False(t, terminal.CanTransitionTo(OrderStatusPending), terminal)
		assert.False(t, terminal.Cancellable())
	}

	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusShipped))
	assert.True(t, OrderStatusShipped.CanTransitionTo(OrderStatusReturned))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusPending.CanTransitionTo("LOST"))

	assert.True(t, OrderStatusPending.Cancellable())
	assert.True(t, OrderStatusPaymentFailed.Cancellable())
	assert.False(t, OrderStatusShipped.Cancellable())
	assert.False(t, OrderStatusDelivered.Cancellable())
}

func TestOrderStatusAwaitsPayment(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusPaymentPending, OrderStatusPaymentFailed} {
		assert.True(t, s.AwaitsPayment(), s)
	}
	for _, s := range []OrderStatus{OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusPaymentCompleted, OrderStatusCancelled} {
		assert.False(t, s.AwaitsPayment(), s)
	}
}

func TestOrderCancellable_FulfilledOrdersNeverCancellable(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	o := Order{Status: OrderStatusPaymentCompleted}
	assert.True(t, o.Cancellable())

	o.ShippedAt = &now
	assert.False(t, o.Cancellable())

	o = Order{Status: OrderStatusPaymentFailed, DeliveredAt: &now}
	assert.False(t, o.Cancellable())
}

func TestOrderStamp(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := Order{Status: OrderStatusPending}

	o.Stamp(OrderStatusShipped, now)
	require.NotNil(t, o.ShippedAt)
	assert.Equal(t, now, *o.ShippedAt)
	assert.Equal(t, OrderStatusShipped, o.Status)

	o.Stamp(OrderStatusDelivered, now)
	require.NotNil(t, o.DeliveredAt)
	assert.Nil(t, o.CancelledAt)
}

func TestNewOrderItemSnapshot(t *testing.T) {
	p := &Product{ID: 7, Name: "Lamp", Price: decimal.NewFromInt(50), DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(60))}
	item := NewOrderItem(p, 2)

	assert.False(t, item.DiscountPrice.Valid)
	assert.Equal(t, "100", item.Subtotal.String())
	assert.Equal(t, "Lamp", item.ProductName)
}
