package service

import (
	"testing"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShippingFeeTiers(t *testing.T) {
	p := DefaultPricing()
	tests := []struct {
		qty  int
		want int64
	}{
		{1, 12},
		{5, 12},
		{6, 14},
		{10, 14},
		{11, 16},
	}
	for _, tt := range tests {
		assert.True(t, decimal.NewFromInt(tt.want).Equal(p.ShippingFee(tt.qty)), "qty %d", tt.qty)
	}
}

func TestQuote_DiscountedItems(t *testing.T) {
	product := &domain.Product{
		ID:            1,
		Name:          "Headphones",
		Price:         decimal.NewFromInt(100),
		DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(80)),
	}
	q := DefaultPricing().Quote([]domain.OrderItem{domain.NewOrderItem(product, 3)})

	assert.Equal(t, "240", q.Subtotal.String())
	assert.Equal(t, "24", q.Tax.String())
	assert.Equal(t, "12", q.ShippingFee.String())
	assert.Equal(t, "276", q.Total.String())
}

func TestTaxRoundsToCents(t *testing.T) {
	assert.Equal(t, "2.00", DefaultPricing().Tax(decimal.RequireFromString("19.99")).StringFixed(2))
	assert.Equal(t, "0.12", DefaultPricing().Tax(decimal.RequireFromString("1.15")).StringFixed(2))
}
