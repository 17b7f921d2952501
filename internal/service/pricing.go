package service

import (
	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/shopspring/decimal"
)

type Pricing struct {
	ShippingBaseFee      decimal.Decimal
	ShippingIncrementFee decimal.Decimal
	ItemsPerIncrement    int
	TaxRate              decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		ShippingBaseFee:      decimal.NewFromInt(10),
		ShippingIncrementFee: decimal.NewFromInt(2),
		ItemsPerIncrement:    5,
		TaxRate:              decimal.RequireFromString("0.10"),
	}
}

type Quote struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// ShippingFee charges the base fee plus one increment per started block of items.
func (p Pricing) ShippingFee(totalQuantity int) decimal.Decimal {
	per := p.ItemsPerIncrement
	if per <= 0 {
		per = 1
	}
	blocks := (totalQuantity + per - 1) / per
	return p.ShippingBaseFee.Add(p.ShippingIncrementFee.Mul(decimal.NewFromInt(int64(blocks))))
}

func (p Pricing) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.TaxRate).Round(2)
}

func (p Pricing) Quote(items []domain.OrderItem) Quote {
	subtotal := decimal.Zero
	qty := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
		qty += item.Quantity
	}
	q := Quote{
		Subtotal:    subtotal,
		ShippingFee: p.ShippingFee(qty),
		Tax:         p.Tax(subtotal),
	}
	q.Total = q.Subtotal.Add(q.ShippingFee).Add(q.Tax)
	return q
}
