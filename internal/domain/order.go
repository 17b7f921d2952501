package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            string          `json:"user_id"`
	ShippingAddressID int64           `json:"shipping_address_id"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingFee       decimal.Decimal `json:"shipping_fee"`
	Tax               decimal.Decimal `json:"tax"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Status            OrderStatus     `json:"status"`
	Notes             string          `json:"notes,omitempty"`
	Items             []OrderItem     `json:"items"`
	Payment           *Payment        `json:"payment,omitempty"`
	OrderedAt         time.Time       `json:"ordered_at"`
	PaymentAt         *time.Time      `json:"payment_at,omitempty"`
	ShippedAt         *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderItem is a snapshot of the product taken when the order was placed.
type OrderItem struct {
	ID            int64               `json:"id"`
	OrderID       int64               `json:"order_id"`
	ProductID     int64               `json:"product_id"`
	ProductName   string              `json:"product_name"`
	Price         decimal.Decimal     `json:"price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"`
	Quantity      int                 `json:"quantity"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
}

func NewOrderItem(p *Product, quantity int) OrderItem {
	item := OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Quantity:    quantity,
	}
	if p.DiscountPrice.Valid && p.DiscountPrice.Decimal.LessThan(p.Price) {
		item.DiscountPrice = p.DiscountPrice
	}
	item.Subtotal = item.UnitPrice().Mul(decimal.NewFromInt(int64(quantity)))
	return item
}

func (i OrderItem) UnitPrice() decimal.Decimal {
	return EffectivePrice(i.Price, i.DiscountPrice)
}

// Cancellable reports whether o may still be cancelled by its owner. An order that was ever
// shipped or delivered never is, whatever its current status.
func (o *Order) Cancellable() bool {
	return o.Status.Cancellable() && o.ShippedAt == nil && o.DeliveredAt == nil
}

// Stamp sets the timestamp that belongs to status.
func (o *Order) Stamp(status OrderStatus, at time.Time) {
	switch status {
	case OrderStatusShipped:
		o.ShippedAt = &at
	case OrderStatusDelivered:
		o.DeliveredAt = &at
	case OrderStatusCancelled:
		o.CancelledAt = &at
	case OrderStatusPaymentCompleted:
		o.PaymentAt = &at
	}
	o.Status = status
	o.UpdatedAt = at
}
