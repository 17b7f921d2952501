package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type CartItem struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// FindItem returns the item for productID, or nil.
func (c *Cart) FindItem(productID int64) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveItems drops every item whose ID is in ids.
func (c *Cart) RemoveItems(ids map[int64]bool) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if !ids[item.ID] {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

// Recalculate sets TotalPrice from the current item quantities and product prices.
// Items whose product is missing from products contribute nothing.
func (c *Cart) Recalculate(products map[int64]*Product) {
	total := decimal.Zero
	for _, item := range c.Items {
		p, ok := products[item.ProductID]
		if !ok {
			continue
		}
		total = total.Add(p.EffectivePrice().Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalPrice = total
}

func (c *Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
