package repository

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Seed loads a small demo catalogue with two users for local runs.
func Seed(ctx context.Context, store Store) error {
	return store.WithTransaction(ctx, func(ctx context.Context) error {
		users := []domain.User{
			{ID: "demo-user", Email: "demo@example.com", Name: "Demo User"},
			{ID: "demo-admin", Email: "admin@example.com", Name: "Demo Admin"},
		}
		for i := range users {
			if err := store.Users().CreateUser(ctx, &users[i]); err != nil {
				return fmt.Errorf("seed user %s: %w", users[i].ID, err)
			}
		}

		address := &domain.Address{
			UserID:  "demo-user",
			Line1:   "221B Baker Street",
			City:    "London",
			ZipCode: "NW1 6XE",
			Country: "GB",
		}
		if err := store.Users().CreateAddress(ctx, address); err != nil {
			return fmt.Errorf("seed address: %w", err)
		}

		products := []struct {
			name     string
			price    string
			discount string
			stock    int
		}{
			{"Wireless Mouse", "25.99", "", 120},
			{"Mechanical Keyboard", "89.00", "74.50", 40},
			{"USB-C Hub", "39.90", "", 75},
			{"27in Monitor", "249.00", "219.00", 15},
			{"Laptop Stand", "45.00", "", 0},
		}
		for _, p := range products {
			product := &domain.Product{
				Name:   p.name,
				Price:  decimal.RequireFromString(p.price),
				Stock:  p.stock,
				Status: domain.ProductStatusActive,
			}
			if p.discount != "" {
				product.DiscountPrice = decimal.NewNullDecimal(decimal.RequireFromString(p.discount))
			}
			if err := store.Products().Create(ctx, product); err != nil {
				return fmt.Errorf("seed product %s: %w", p.name, err)
			}
		}
		return nil
	})
}
