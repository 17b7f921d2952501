package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/shop-service/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// ProductInvalidator drops read-side product entries after their stock changed.
type ProductInvalidator interface {
	InvalidateProducts(ctx context.Context, productIDs ...int64) error
}

// ProductCache holds product reads. Entries are dropped whenever the product's stock changes.
type ProductCache interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	ProductInvalidator
}

type Cache interface {
	CartCache
	ProductCache
}

var ErrCacheMiss = errors.New("cache miss")

// Noop never stores anything. Used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Cart, error)  { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, string, *domain.Cart) error    { return nil }
func (Noop) Delete(context.Context, string) error               { return nil }
func (Noop) InvalidateProducts(context.Context, ...int64) error { return nil }

func (Noop) GetProduct(context.Context, int64) (*domain.Product, error) { return nil, ErrCacheMiss }
func (Noop) SetProduct(context.Context, *domain.Product) error          { return nil }
