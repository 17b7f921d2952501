package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/fjod/go_cart/shop-service/internal/cache"
	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/repository"
	"golang.org/x/sync/singleflight"
)

// ProductService serves product reads through the product cache. Checkout and cancellation
// invalidate the cached entry whenever stock moves.
type ProductService struct {
	products repository.ProductRepository
	cache    cache.ProductCache
	sfg      singleflight.Group
}

func NewProductService(store repository.Store, productCache cache.ProductCache) *ProductService {
	if productCache == nil {
		productCache = cache.Noop{}
	}
	return &ProductService{
		products: store.Products(),
		cache:    productCache,
	}
}

// GetProduct returns an active or inactive product. Deleted products are reported as not found.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		p, err := s.cache.GetProduct(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("product cache get error", "product_id", id, "error", err)
		}

		p, err = s.products.GetByID(ctx, id)
		if err != nil {
			return nil, notFound(err, ErrProductNotFound)
		}
		if errSet := s.cache.SetProduct(ctx, p); errSet != nil {
			slog.Warn("product cache set error", "product_id", id, "error", errSet)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	p := v.(*domain.Product)
	if p.Status == domain.ProductStatusDeleted {
		return nil, ErrProductNotFound
	}
	return p, nil
}
