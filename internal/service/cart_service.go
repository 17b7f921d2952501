package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/cache"
	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/lock"
	"github.com/fjod/go_cart/shop-service/internal/repository"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	tx       repository.TxManager
	carts    repository.CartRepository
	products repository.ProductRepository
	users    UserDirectory
	locks    lock.Provider
	cache    cache.CartCache
	timeouts LockTimeouts
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(store repository.Store, locks lock.Provider, cartCache cache.CartCache, timeouts LockTimeouts) *CartService {
	return &CartService{
		tx:       store,
		carts:    store.Carts(),
		products: store.Products(),
		users:    store.Users(),
		locks:    locks,
		cache:    cartCache,
		timeouts: timeouts,
	}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("cache get error", "user_id", userID, "error", err)
		}

		if _, err := s.users.FindUser(ctx, userID); err != nil {
			return nil, notFound(err, ErrUserNotFound)
		}
		cart, err = s.carts.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}

		if errSet := s.cache.Set(ctx, userID, cart); errSet != nil {
			slog.Warn("cache set error", "user_id", userID, "error", errSet)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// GetCartItemCount returns the number of distinct products in the cart.
func (s *CartService) GetCartItemCount(ctx context.Context, userID string) (int, error) {
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return 0, notFound(err, ErrUserNotFound)
	}
	return s.carts.CountItems(ctx, userID)
}

func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, userID, lock.CartItemKey(userID, productID), func(ctx context.Context, cart *domain.Cart) error {
		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if !product.IsAvailable() {
			return ErrProductUnavailable
		}
		if product.Stock < quantity {
			return ErrInsufficientStock
		}

		if item := cart.FindItem(productID); item != nil {
			item.Quantity += quantity
			return nil
		}
		cart.Items = append(cart.Items, domain.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
		})
		return nil
	})
}

func (s *CartService) UpdateItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, userID, lock.CartItemKey(userID, productID), func(ctx context.Context, cart *domain.Cart) error {
		item := cart.FindItem(productID)
		if item == nil {
			return ErrItemNotFound
		}
		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return notFound(err, ErrProductNotFound)
		}
		if product.Stock < quantity {
			return ErrInsufficientStock
		}
		item.Quantity = quantity
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error) {
	return s.mutate(ctx, userID, lock.CartItemKey(userID, productID), func(ctx context.Context, cart *domain.Cart) error {
		item := cart.FindItem(productID)
		if item == nil {
			return ErrItemNotFound
		}
		cart.RemoveItems(map[int64]bool{item.ID: true})
		return nil
	})
}

// ClearCart empties the cart. Clearing an empty cart succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, lock.CartKey(userID), func(ctx context.Context, cart *domain.Cart) error {
		cart.Items = []domain.CartItem{}
		return nil
	})
}

// mutate runs change under the given lock and one transaction, then recomputes and stores the total.
func (s *CartService) mutate(ctx context.Context, userID, key string, change func(ctx context.Context, cart *domain.Cart) error) (*domain.Cart, error) {
	var result *domain.Cart

	err := lock.WithLock(ctx, s.locks, key, s.timeouts.CartWait, s.timeouts.CartLease, func(ctx context.Context) error {
		return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := s.users.FindUser(ctx, userID); err != nil {
				return notFound(err, ErrUserNotFound)
			}
			cart, err := s.carts.GetOrCreateForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if err := change(ctx, cart); err != nil {
				return err
			}

			products, err := s.products.GetByIDs(ctx, cart.ProductIDs())
			if err != nil {
				return err
			}
			cart.Recalculate(products)
			if err := s.carts.Save(ctx, cart); err != nil {
				return err
			}
			result = cart
			return nil
		})
	})
	if err != nil {
		return nil, lockError(err)
	}

	invalidateCache(s.cache, userID)
	return result, nil
}

func invalidateCache(c cache.CartCache, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if errInvalidate := c.Delete(ctx, userID); errInvalidate != nil {
		slog.Warn("cache invalidate error", "user_id", userID, "error", errInvalidate)
	}
}
