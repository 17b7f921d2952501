package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func testCart(userID string) *domain.Cart {
	return &domain.Cart{
		ID:     7,
		UserID: userID,
		Items: []domain.CartItem{
			{ID: 1, CartID: 7, ProductID: 1, Quantity: 2},
			{ID: 2, CartID: 7, ProductID: 2, Quantity: 3},
		},
		TotalPrice: decimal.RequireFromString("42.50"),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"
	cart := testCart(userID)

	cartJSON, _ := json.Marshal(cart)
	mr.Set(cartKey(userID), string(cartJSON))

	result, err := cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Len(t, result.Items, 2)
	assert.True(t, cart.TotalPrice.Equal(result.TotalPrice))
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_CorruptedEntry(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(cartKey("user123"), "{not json")

	_, err := cache.Get(context.Background(), "user123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_AppliesTTLWithJitter(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), "user123", testCart("user123")))

	assert.True(t, mr.Exists(cartKey("user123")))
	ttl := mr.TTL(cartKey("user123"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)
}

func TestSet_Expires(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "user123", testCart("user123")))

	mr.FastForward(21 * time.Minute)

	_, err := cache.Get(ctx, "user123")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDelete(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "user123", testCart("user123")))
	require.NoError(t, cache.Delete(ctx, "user123"))
	assert.False(t, mr.Exists(cartKey("user123")))

	// deleting a missing key is not an error
	assert.NoError(t, cache.Delete(ctx, "user123"))
}

func TestInvalidateProducts(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(productKey(1), "a")
	mr.Set(productKey(2), "b")
	mr.Set(productKey(3), "c")

	require.NoError(t, cache.InvalidateProducts(context.Background(), 1, 2))
	assert.False(t, mr.Exists(productKey(1)))
	assert.False(t, mr.Exists(productKey(2)))
	assert.True(t, mr.Exists(productKey(3)))

	assert.NoError(t, cache.InvalidateProducts(context.Background()))
}

func TestRedisDown(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	_, err := cache.Get(context.Background(), "user123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestProduct_RoundTripAndInvalidate(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	_, err := cache.GetProduct(ctx, 5)
	assert.ErrorIs(t, err, ErrCacheMiss)

	p := &domain.Product{
		ID:            5,
		Name:          "Lamp",
		Price:         decimal.RequireFromString("30.00"),
		DiscountPrice: decimal.NewNullDecimal(decimal.RequireFromString("25.00")),
		Stock:         4,
		Status:        domain.ProductStatusActive,
	}
	require.NoError(t, cache.SetProduct(ctx, p))
	assert.Equal(t, 5*time.Minute, mr.TTL(productKey(5)))

	got, err := cache.GetProduct(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)
	assert.Equal(t, 4, got.Stock)
	assert.True(t, got.EffectivePrice().Equal(decimal.RequireFromString("25.00")))

	require.NoError(t, cache.InvalidateProducts(ctx, 5))
	_, err = cache.GetProduct(ctx, 5)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
