package service

import (
	"context"
	"sync"
	"testing"

	"github.com/fjod/go_cart/shop-service/internal/cache"
	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/lock"
	"github.com/fjod/go_cart/shop-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// MockCartCache is an in-memory CartCache that records invalidations.
type MockCartCache struct {
	mu          sync.RWMutex
	carts       map[string]*domain.Cart
	products    map[int64]*domain.Product
	deletes     int
	invalidated []int64
}

func NewMockCartCache() *MockCartCache {
	return &MockCartCache{
		carts:    make(map[string]*domain.Cart),
		products: make(map[int64]*domain.Product),
	}
}

func (m *MockCartCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *MockCartCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = cart
	return nil
}

func (m *MockCartCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	m.deletes++
	return nil
}

func (m *MockCartCache) InvalidateProducts(_ context.Context, ids ...int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, ids...)
	for _, id := range ids {
		delete(m.products, id)
	}
	return nil
}

func (m *MockCartCache) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return p, nil
}

func (m *MockCartCache) SetProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *MockCartCache) Deletes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deletes
}

func (m *MockCartCache) Cached(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.carts[userID]
	return ok
}

// MockNotifier records every published event.
type MockNotifier struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (m *MockNotifier) Notify(_ context.Context, event domain.OrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockNotifier) Types() []domain.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.EventType, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
}

// MockGateway returns the configured transaction id or error.
type MockGateway struct {
	TransactionID string
	Err           error

	mu    sync.Mutex
	calls int
}

func (m *MockGateway) Initiate(_ context.Context, _ *domain.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.TransactionID, m.Err
}

func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MissingProductStore wraps a store whose product rows vanished: RestoreStock reports
// repository.ErrNotFound.
type MissingProductStore struct {
	repository.Store
}

func (m MissingProductStore) Products() repository.ProductRepository {
	return missingProducts{m.Store.Products()}
}

type missingProducts struct {
	repository.ProductRepository
}

func (missingProducts) RestoreStock(context.Context, int64, int) error {
	return repository.ErrNotFound
}

type fixture struct {
	store    *repository.MemoryStore
	locks    *lock.MemoryProvider
	cache    *MockCartCache
	notifier *MockNotifier
	gateway  *MockGateway
	carts    *CartService
	checkout *CheckoutService
	orders   *OrderService
	catalog  *ProductService
	address  *domain.Address
	other    *domain.Address
}

const (
	userID      = "user-1"
	otherUserID = "user-2"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    repository.NewMemoryStore(),
		locks:    lock.NewMemoryProvider(),
		cache:    NewMockCartCache(),
		notifier: &MockNotifier{},
		gateway:  &MockGateway{},
	}

	users := f.store.Users()
	require.NoError(t, users.CreateUser(ctx, &domain.User{ID: userID, Email: "one@example.com"}))
	require.NoError(t, users.CreateUser(ctx, &domain.User{ID: otherUserID, Email: "two@example.com"}))
	f.address = &domain.Address{UserID: userID, Line1: "1 Main St", City: "Springfield", ZipCode: "1", Country: "US"}
	f.other = &domain.Address{UserID: otherUserID, Line1: "2 Side St", City: "Shelbyville", ZipCode: "2", Country: "US"}
	require.NoError(t, users.CreateAddress(ctx, f.address))
	require.NoError(t, users.CreateAddress(ctx, f.other))

	timeouts := DefaultLockTimeouts()
	f.carts = NewCartService(f.store, f.locks, f.cache, timeouts)
	f.orders = NewOrderService(f.store, f.locks, f.cache, f.notifier, timeouts)
	f.catalog = NewProductService(f.store, f.cache)
	f.checkout = NewCheckoutService(CheckoutDeps{
		Store:        f.store,
		Locks:        f.locks,
		CartCache:    f.cache,
		ProductCache: f.cache,
		Notifier:     f.notifier,
		Gateway:      f.gateway,
		Payments:     f.orders,
		Pricing:      DefaultPricing(),
		Timeouts:     timeouts,
	})
	return f
}

func (f *fixture) product(t *testing.T, name, price, discount string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: domain.ProductStatusActive,
	}
	if discount != "" {
		p.DiscountPrice = decimal.NewNullDecimal(decimal.RequireFromString(discount))
	}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

// placeOrder adds qty of p to the user's cart and checks it out.
func (f *fixture) placeOrder(t *testing.T, p *domain.Product, qty int) *domain.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, userID, p.ID, qty)
	require.NoError(t, err)
	o, err := f.checkout.CreateOrder(ctx, userID, CreateOrderRequest{AddressID: f.address.ID})
	require.NoError(t, err)
	return o
}
