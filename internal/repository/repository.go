package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("record already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// TxManager runs fn inside one transaction. Repositories called with the ctx passed to fn
// join that transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	// GetForUpdate reads the product and holds an exclusive row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	// DecrementStock fails with ErrInsufficientStock instead of going below zero.
	DecrementStock(ctx context.Context, id int64, qty int) error
	RestoreStock(ctx context.Context, id int64, qty int) error
}

type CartRepository interface {
	// GetOrCreate returns the user's cart, creating an empty one on first access.
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	// GetOrCreateForUpdate is GetOrCreate plus an exclusive lock on the cart row.
	GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Cart, error)
	// Save persists the cart total and reconciles its items: new items (ID 0) are inserted,
	// missing ones deleted, the rest updated.
	Save(ctx context.Context, cart *domain.Cart) error
	CountItems(ctx context.Context, userID string) (int, error)
}

type OrderFilter struct {
	Status *domain.OrderStatus
	Limit  int
	Offset int
}

type OrderRepository interface {
	// Create inserts the order, its items and its payment.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, f OrderFilter) ([]*domain.Order, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	UpdateStatus(ctx context.Context, o *domain.Order) error
	UpdatePayment(ctx context.Context, p *domain.Payment) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	CreateAddress(ctx context.Context, a *domain.Address) error
	FindUser(ctx context.Context, id string) (*domain.User, error)
	FindAddress(ctx context.Context, id int64) (*domain.Address, error)
}

// Store bundles every repository behind one backend.
type Store interface {
	TxManager
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Users() UserRepository
	Close() error
}

func utcNow() time.Time {
	return time.Now().UTC()
}
