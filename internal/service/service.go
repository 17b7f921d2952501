package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/repository"
)

type UserDirectory interface {
	FindUser(ctx context.Context, id string) (*domain.User, error)
}

type AddressBook interface {
	FindAddress(ctx context.Context, id int64) (*domain.Address, error)
}

// Notifier delivers order events. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, event domain.OrderEvent)
}

// PaymentGateway starts a payment for a freshly created order. An empty transaction id means
// the payment stays PENDING until a result arrives through SettlePayment.
type PaymentGateway interface {
	Initiate(ctx context.Context, order *domain.Order) (transactionID string, err error)
}

type PaymentResult struct {
	Succeeded     bool   `json:"succeeded"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

type LockTimeouts struct {
	CartWait   time.Duration
	CartLease  time.Duration
	OrderWait  time.Duration
	OrderLease time.Duration
}

func DefaultLockTimeouts() LockTimeouts {
	return LockTimeouts{
		CartWait:   10 * time.Second,
		CartLease:  30 * time.Second,
		OrderWait:  15 * time.Second,
		OrderLease: 30 * time.Second,
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.OrderEvent) {}

func utcNow() time.Time {
	return time.Now().UTC()
}

// notFound swaps a repository miss for the given service error.
func notFound(err error, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
