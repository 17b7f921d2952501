package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/cache"
	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/lock"
	"github.com/fjod/go_cart/shop-service/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type OrderService struct {
	tx           repository.TxManager
	orders       repository.OrderRepository
	products     repository.ProductRepository
	locks        lock.Provider
	productCache cache.ProductInvalidator
	notifier     Notifier
	timeouts     LockTimeouts
	now          func() time.Time
}

func NewOrderService(store repository.Store, locks lock.Provider, productCache cache.ProductInvalidator, notifier Notifier, timeouts LockTimeouts) *OrderService {
	if productCache == nil {
		productCache = cache.Noop{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &OrderService{
		tx:           store,
		orders:       store.Orders(),
		products:     store.Products(),
		locks:        locks,
		productCache: productCache,
		notifier:     notifier,
		timeouts:     timeouts,
		now:          utcNow,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	if o.UserID != userID {
		return nil, ErrOrderNotOwned
	}
	return o, nil
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, userID string, number string) (*domain.Order, error) {
	o, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	if o.UserID != userID {
		return nil, ErrOrderNotOwned
	}
	return o, nil
}

// ListOrders pages through the user's orders, newest first, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, error) {
	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByUser(ctx, userID, repository.OrderFilter{Status: status, Limit: limit, Offset: offset})
}

func (s *OrderService) RecentOrders(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	return s.ListOrders(ctx, userID, nil, limit, 0)
}

func (s *OrderService) GetOrderCount(ctx context.Context, userID string) (int, error) {
	return s.orders.CountByUser(ctx, userID)
}

// UpdateStatus moves an order to status. Terminal orders and no-op transitions are rejected.
// Moving to CANCELLED runs the same compensation as CancelOrder.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.withOrderLock(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if !o.Status.CanTransitionTo(status) {
			return ErrInvalidTransition
		}
		if status == domain.OrderStatusCancelled {
			return s.cancelInTx(ctx, o, domain.PaymentStatusCancelled)
		}
		o.Stamp(status, s.now())
		return s.orders.UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	if status == domain.OrderStatusCancelled {
		s.afterCancel(ctx, o)
	} else {
		s.notifier.Notify(ctx, domain.NewOrderEvent(domain.EventOrderUpdated, o, s.now()))
	}
	return o, nil
}

// CancelOrder cancels the user's own order before it ships, restores every item's stock
// and cancels a payment that is still open.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID int64) (*domain.Order, error) {
	var cancelled *domain.Order

	err := lock.WithLock(ctx, s.locks, lock.OrderKey(userID), s.timeouts.OrderWait, s.timeouts.OrderLease, func(ctx context.Context) error {
		return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			o, err := s.orders.GetByIDForUpdate(ctx, orderID)
			if err != nil {
				return notFound(err, ErrOrderNotFound)
			}
			if o.UserID != userID {
				return ErrOrderNotOwned
			}
			if !o.Cancellable() {
				return ErrOrderNotCancellable
			}
			if err := s.cancelInTx(ctx, o, domain.PaymentStatusCancelled); err != nil {
				return err
			}
			cancelled = o
			return nil
		})
	})
	if err != nil {
		return nil, lockError(err)
	}

	slog.InfoContext(ctx, "order cancelled", "order_number", cancelled.OrderNumber, "user_id", userID)
	s.afterCancel(ctx, cancelled)
	return cancelled, nil
}

// MarkPaymentProcessing records the gateway transaction of a payment that is still pending.
func (s *OrderService) MarkPaymentProcessing(ctx context.Context, orderID int64, transactionID string) (*domain.Order, error) {
	return s.withOrderLock(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		p := o.Payment
		if p == nil || p.Status != domain.PaymentStatusPending {
			return ErrPaymentSettled
		}
		p.Status = domain.PaymentStatusProcessing
		p.TransactionID = transactionID
		p.UpdatedAt = s.now()
		return s.orders.UpdatePayment(ctx, p)
	})
}

// SettlePayment applies a gateway result. Success completes the payment and moves an order that
// still awaits payment to PAYMENT_COMPLETED. Failure compensates: the payment fails and the order
// is cancelled with its stock restored. Orders already shipped or delivered keep their status;
// only the payment row and the payment timestamp change.
func (s *OrderService) SettlePayment(ctx context.Context, orderID int64, result PaymentResult) (*domain.Order, error) {
	cancelled := false

	o, err := s.withOrderLock(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		p := o.Payment
		if p == nil || !p.Open() {
			return ErrPaymentSettled
		}
		now := s.now()
		if result.TransactionID != "" {
			p.TransactionID = result.TransactionID
		}

		if result.Succeeded {
			p.Status = domain.PaymentStatusCompleted
			p.PaymentDate = &now
			p.UpdatedAt = now
			if err := s.orders.UpdatePayment(ctx, p); err != nil {
				return err
			}
			if o.Status.IsTerminal() {
				return nil
			}
			if o.Status.AwaitsPayment() {
				o.Stamp(domain.OrderStatusPaymentCompleted, now)
			} else {
				// fulfillment already moved on; record the payment without touching the status
				o.PaymentAt = &now
				o.UpdatedAt = now
			}
			return s.orders.UpdateStatus(ctx, o)
		}

		if o.Cancellable() {
			cancelled = true
			return s.cancelInTx(ctx, o, domain.PaymentStatusFailed)
		}
		p.Status = domain.PaymentStatusFailed
		p.UpdatedAt = now
		if err := s.orders.UpdatePayment(ctx, p); err != nil {
			return err
		}
		if !o.Status.AwaitsPayment() {
			return nil
		}
		o.Stamp(domain.OrderStatusPaymentFailed, now)
		return s.orders.UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "payment settled", "order_number", o.OrderNumber, "succeeded", result.Succeeded, "reason", result.Reason)
	if cancelled {
		s.afterCancel(ctx, o)
	} else {
		s.notifier.Notify(ctx, domain.NewOrderEvent(domain.EventOrderUpdated, o, s.now()))
	}
	return o, nil
}

// withOrderLock resolves the order owner, takes the owner's order lock and runs fn on a
// row-locked copy of the order inside one transaction.
func (s *OrderService) withOrderLock(ctx context.Context, orderID int64, fn func(ctx context.Context, o *domain.Order) error) (*domain.Order, error) {
	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}

	var result *domain.Order
	err = lock.WithLock(ctx, s.locks, lock.OrderKey(current.UserID), s.timeouts.OrderWait, s.timeouts.OrderLease, func(ctx context.Context) error {
		return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			o, err := s.orders.GetByIDForUpdate(ctx, orderID)
			if err != nil {
				return notFound(err, ErrOrderNotFound)
			}
			if err := fn(ctx, o); err != nil {
				return err
			}
			result = o
			return nil
		})
	})
	if err != nil {
		return nil, lockError(err)
	}
	return result, nil
}

// cancelInTx restores the stock of every item, cancels the order and closes an open payment
// with paymentStatus. It must run inside a transaction holding the order row.
func (s *OrderService) cancelInTx(ctx context.Context, o *domain.Order, paymentStatus domain.PaymentStatus) error {
	items := append([]domain.OrderItem{}, o.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	for _, item := range items {
		if err := s.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return notFound(err, ErrProductNotFound)
		}
	}

	now := s.now()
	o.Stamp(domain.OrderStatusCancelled, now)
	if err := s.orders.UpdateStatus(ctx, o); err != nil {
		return err
	}

	if p := o.Payment; p != nil && p.Open() {
		p.Status = paymentStatus
		p.UpdatedAt = now
		if err := s.orders.UpdatePayment(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) afterCancel(ctx context.Context, o *domain.Order) {
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	cctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.productCache.InvalidateProducts(cctx, ids...); err != nil {
		slog.Warn("product cache invalidate error", "order_number", o.OrderNumber, "error", err)
	}
	s.notifier.Notify(ctx, domain.NewOrderEvent(domain.EventOrderCancelled, o, s.now()))
}
