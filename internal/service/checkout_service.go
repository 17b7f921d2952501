package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/cache"
	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/lock"
	"github.com/fjod/go_cart/shop-service/internal/repository"
	"github.com/google/uuid"
)

type CreateOrderRequest struct {
	AddressID   int64   `json:"address_id"`
	Notes       string  `json:"notes"`
	CartItemIDs []int64 `json:"cart_item_ids"`
}

// PaymentLifecycle is the part of OrderService that checkout drives once an order is committed.
type PaymentLifecycle interface {
	MarkPaymentProcessing(ctx context.Context, orderID int64, transactionID string) (*domain.Order, error)
	SettlePayment(ctx context.Context, orderID int64, result PaymentResult) (*domain.Order, error)
}

type CheckoutService struct {
	tx           repository.TxManager
	carts        repository.CartRepository
	products     repository.ProductRepository
	orders       repository.OrderRepository
	users        repository.UserRepository
	locks        lock.Provider
	cartCache    cache.CartCache
	productCache cache.ProductInvalidator
	notifier     Notifier
	gateway      PaymentGateway
	payments     PaymentLifecycle
	pricing      Pricing
	timeouts     LockTimeouts
	now          func() time.Time
}

type CheckoutDeps struct {
	Store        repository.Store
	Locks        lock.Provider
	CartCache    cache.CartCache
	ProductCache cache.ProductInvalidator
	Notifier     Notifier
	Gateway      PaymentGateway
	Payments     PaymentLifecycle
	Pricing      Pricing
	Timeouts     LockTimeouts
}

func NewCheckoutService(d CheckoutDeps) *CheckoutService {
	s := &CheckoutService{
		tx:           d.Store,
		carts:        d.Store.Carts(),
		products:     d.Store.Products(),
		orders:       d.Store.Orders(),
		users:        d.Store.Users(),
		locks:        d.Locks,
		cartCache:    d.CartCache,
		productCache: d.ProductCache,
		notifier:     d.Notifier,
		gateway:      d.Gateway,
		payments:     d.Payments,
		pricing:      d.Pricing,
		timeouts:     d.Timeouts,
		now:          utcNow,
	}
	if s.cartCache == nil {
		s.cartCache = cache.Noop{}
	}
	if s.productCache == nil {
		s.productCache = cache.Noop{}
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	return s
}

// CreateOrder turns the selected cart items (all items when none are selected) into an order.
// Stock validation, order creation, stock decrement and cart draining commit together or not at all.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*domain.Order, error) {
	var order *domain.Order

	err := lock.WithLock(ctx, s.locks, lock.OrderKey(userID), s.timeouts.OrderWait, s.timeouts.OrderLease, func(ctx context.Context) error {
		if _, err := s.users.FindUser(ctx, userID); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		address, err := s.users.FindAddress(ctx, req.AddressID)
		if err != nil {
			return notFound(err, ErrAddressNotFound)
		}
		if address.UserID != userID {
			return ErrAddressNotOwned
		}

		return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			cart, err := s.carts.GetOrCreateForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if len(cart.Items) == 0 {
				return ErrEmptyCart
			}

			selected := selectItems(cart, req.CartItemIDs)
			if len(selected) == 0 {
				return ErrNoItemsSelected
			}

			products, err := s.validateStock(ctx, selected)
			if err != nil {
				return err
			}

			o := s.assemble(userID, address.ID, req.Notes, selected, products)
			if err := s.orders.Create(ctx, o); err != nil {
				return fmt.Errorf("create order: %w", err)
			}

			for _, item := range selected {
				if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					if errors.Is(err, repository.ErrInsufficientStock) {
						return ErrInsufficientStock
					}
					return fmt.Errorf("decrement stock: %w", err)
				}
			}

			drained := make(map[int64]bool, len(selected))
			for _, item := range selected {
				drained[item.ID] = true
			}
			cart.RemoveItems(drained)
			remaining, err := s.products.GetByIDs(ctx, cart.ProductIDs())
			if err != nil {
				return err
			}
			cart.Recalculate(remaining)
			if err := s.carts.Save(ctx, cart); err != nil {
				return err
			}

			order = o
			return nil
		})
	})
	if err != nil {
		return nil, lockError(err)
	}

	slog.InfoContext(ctx, "order created", "order_number", order.OrderNumber, "user_id", userID, "total", order.TotalPrice.StringFixed(2))

	invalidateCache(s.cartCache, userID)
	s.invalidateProducts(order)
	s.notifier.Notify(ctx, domain.NewOrderEvent(domain.EventOrderCreated, order, s.now()))

	return s.initiatePayment(ctx, order)
}

// selectItems keeps the cart items whose IDs were requested, or all items when ids is empty.
// Items come back ordered by product id so row locks are always taken in the same order.
func selectItems(cart *domain.Cart, ids []int64) []domain.CartItem {
	var selected []domain.CartItem
	if len(ids) == 0 {
		selected = append(selected, cart.Items...)
	} else {
		wanted := make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
		for _, item := range cart.Items {
			if wanted[item.ID] {
				selected = append(selected, item)
			}
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ProductID < selected[j].ProductID })
	return selected
}

// validateStock reads every product under a row lock and reports all violations at once.
func (s *CheckoutService) validateStock(ctx context.Context, items []domain.CartItem) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(items))
	var violations []StockViolation

	for _, item := range items {
		p, err := s.products.GetForUpdate(ctx, item.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			violations = append(violations, StockViolation{
				ProductID:   item.ProductID,
				ProductName: fmt.Sprintf("product %d", item.ProductID),
				Requested:   item.Quantity,
				Unavailable: true,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		products[p.ID] = p

		switch {
		case !p.IsAvailable():
			violations = append(violations, StockViolation{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   item.Quantity,
				Available:   p.Stock,
				Unavailable: true,
			})
		case p.Stock < item.Quantity:
			violations = append(violations, StockViolation{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   item.Quantity,
				Available:   p.Stock,
			})
		}
	}

	if len(violations) > 0 {
		return nil, &StockError{Violations: violations}
	}
	return products, nil
}

func (s *CheckoutService) assemble(userID string, addressID int64, notes string, items []domain.CartItem, products map[int64]*domain.Product) *domain.Order {
	now := s.now()

	orderItems := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		orderItems = append(orderItems, domain.NewOrderItem(products[item.ProductID], item.Quantity))
	}
	quote := s.pricing.Quote(orderItems)

	return &domain.Order{
		OrderNumber:       newOrderNumber(now),
		UserID:            userID,
		ShippingAddressID: addressID,
		Subtotal:          quote.Subtotal,
		ShippingFee:       quote.ShippingFee,
		Tax:               quote.Tax,
		TotalPrice:        quote.Total,
		Status:            domain.OrderStatusPending,
		Notes:             notes,
		Items:             orderItems,
		Payment: &domain.Payment{
			Amount:    quote.Total,
			Status:    domain.PaymentStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		OrderedAt: now,
		UpdatedAt: now,
	}
}

// newOrderNumber is ORD-<timestamp>-<random>, the suffix keeps orders placed in the same second apart.
func newOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", at.Format("20060102150405"), suffix)
}

func (s *CheckoutService) invalidateProducts(order *domain.Order) {
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.productCache.InvalidateProducts(ctx, ids...); err != nil {
		slog.Warn("product cache invalidate error", "order_number", order.OrderNumber, "error", err)
	}
}

// initiatePayment hands the committed order to the gateway. A gateway failure compensates
// the order right away: the payment fails, the order is cancelled and stock comes back.
func (s *CheckoutService) initiatePayment(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if s.gateway == nil || s.payments == nil {
		return order, nil
	}

	txID, err := s.gateway.Initiate(ctx, order)
	if err != nil {
		slog.ErrorContext(ctx, "payment initiation failed", "order_number", order.OrderNumber, "error", err)
		compensated, serr := s.payments.SettlePayment(context.WithoutCancel(ctx), order.ID, PaymentResult{
			Succeeded: false,
			Reason:    err.Error(),
		})
		if serr != nil {
			slog.Error("payment compensation failed", "order_number", order.OrderNumber, "error", serr)
			return order, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
		return compensated, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if txID == "" {
		return order, nil
	}

	updated, err := s.payments.MarkPaymentProcessing(ctx, order.ID, txID)
	if err != nil {
		slog.Warn("mark payment processing failed", "order_number", order.OrderNumber, "error", err)
		return order, nil
	}
	return updated, nil
}
