package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/service"
	"github.com/go-chi/chi/v5"
)

type CheckoutService interface {
	CreateOrder(ctx context.Context, userID string, req service.CreateOrderRequest) (*domain.Order, error)
}

type OrderService interface {
	GetOrder(ctx context.Context, userID string, orderID int64) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, userID string, number string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, error)
	RecentOrders(ctx context.Context, userID string, limit int) ([]*domain.Order, error)
	GetOrderCount(ctx context.Context, userID string) (int, error)
	CancelOrder(ctx context.Context, userID string, orderID int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (*domain.Order, error)
}

type OrdersHandler struct {
	checkout CheckoutService
	orders   OrderService
	timeout  time.Duration
}

func NewOrdersHandler(checkout CheckoutService, orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		checkout: checkout,
		orders:   orders,
		timeout:  timeout,
	}
}

type CreateOrderRequestDTO struct {
	AddressID   int64   `json:"address_id"`
	Notes       string  `json:"notes"`
	CartItemIDs []int64 `json:"cart_item_ids"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// OrderFailedDTO is returned when the order was created but its payment could not be started.
type OrderFailedDTO struct {
	ErrorResponse
	Order *domain.Order `json:"order"`
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be positive")
		return
	}

	order, err := h.checkout.CreateOrder(ctx, getUserIDFromContext(r.Context()), service.CreateOrderRequest{
		AddressID:   req.AddressID,
		Notes:       req.Notes,
		CartItemIDs: req.CartItemIDs,
	})
	if err != nil {
		if order != nil && errors.Is(err, service.ErrPaymentFailed) {
			respondJSON(w, http.StatusPaymentRequired, OrderFailedDTO{
				ErrorResponse: ErrorResponse{Error: err.Error(), Code: "payment_failed"},
				Order:         order,
			})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// GET /api/v1/orders?status=&limit=&offset=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}
	var status *domain.OrderStatus
	if s := q.Get("status"); s != "" {
		st := domain.OrderStatus(strings.ToUpper(s))
		status = &st
	}

	orders, err := h.orders.ListOrders(ctx, getUserIDFromContext(r.Context()), status, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, nonNil(orders))
}

// GET /api/v1/orders/recent?limit=
func (h *OrdersHandler) RecentOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	orders, err := h.orders.RecentOrders(ctx, getUserIDFromContext(r.Context()), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, nonNil(orders))
}

// GET /api/v1/orders/count
func (h *OrdersHandler) CountOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	count, err := h.orders.GetOrderCount(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CountResponseDTO{Count: count})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, getUserIDFromContext(r.Context()), orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/orders/number/{order_number}
func (h *OrdersHandler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	number := chi.URLParam(r, "order_number")
	if number == "" {
		respondError(w, http.StatusBadRequest, "missing_order_number", "order_number is required")
		return
	}

	order, err := h.orders.GetOrderByNumber(ctx, getUserIDFromContext(r.Context()), number)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(ctx, getUserIDFromContext(r.Context()), orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/admin/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.UpdateStatus(ctx, orderID, domain.OrderStatus(strings.ToUpper(req.Status)))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func nonNil(orders []*domain.Order) []*domain.Order {
	if orders == nil {
		return []*domain.Order{}
	}
	return orders
}
