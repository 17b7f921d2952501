package domain

type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "PENDING"
	OrderStatusProcessing       OrderStatus = "PROCESSING"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
	OrderStatusReturned         OrderStatus = "RETURNED"
	OrderStatusRefunded         OrderStatus = "REFUNDED"
	OrderStatusPaymentPending   OrderStatus = "PAYMENT_PENDING"
	OrderStatusPaymentFailed    OrderStatus = "PAYMENT_FAILED"
	OrderStatusPaymentCompleted OrderStatus = "PAYMENT_COMPLETED"
)

var orderStatuses = map[OrderStatus]bool{
	OrderStatusPending:          true,
	OrderStatusProcessing:       true,
	OrderStatusShipped:          true,
	OrderStatusDelivered:        true,
	OrderStatusCancelled:        true,
	OrderStatusReturned:         true,
	OrderStatusRefunded:         true,
	OrderStatusPaymentPending:   true,
	OrderStatusPaymentFailed:    true,
	OrderStatusPaymentCompleted: true,
}

func (s OrderStatus) Valid() bool {
	return orderStatuses[s]
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusReturned, OrderStatusRefunded:
		return true
	}
	return false
}

// Cancellable reports whether a customer may still cancel an order in status s.
func (s OrderStatus) Cancellable() bool {
	if s.IsTerminal() {
		return false
	}
	return s != OrderStatusShipped && s != OrderStatusDelivered
}

// AwaitsPayment reports whether fulfillment has not started yet, so a payment result may
// still decide the order status.
func (s OrderStatus) AwaitsPayment() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaymentPending, OrderStatusPaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo allows every move except out of a terminal status and self transitions.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	return s != next
}
