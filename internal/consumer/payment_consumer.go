package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/fjod/go_cart/shop-service/internal/service"
	"github.com/segmentio/kafka-go"
)

const (
	PaymentResultsTopic = "payment-results"

	// readRetryDelay spaces out reads while the broker keeps failing.
	readRetryDelay = time.Second
)

// PaymentResultEvent is published by the payment provider once a payment finished.
type PaymentResultEvent struct {
	OrderID       int64  `json:"order_id"`
	Succeeded     bool   `json:"succeeded"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

type PaymentSettler interface {
	SettlePayment(ctx context.Context, orderID int64, result service.PaymentResult) (*domain.Order, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	settler    PaymentSettler
	reader     messageReader
	retryDelay time.Duration
}

func NewConsumer(settler PaymentSettler, topic string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "shop-service",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{settler: settler, reader: reader, retryDelay: readRetryDelay}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		slog.Error("error closing kafka reader", "error", err)
	}
}

// processMessage returns the read error, if any. Parse and settle failures are logged and
// the message is skipped.
func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		slog.Error("error reading message", "error", err)
		return err
	}
	c.handle(ctx, m)
	return nil
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var event PaymentResultEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		slog.Error("error parsing payment result", "offset", m.Offset, "error", err)
		return
	}
	if event.OrderID <= 0 {
		slog.Error("payment result without order id", "offset", m.Offset)
		return
	}

	_, err := c.settler.SettlePayment(ctx, event.OrderID, service.PaymentResult{
		Succeeded:     event.Succeeded,
		TransactionID: event.TransactionID,
		Reason:        event.Reason,
	})
	switch {
	case err == nil:
		slog.Info("payment result applied", "order_id", event.OrderID, "succeeded", event.Succeeded)
	case errors.Is(err, service.ErrPaymentSettled):
		slog.Info("payment already settled, skipping", "order_id", event.OrderID)
	case errors.Is(err, service.ErrNotFound):
		slog.Warn("payment result for unknown order", "order_id", event.OrderID)
	default:
		slog.Error("failed to apply payment result", "order_id", event.OrderID, "error", err)
	}
}
