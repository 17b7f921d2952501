package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBufferSize = 256
	publishTimeout    = 5 * time.Second
)

type Topics struct {
	OrderCreated   string
	OrderUpdated   string
	OrderCancelled string
}

func DefaultTopics() Topics {
	return Topics{
		OrderCreated:   string(domain.EventOrderCreated),
		OrderUpdated:   string(domain.EventOrderUpdated),
		OrderCancelled: string(domain.EventOrderCancelled),
	}
}

func (t Topics) forEvent(e domain.EventType) string {
	switch e {
	case domain.EventOrderCreated:
		return t.OrderCreated
	case domain.EventOrderCancelled:
		return t.OrderCancelled
	default:
		return t.OrderUpdated
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes order events without blocking the caller. Events are queued and
// written by Run; when the queue is full the event is dropped and logged.
type KafkaNotifier struct {
	writer  messageWriter
	topics  Topics
	events  chan domain.OrderEvent
	timeout time.Duration
}

func NewKafkaNotifier(topics Topics, brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaNotifier(w, topics, defaultBufferSize)
}

func newKafkaNotifier(w messageWriter, topics Topics, buffer int) *KafkaNotifier {
	return &KafkaNotifier{
		writer:  w,
		topics:  topics,
		events:  make(chan domain.OrderEvent, buffer),
		timeout: publishTimeout,
	}
}

func (n *KafkaNotifier) Notify(_ context.Context, event domain.OrderEvent) {
	select {
	case n.events <- event:
	default:
		slog.Warn("notification queue full, dropping event", "type", event.Type, "order_number", event.OrderNumber)
	}
}

// Run writes queued events until ctx is done, then flushes what is still queued.
func (n *KafkaNotifier) Run(ctx context.Context) {
	for {
		select {
		case event := <-n.events:
			n.publish(ctx, event)
		case <-ctx.Done():
			n.drain()
			return
		}
	}
}

func (n *KafkaNotifier) drain() {
	for {
		select {
		case event := <-n.events:
			n.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (n *KafkaNotifier) publish(ctx context.Context, event domain.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.write(ctx, event); err != nil {
		slog.Error("failed to publish order event", "type", event.Type, "order_number", event.OrderNumber, "error", err)
	}
}

func (n *KafkaNotifier) write(ctx context.Context, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: n.topics.forEvent(event.Type),
		Key:   []byte(event.OrderNumber), // order number keeps one order's events ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	return n.writer.WriteMessages(ctx, msg)
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier only logs events. Used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event domain.OrderEvent) {
	slog.Info("order event", "type", event.Type, "order_number", event.OrderNumber, "status", event.Status)
}
