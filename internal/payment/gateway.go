package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/sony/gobreaker/v2"
)

var ErrDeclined = errors.New("payment declined")

// NoopGateway leaves every payment PENDING; the outcome arrives later on the payment results topic.
type NoopGateway struct{}

func (NoopGateway) Initiate(context.Context, *domain.Order) (string, error) {
	return "", nil
}

var refusals = []string{
	"insufficient funds",
	"card expired",
	"card blocked",
	"limit exceeded",
	"suspected fraud",
}

// SimulatedGateway approves roughly 95% of payments.
type SimulatedGateway struct {
	roll func() int
	now  func() time.Time
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		roll: func() int { return rand.Intn(101) },
		now:  time.Now,
	}
}

func (g *SimulatedGateway) Initiate(_ context.Context, order *domain.Order) (string, error) {
	if reason := refusal(g.roll()); reason != "" {
		return "", fmt.Errorf("%w: %s", ErrDeclined, reason)
	}
	return fmt.Sprintf("TXN-%s-%d", order.OrderNumber, g.now().UnixNano()), nil
}

func refusal(n int) string {
	if n < 95 {
		return ""
	}
	idx := n - 95
	if idx == 0 || idx > len(refusals) {
		return "unknown reason"
	}
	return refusals[idx-1]
}

type Initiator interface {
	Initiate(ctx context.Context, order *domain.Order) (string, error)
}

type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerGateway stops calling the wrapped gateway after repeated failures.
// Declines are business outcomes and do not count against the breaker.
type BreakerGateway struct {
	next Initiator
	cb   *gobreaker.CircuitBreaker[string]
}

func NewBreakerGateway(name string, next Initiator, s BreakerSettings) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDeclined)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("payment gateway breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (g *BreakerGateway) Initiate(ctx context.Context, order *domain.Order) (string, error) {
	return g.cb.Execute(func() (string, error) {
		return g.next.Initiate(ctx, order)
	})
}

func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}
