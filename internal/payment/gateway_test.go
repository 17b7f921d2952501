package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockInitiator struct {
	err   error
	calls int
}

func (m *MockInitiator) Initiate(context.Context, *domain.Order) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "TXN-1", nil
}

func TestNoopGateway(t *testing.T) {
	txID, err := NoopGateway{}.Initiate(context.Background(), &domain.Order{ID: 1})
	require.NoError(t, err)
	assert.Empty(t, txID)
}

func TestRefusal(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{94, ""},
		{95, "unknown reason"},
		{96, "insufficient funds"},
		{100, "suspected fraud"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, refusal(tt.n), "roll %d", tt.n)
	}
}

func TestSimulatedGateway(t *testing.T) {
	g := NewSimulatedGateway()
	g.now = func() time.Time { return time.Unix(0, 42) }
	order := &domain.Order{OrderNumber: "ORD-1"}

	g.roll = func() int { return 10 }
	txID, err := g.Initiate(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "TXN-ORD-1-42", txID)

	g.roll = func() int { return 97 }
	_, err = g.Initiate(context.Background(), order)
	require.ErrorIs(t, err, ErrDeclined)
	assert.True(t, strings.Contains(err.Error(), "card expired"))
}

func TestBreakerGateway_TripsOnFailures(t *testing.T) {
	next := &MockInitiator{err: errors.New("connection refused")}
	settings := DefaultBreakerSettings()
	settings.ConsecutiveFailures = 3
	g := NewBreakerGateway("test", next, settings)

	for i := 0; i < 3; i++ {
		_, err := g.Initiate(context.Background(), &domain.Order{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Initiate(context.Background(), &domain.Order{})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestBreakerGateway_DeclinesKeepCircuitClosed(t *testing.T) {
	next := &MockInitiator{err: ErrDeclined}
	settings := DefaultBreakerSettings()
	settings.ConsecutiveFailures = 2
	g := NewBreakerGateway("test", next, settings)

	for i := 0; i < 5; i++ {
		_, err := g.Initiate(context.Background(), &domain.Order{})
		require.ErrorIs(t, err, ErrDeclined)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.Equal(t, 5, next.calls)
}

func TestBreakerGateway_PassesThrough(t *testing.T) {
	g := NewBreakerGateway("test", &MockInitiator{}, DefaultBreakerSettings())
	txID, err := g.Initiate(context.Background(), &domain.Order{})
	require.NoError(t, err)
	assert.Equal(t, "TXN-1", txID)
}
