package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNotAcquired is returned when the wait budget ran out before the key was free.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrInterrupted is returned when the context was cancelled while waiting.
	ErrInterrupted = errors.New("lock wait interrupted")
	// ErrNotHeld is returned by Release when the lease expired or another holder took the key.
	ErrNotHeld = errors.New("lock not held")
)

// Lock is a held lease on a single key.
type Lock struct {
	Key   string
	Token string
}

// Provider grants per-key mutual exclusion with a bounded wait and a bounded lease.
type Provider interface {
	Acquire(ctx context.Context, key string, wait, lease time.Duration) (*Lock, error)
	Release(ctx context.Context, l *Lock) error
}

func CartItemKey(userID string, productID int64) string {
	return fmt.Sprintf("cart:%s:product:%d", userID, productID)
}

func CartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func OrderKey(userID string) string {
	return fmt.Sprintf("order:%s", userID)
}

// WithLock runs fn while holding key. The release error is logged, fn's error is returned.
func WithLock(ctx context.Context, p Provider, key string, wait, lease time.Duration, fn func(ctx context.Context) error) error {
	l, err := p.Acquire(ctx, key, wait, lease)
	if err != nil {
		return err
	}
	defer func() {
		// release must outlive a cancelled request context
		if rerr := p.Release(context.WithoutCancel(ctx), l); rerr != nil {
			slog.Warn("lock release failed", "key", key, "error", rerr)
		}
	}()
	return fn(ctx)
}
