package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProvider_AcquireRelease(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	l, err := p.Acquire(ctx, "cart:u1", time.Second, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "cart:u1", l.Key)
	assert.NotEmpty(t, l.Token)

	require.NoError(t, p.Release(ctx, l))
	assert.ErrorIs(t, p.Release(ctx, l), ErrNotHeld)
}

func TestMemoryProvider_WaitTimesOut(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	_, err := p.Acquire(ctx, "order:u1", time.Second, 10*time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(ctx, "order:u1", 50*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMemoryProvider_DifferentKeysDoNotBlock(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	_, err := p.Acquire(ctx, CartItemKey("u1", 1), time.Second, 10*time.Second)
	require.NoError(t, err)
	_, err = p.Acquire(ctx, CartItemKey("u1", 2), 0, 10*time.Second)
	assert.NoError(t, err)
}

func TestMemoryProvider_WakesOnRelease(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	l, err := p.Acquire(ctx, "k", time.Second, 10*time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = p.Release(ctx, l)
	}()

	l2, err := p.Acquire(ctx, "k", 2*time.Second, time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, l.Token, l2.Token)
}

func TestMemoryProvider_ExpiredLeaseIsReclaimed(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	stale, err := p.Acquire(ctx, "k", time.Second, 30*time.Millisecond)
	require.NoError(t, err)

	fresh, err := p.Acquire(ctx, "k", time.Second, time.Second)
	require.NoError(t, err)

	// the first holder lost the key and must not release the new holder's lease
	assert.ErrorIs(t, p.Release(ctx, stale), ErrNotHeld)
	assert.NoError(t, p.Release(ctx, fresh))
}

func TestMemoryProvider_Interrupted(t *testing.T) {
	p := NewMemoryProvider()

	_, err := p.Acquire(context.Background(), "k", time.Second, 10*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx, "k", 5*time.Second, time.Second)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestWithLock_SerializesSameKey(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(ctx, p, "k", 5*time.Second, 5*time.Second, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cart:u1:product:42", CartItemKey("u1", 42))
	assert.Equal(t, "cart:u1", CartKey("u1"))
	assert.Equal(t, "order:u1", OrderKey("u1"))
}
