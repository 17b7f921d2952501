package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "lock:"
	retryInterval = 50 * time.Millisecond
)

// deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisProvider implements Provider with SET NX PX leases shared by every instance of the service.
type RedisProvider struct {
	client redis.UniversalClient
	retry  time.Duration
}

func NewRedisProvider(client redis.UniversalClient) *RedisProvider {
	return &RedisProvider{client: client, retry: retryInterval}
}

func (p *RedisProvider) Acquire(ctx context.Context, key string, wait, lease time.Duration) (*Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := p.client.SetNX(ctx, keyPrefix+key, token, lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrInterrupted
			}
			return nil, fmt.Errorf("redis set nx failed: %w", err)
		}
		if ok {
			return &Lock{Key: key, Token: token}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNotAcquired
		}
		sleep := p.retry
		if remaining < sleep {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrInterrupted
		}
	}
}

func (p *RedisProvider) Release(ctx context.Context, l *Lock) error {
	n, err := releaseScript.Run(ctx, p.client, []string{keyPrefix + l.Key}, l.Token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release failed: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
