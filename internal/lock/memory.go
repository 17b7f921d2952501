package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token    string
	expires  time.Time
	released chan struct{}
}

// MemoryProvider is a single-process Provider. Waiters are woken on release or lease expiry.
type MemoryProvider struct {
	mu   sync.Mutex
	held map[string]*memoryEntry
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{held: make(map[string]*memoryEntry)}
}

func (p *MemoryProvider) Acquire(ctx context.Context, key string, wait, lease time.Duration) (*Lock, error) {
	deadline := time.Now().Add(wait)

	for {
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}

		p.mu.Lock()
		now := time.Now()
		entry, ok := p.held[key]
		if !ok || !now.Before(entry.expires) {
			if ok {
				close(entry.released)
			}
			token := uuid.NewString()
			p.held[key] = &memoryEntry{
				token:    token,
				expires:  now.Add(lease),
				released: make(chan struct{}),
			}
			p.mu.Unlock()
			return &Lock{Key: key, Token: token}, nil
		}
		released := entry.released
		expires := entry.expires
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNotAcquired
		}
		if untilExpiry := time.Until(expires); untilExpiry < remaining {
			remaining = untilExpiry
		}

		timer := time.NewTimer(remaining)
		select {
		case <-released:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrInterrupted
		}
		timer.Stop()
	}
}

func (p *MemoryProvider) Release(_ context.Context, l *Lock) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.held[l.Key]
	if !ok || entry.token != l.Token {
		return ErrNotHeld
	}
	delete(p.held, l.Key)
	close(entry.released)

	if !time.Now().Before(entry.expires) {
		return ErrNotHeld
	}
	return nil
}
