package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"

	"github.com/janhq/mention-agent/internal/domain/notification"
)

const passLockKey = KeyPrefix + "pass-lock"

// PassLock is a redsync mutex guarding notification passes.
type PassLock struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewPassLock creates a lock whose lease lasts ttl and is extended every
// ttl/3 while the pass runs.
func NewPassLock(cache *RedisCache, ttl time.Duration) *PassLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PassLock{cache: cache, ttl: ttl}
}

// TryLock acquires the lock without waiting.
func (l *PassLock) TryLock(ctx context.Context) (notification.Lease, error) {
	mutex := l.cache.rs.NewMutex(passLockKey, redsync.WithExpiry(l.ttl), redsync.WithTries(1))

	acquiredAt := time.Now()
	if err := mutex.TryLockContext(ctx); err != nil {
		// A held lock surfaces as ErrFailed or as a taken error depending on
		// the node count, so ask Redis directly.
		held, existsErr := l.cache.client.Exists(ctx, passLockKey).Result()
		if errors.Is(err, redsync.ErrFailed) || (existsErr == nil && held > 0) {
			return nil, notification.ErrPassLocked
		}
		return nil, fmt.Errorf("acquire pass lock: %w", err)
	}

	lease := &passLease{
		mutex:    mutex,
		ttl:      l.ttl,
		deadline: acquiredAt.Add(l.ttl),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go lease.keepAlive(l.ttl / 3)
	return lease, nil
}

// passLease extends the mutex in the background until released or until an
// extension fails.
type passLease struct {
	mutex *redsync.Mutex
	ttl   time.Duration

	mu       sync.Mutex
	deadline time.Time
	lost     bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (l *passLease) keepAlive(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := l.mutex.ExtendContext(ctx)
			cancel()

			l.mu.Lock()
			if err != nil || !ok {
				l.lost = true
				l.mu.Unlock()
				return
			}
			l.deadline = start.Add(l.ttl)
			l.mu.Unlock()
		}
	}
}

// Valid reports whether the lease is still held.
func (l *passLease) Valid() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.lost && time.Now().Before(l.deadline)
}

// Release stops the extensions and unlocks. Unlocking a lost lease is not
// an error.
func (l *passLease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done

	_, err := l.mutex.UnlockContext(ctx)
	if err != nil && l.Valid() {
		return fmt.Errorf("release pass lock: %w", err)
	}
	return nil
}

var _ notification.PassLock = (*PassLock)(nil)
