// Package lock serializes instruction processing per state slot.
//
// Local covers a single process. The redis subpackage provides the same
// interface across processes that share one database file.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLockHeld is returned by Acquire when another holder owns the key.
var ErrLockHeld = errors.New("lock held")

// Locker acquires named locks. Acquire must not block: it either takes the
// lock or fails with ErrLockHeld. The returned release func is safe to call
// more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// DefaultRetry is the polling interval used by Wait.
const DefaultRetry = 10 * time.Millisecond

// Wait retries Acquire until it succeeds, fails with an error other than
// ErrLockHeld, or ctx is done.
func Wait(ctx context.Context, l Locker, key string, ttl, retry time.Duration) (func(), error) {
	if retry <= 0 {
		retry = DefaultRetry
	}
	for {
		release, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}

		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("wait for lock %s: %w", key, ctx.Err())
		case <-t.C:
		}
	}
}

// Local is an in-process Locker. TTLs are ignored: a local holder cannot
// disappear without releasing.
type Local struct {
	mu   sync.Mutex
	held map[string]uint64
	next uint64
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]uint64)}
}

// Acquire takes key if it is free.
func (l *Local) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLockHeld
	}
	l.next++
	token := l.next
	l.held[key] = token

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
			}
		})
	}, nil
}

var _ Locker = (*Local)(nil)
