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

func TestLocalAcquireIsExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "slot", time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "slot", time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := l.Acquire(ctx, "other", time.Second)
	require.NoError(t, err)
	other()

	release()
	release() // second call is a no-op

	again, err := l.Acquire(ctx, "slot", time.Second)
	require.NoError(t, err)
	again()
}

func TestStaleReleaseDoesNotFreeNewHolder(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	first, err := l.Acquire(ctx, "slot", 0)
	require.NoError(t, err)
	first()

	second, err := l.Acquire(ctx, "slot", 0)
	require.NoError(t, err)
	defer second()

	first()
	_, err = l.Acquire(ctx, "slot", 0)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestWaitSerializesHolders(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		inside atomic.Int32
		maxIn  atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := Wait(ctx, l, "slot", time.Second, time.Millisecond)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxIn.Load() {
				maxIn.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxIn.Load())
}

func TestWaitHonorsContext(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "slot", 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Wait(ctx, l, "slot", 0, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
