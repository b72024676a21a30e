package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungla20/Solana-MKP/internal/lock"
)

// newTestClient connects to MKP_TEST_REDIS_ADDR or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("MKP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MKP_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLockManagerExclusive(t *testing.T) {
	c := newTestClient(t)
	lm := NewLockManager(c, "mkp-test-"+uuid.NewString()+":")
	ctx := context.Background()

	release, err := lm.Acquire(ctx, "slot", time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "slot", time.Second)
	assert.ErrorIs(t, err, lock.ErrLockHeld)

	release()
	release()

	again, err := lm.Acquire(ctx, "slot", time.Second)
	require.NoError(t, err)
	again()
}

func TestLockManagerExpires(t *testing.T) {
	c := newTestClient(t)
	lm := NewLockManager(c, "mkp-test-"+uuid.NewString()+":")
	ctx := context.Background()

	_, err := lm.Acquire(ctx, "slot", 50*time.Millisecond)
	require.NoError(t, err)

	release, err := lock.Wait(ctx, lm, "slot", time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	release()
}

func TestNewFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := New(ctx, ClientConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
