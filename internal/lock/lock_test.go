package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockUnlock(t *testing.T) {
	g := NewMemory()
	ctx := context.Background()

	require.NoError(t, g.Lock(ctx, "strat:1", time.Second))

	ok, err := g.TryLock(ctx, "strat:1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Unlock(ctx, "strat:1"))
	ok, err = g.TryLock(ctx, "strat:1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, g.Unlock(ctx, "strat:1"))
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	g := NewMemory()
	ctx := context.Background()

	require.NoError(t, g.Lock(ctx, "strat:1", time.Second))
	require.NoError(t, g.Lock(ctx, "strat:2", time.Second))
	require.NoError(t, g.Unlock(ctx, "strat:1"))
	require.NoError(t, g.Unlock(ctx, "strat:2"))
}

func TestMemoryUnlockNotHeld(t *testing.T) {
	g := NewMemory()
	assert.Error(t, g.Unlock(context.Background(), "strat:1"))
}

func TestMemoryLockRespectsContext(t *testing.T) {
	g := NewMemory()
	ctx := context.Background()
	require.NoError(t, g.Lock(ctx, "portfolio", time.Second))

	timed, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := g.Lock(timed, "portfolio", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, g.Unlock(ctx, "portfolio"))
}

func TestMemoryLockBlocksUntilReleased(t *testing.T) {
	g := NewMemory()
	ctx := context.Background()
	require.NoError(t, g.Lock(ctx, "strat:1", time.Second))

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		_ = g.Lock(ctx, "strat:1", time.Second)
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, g.Unlock(ctx, "strat:1"))
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not acquired after release")
	}
}

func TestFactoryDefaultsToMemory(t *testing.T) {
	g, err := New(Config{})
	require.NoError(t, err)
	_, isMemory := g.(*Memory)
	assert.True(t, isMemory)
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := New(Config{Type: "etcd"})
	assert.Error(t, err)
}
