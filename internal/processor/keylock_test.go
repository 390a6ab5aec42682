package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLocks_LockUnlock(t *testing.T) {
	k := newKeyLocks()
	ctx := t.Context()

	require.NoError(t, k.Lock(ctx, "beach1.jpg"))
	require.NoError(t, k.Lock(ctx, "beach2.jpg"))
	assert.Equal(t, 2, k.Len())

	k.Unlock("beach1.jpg")
	require.NoError(t, k.Lock(ctx, "beach1.jpg"))

	k.Unlock("beach1.jpg")
	k.Unlock("beach2.jpg")
	assert.Equal(t, 0, k.Len())
}

func TestKeyLocks_WaiterRunsAfterHolder(t *testing.T) {
	k := newKeyLocks()
	require.NoError(t, k.Lock(t.Context(), "rex5.png"))

	acquired := make(chan struct{})
	go func() {
		if k.Lock(context.Background(), "rex5.png") == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the key was held")
	case <-time.After(50 * time.Millisecond):
	}

	k.Unlock("rex5.png")
	select {
	case <-acquired:
	case <-time.After(3 * time.Second):
		t.Fatal("waiter never acquired the key")
	}
	k.Unlock("rex5.png")
	assert.Equal(t, 0, k.Len())
}

func TestKeyLocks_ContextCancelled(t *testing.T) {
	k := newKeyLocks()
	require.NoError(t, k.Lock(t.Context(), "rex5.png"))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, k.Lock(ctx, "rex5.png"), context.DeadlineExceeded)

	k.Unlock("rex5.png")
	assert.Equal(t, 0, k.Len())
}

func TestKeyLocks_MutualExclusion(t *testing.T) {
	k := newKeyLocks()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
		start   = make(chan struct{})
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := k.Lock(context.Background(), "rex5.png"); err != nil {
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			k.Unlock("rex5.png")
		}()
	}
	close(start)
	wg.Wait()

	assert.False(t, overlap.Load())
	assert.Equal(t, 0, k.Len())
}
