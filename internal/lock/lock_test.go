package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_Serializes(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		holders int
		max     int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, km.Acquire(ctx, "ds:1", time.Second))
			mu.Lock()
			holders++
			if holders > max {
				max = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			require.NoError(t, km.Release(ctx, "ds:1"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, max, "only one holder at a time per key")
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	require.NoError(t, km.Acquire(ctx, "ds:1", time.Second))
	defer km.Release(ctx, "ds:1")

	// A different key is not blocked by the first.
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, km.Acquire(ctx, "ds:2", time.Second))
		require.NoError(t, km.Release(ctx, "ds:2"))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
}
