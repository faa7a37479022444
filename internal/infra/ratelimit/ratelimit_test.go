package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFixedWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3, time.Hour)
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		d, err := s.Hit(ctx, "1.2.3.4", start.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
		assert.Equal(t, start.Add(time.Hour), d.ResetAt)
	}

	d, err := s.Hit(ctx, "1.2.3.4", start.Add(59*time.Minute))
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	other, err := s.Hit(ctx, "5.6.7.8", start.Add(59*time.Minute))
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	d, err = s.Hit(ctx, "1.2.3.4", start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, d.Allowed, "window resets at resetAt")
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, start.Add(2*time.Hour), d.ResetAt)
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(1, time.Hour)
	now := time.Now()

	d, _ := s.Hit(ctx, "k", now)
	assert.True(t, d.Allowed)
	d, _ = s.Hit(ctx, "k", now)
	assert.False(t, d.Allowed)

	require.NoError(t, s.Reset(ctx, "k"))
	d, _ = s.Hit(ctx, "k", now)
	assert.True(t, d.Allowed)
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5, 10*time.Minute)
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	_, _ = s.Hit(ctx, "old", start)
	_, _ = s.Hit(ctx, "new", start.Add(5*time.Minute))
	require.Equal(t, 2, s.Len())

	assert.Equal(t, 0, s.Sweep(start.Add(9*time.Minute)))
	assert.Equal(t, 1, s.Sweep(start.Add(10*time.Minute)))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Sweep(start.Add(time.Hour)))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreConcurrentHits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Hour)
	now := time.Now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := s.Hit(ctx, "k", now)
			assert.NoError(t, err)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
