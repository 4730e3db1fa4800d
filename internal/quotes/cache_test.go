package quotes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictdesk/engine/pkg/logger"
)

type fakeFetcher struct {
	mu    sync.Mutex
	ticks map[string]float64
	err   error
	calls int32
	delay time.Duration
}

func (f *fakeFetcher) FetchTickSize(ctx context.Context, tokenID string) (float64, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.ticks[tokenID], nil
}

func TestTickSize_MissBlocksUntilFetched(t *testing.T) {
	fetcher := &fakeFetcher{ticks: map[string]float64{"tok-1": 0.01}}
	cache := New(fetcher, time.Minute, nil, logger.NewNop())

	tick, stale, err := cache.TickSize(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.01, tick)
	assert.False(t, stale)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestTickSize_FreshHitSkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{ticks: map[string]float64{"tok-1": 0.001}}
	cache := New(fetcher, time.Minute, nil, logger.NewNop())
	cache.Prime("tok-1", 0.001)

	tick, stale, err := cache.TickSize(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.001, tick)
	assert.False(t, stale)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fetcher.calls))
}

func TestTickSize_StaleServedWhileRevalidating(t *testing.T) {
	fetcher := &fakeFetcher{ticks: map[string]float64{"tok-1": 0.01}}
	cache := New(fetcher, time.Nanosecond, nil, logger.NewNop())
	cache.Prime("tok-1", 0.1)
	time.Sleep(time.Millisecond)

	tick, stale, err := cache.TickSize(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.1, tick, "stale value is served immediately")
	assert.True(t, stale)

	// background refresh lands eventually
	assert.Eventually(t, func() bool {
		tick, _, err := cache.TickSize(context.Background(), "tok-1")
		return err == nil && tick == 0.01
	}, time.Second, 10*time.Millisecond)
}

func TestTickSize_ConcurrentMissesShareOneFetch(t *testing.T) {
	fetcher := &fakeFetcher{ticks: map[string]float64{"tok-1": 0.01}, delay: 50 * time.Millisecond}
	cache := New(fetcher, time.Minute, nil, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tick, _, err := cache.TickSize(context.Background(), "tok-1")
			assert.NoError(t, err)
			assert.Equal(t, 0.01, tick)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls),
		"rapid toggling must not fan out into redundant fetches")
}

func TestTickSize_CancelledWaiterDoesNotPoisonCache(t *testing.T) {
	fetcher := &fakeFetcher{ticks: map[string]float64{"tok-1": 0.01}, delay: 50 * time.Millisecond}
	cache := New(fetcher, time.Minute, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := cache.TickSize(ctx, "tok-1")
	require.ErrorIs(t, err, context.Canceled)

	// The fetch itself carries on and the next caller gets a value.
	tick, _, err := cache.TickSize(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.01, tick)
}

func TestTickSize_FetchErrorSurfaced(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	cache := New(fetcher, time.Minute, nil, logger.NewNop())

	_, _, err := cache.TickSize(context.Background(), "tok-1")
	require.Error(t, err)

	// Errors are not cached; a later attempt refetches.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.ticks = map[string]float64{"tok-1": 0.01}
	fetcher.mu.Unlock()

	tick, _, err := cache.TickSize(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.01, tick)
}

func TestInvalidate(t *testing.T) {
	fetcher := &fakeFetcher{ticks: map[string]float64{"tok-1": 0.01}}
	cache := New(fetcher, time.Minute, nil, logger.NewNop())
	cache.Prime("tok-1", 0.1)

	cache.Invalidate("tok-1")

	tick, _, err := cache.TickSize(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.01, tick)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}
