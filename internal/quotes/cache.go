// Package quotes resolves and caches the minimum price increment for
// outcome tokens. Entries are keyed per outcome token, not per market:
// two outcomes of the same market may carry different tick sizes.
package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/predictdesk/engine/pkg/logger"
	"github.com/predictdesk/engine/pkg/redis"
)

// Fetcher resolves a tick size from the order book.
type Fetcher interface {
	FetchTickSize(ctx context.Context, tokenID string) (float64, error)
}

// Cache serves tick sizes with stale-while-revalidate semantics. A miss
// blocks the caller until the fetch completes: proceeding with a
// defaulted tick size would silently corrupt every downstream
// validation. At most one fetch per token is outstanding at a time.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*fetchCall

	fetcher Fetcher
	ttl     time.Duration
	l2      *redis.Cache // optional cross-process layer
	logger  *logger.Logger
}

type entry struct {
	tick      float64
	fetchedAt time.Time
}

type fetchCall struct {
	done chan struct{}
	tick float64
	err  error
}

// fetchTimeout bounds a single tick-size fetch independently of the
// caller's context: an abandoned UI context must not kill a fetch other
// callers are waiting on.
const fetchTimeout = 10 * time.Second

// New creates a tick-size cache. l2 may be nil.
func New(fetcher Fetcher, ttl time.Duration, l2 *redis.Cache, log *logger.Logger) *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		inflight: make(map[string]*fetchCall),
		fetcher:  fetcher,
		ttl:      ttl,
		l2:       l2,
		logger:   log,
	}
}

// TickSize returns the tick size for an outcome token and whether the
// value is stale. A stale value is served immediately while a refresh
// runs in the background; a miss blocks until the fetch resolves or ctx
// is cancelled.
func (c *Cache) TickSize(ctx context.Context, tokenID string) (float64, bool, error) {
	c.mu.Lock()

	if e, ok := c.entries[tokenID]; ok {
		stale := time.Since(e.fetchedAt) > c.ttl
		tick := e.tick
		if stale {
			c.refreshLocked(tokenID)
		}
		c.mu.Unlock()
		return tick, stale, nil
	}

	call := c.refreshLocked(tokenID)
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, false, ctx.Err()
	case <-call.done:
	}

	if call.err != nil {
		return 0, false, call.err
	}
	return call.tick, false, nil
}

// Prime seeds the cache with a known tick size.
func (c *Cache) Prime(tokenID string, tick float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[tokenID] = &entry{tick: tick, fetchedAt: time.Now()}
}

// Invalidate drops a cached tick size so the next read forces a fetch.
func (c *Cache) Invalidate(tokenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, tokenID)
}

// refreshLocked starts a deduplicated fetch for tokenID. The caller
// must hold c.mu. Returns the in-flight call.
func (c *Cache) refreshLocked(tokenID string) *fetchCall {
	if call, ok := c.inflight[tokenID]; ok {
		return call
	}

	call := &fetchCall{done: make(chan struct{})}
	c.inflight[tokenID] = call

	go c.fetch(tokenID, call)

	return call
}

// fetch resolves a tick size, consulting the shared cache layer first,
// and publishes the result.
func (c *Cache) fetch(tokenID string, call *fetchCall) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	tick, err := c.lookup(ctx, tokenID)

	c.mu.Lock()
	delete(c.inflight, tokenID)
	if err == nil {
		c.entries[tokenID] = &entry{tick: tick, fetchedAt: time.Now()}
	}
	c.mu.Unlock()

	call.tick = tick
	call.err = err
	close(call.done)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"token_id": tokenID,
			"error":    err,
		}).Warn("Tick size fetch failed")
		return
	}

	c.logger.WithFields(map[string]interface{}{
		"token_id":  tokenID,
		"tick_size": tick,
	}).Debug("Tick size resolved")
}

func (c *Cache) lookup(ctx context.Context, tokenID string) (float64, error) {
	if c.l2 != nil {
		var tick float64
		if found, err := c.l2.Get(ctx, redis.TickSizeKey(tokenID), &tick); err == nil && found && tick > 0 {
			return tick, nil
		}
	}

	tick, err := c.fetcher.FetchTickSize(ctx, tokenID)
	if err != nil {
		return 0, err
	}

	if c.l2 != nil {
		if err := c.l2.Set(ctx, redis.TickSizeKey(tokenID), tick, redis.TTLMedium); err != nil {
			c.logger.WithError(err).Debug("Tick size cache write-through failed")
		}
	}

	return tick, nil
}
