package cache

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scipunch/subfeed/fetcher/types"
	"github.com/scipunch/subfeed/metrics"
)

// Options configure the expiry of cached feeds
type Options struct {
	BaseTTL        time.Duration
	SplayMax       time.Duration // Random extra lifetime in [0, SplayMax], whole seconds
	StaleRetention time.Duration // Extra retention during which expired entries can be served on failure

	Rand *rand.Rand       // Splay source, seeded randomly when nil
	Now  func() time.Time // Clock, time.Now when nil
}

// Cache serves per-source feed items from a Store, refreshing them through
// a fetcher on miss or expiry.
type Cache struct {
	fetcher types.FeedFetcher
	store   Store
	opts    Options

	randMu sync.Mutex
	group  singleflight.Group
}

// New creates a cache in front of fetcher
func New(fetcher types.FeedFetcher, store Store, opts Options) *Cache {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{fetcher: fetcher, store: store, opts: opts}
}

// Get returns the items of a source. A live entry is returned without
// contacting the fetcher. When a refresh fails the last retained entry is
// served instead; without one the fetch error is returned.
func (c *Cache) Get(ctx context.Context, sourceID string) ([]types.FeedItem, error) {
	key := Key(sourceID)

	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.CacheStoreErrors.WithLabelValues("get").Inc()
		metrics.CacheLookups.WithLabelValues("bypass").Inc()
		slog.Warn("cache backend unavailable, fetching directly", "source", sourceID, "error", err)
		return c.fetcher.Fetch(ctx, sourceID)
	}

	if found && entry.Live(c.opts.Now()) {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry.Items, nil
	}
	if found {
		metrics.CacheLookups.WithLabelValues("expired").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	// Concurrent refreshes of one key share a single upstream fetch. The
	// fetch outlives a caller that gives up; the fetcher has its own deadline.
	ch := c.group.DoChan(key, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), sourceID, key)
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.([]types.FeedItem), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if found {
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		slog.Warn("serving stale feed after failed refresh",
			"source", sourceID,
			"expired_at", entry.ExpiresAt,
			"error", err)
		return entry.Items, nil
	}
	return nil, err
}

func (c *Cache) refresh(ctx context.Context, sourceID, key string) ([]types.FeedItem, error) {
	items, err := c.fetcher.Fetch(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	// Unparseable document. Keep whatever is stored so it can still be
	// served after a failure.
	if items == nil {
		return []types.FeedItem{}, nil
	}

	ttl := c.TTL()
	entry := Entry{Items: items, ExpiresAt: c.opts.Now().Add(ttl)}
	if err := c.store.Set(ctx, key, entry, ttl+c.opts.StaleRetention); err != nil {
		metrics.CacheStoreErrors.WithLabelValues("set").Inc()
		slog.Warn("failed to store feed in cache", "source", sourceID, "error", err)
	}
	return items, nil
}

// TTL draws the lifetime of a new entry: BaseTTL plus a uniform splay so
// sources cached together do not all expire together.
func (c *Cache) TTL() time.Duration {
	maxSplay := int64(c.opts.SplayMax / time.Second)
	if maxSplay <= 0 {
		return c.opts.BaseTTL
	}

	c.randMu.Lock()
	splay := c.opts.Rand.Int64N(maxSplay + 1)
	c.randMu.Unlock()

	return c.opts.BaseTTL + time.Duration(splay)*time.Second
}
