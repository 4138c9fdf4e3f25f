package server

import (
	"context"
	"errors"
	"time"

	"github.com/skydash/skydash/internal/dataset"
)

// ErrDatasetNotFound is returned when a dataset id is unknown or its
// session entry has expired.
var ErrDatasetNotFound = errors.New("dataset not found")

var errCacheStopped = errors.New("cache stopped")

// cacheRequest models a single lookup or parse-and-store attempt. A nil
// loader makes the request a pure lookup.
type cacheRequest struct {
	ctx    context.Context
	key    string
	loader func(context.Context) (*dataset.Dataset, error)
	reply  chan cacheResponse
}

type cacheResponse struct {
	ds  *dataset.Dataset
	err error
}

type cacheEntry struct {
	ds      *dataset.Dataset
	expires time.Time
}

// DatasetCache memoizes parsed uploads keyed by file content identity so
// re-uploading the same bytes never re-parses. A dedicated goroutine
// owns the map; all access goes through channels, no mutexes. Entries
// expire after the configured TTL of inactivity, bounding the session.
type DatasetCache struct {
	ttl      time.Duration
	requests chan cacheRequest
	quit     chan struct{}
	now      func() time.Time
}

// NewDatasetCache starts the owning goroutine immediately.
func NewDatasetCache(ttl time.Duration) *DatasetCache {
	c := &DatasetCache{
		ttl:      ttl,
		requests: make(chan cacheRequest),
		quit:     make(chan struct{}),
		now:      time.Now,
	}
	go c.loop()
	return c
}

// Close stops the cache goroutine. Safe to call more than once.
func (c *DatasetCache) Close() {
	select {
	case <-c.quit:
		return
	default:
	}
	close(c.quit)
}

// GetOrParse returns the cached dataset for the key or invokes loader to
// produce and store it.
func (c *DatasetCache) GetOrParse(ctx context.Context, key string, loader func(context.Context) (*dataset.Dataset, error)) (*dataset.Dataset, error) {
	return c.send(ctx, cacheRequest{ctx: ctx, key: key, loader: loader, reply: make(chan cacheResponse, 1)})
}

// Lookup returns the cached dataset for the key, or ErrDatasetNotFound.
// A hit refreshes the entry's expiry, keeping active sessions alive.
func (c *DatasetCache) Lookup(ctx context.Context, key string) (*dataset.Dataset, error) {
	return c.send(ctx, cacheRequest{ctx: ctx, key: key, reply: make(chan cacheResponse, 1)})
}

func (c *DatasetCache) send(ctx context.Context, req cacheRequest) (*dataset.Dataset, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.quit:
		return nil, errCacheStopped
	case c.requests <- req:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.quit:
		return nil, errCacheStopped
	case resp := <-req.reply:
		return resp.ds, resp.err
	}
}

// loop serialises all cache access inside a single goroutine so a plain
// map suffices. Stale entries are dropped lazily on access.
func (c *DatasetCache) loop() {
	store := make(map[string]cacheEntry)
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.requests:
			now := c.now()

			if entry, ok := store[req.key]; ok && now.Before(entry.expires) {
				store[req.key] = cacheEntry{ds: entry.ds, expires: now.Add(c.ttl)}
				req.reply <- cacheResponse{ds: entry.ds}
				continue
			}
			delete(store, req.key)

			if req.loader == nil {
				req.reply <- cacheResponse{err: ErrDatasetNotFound}
				continue
			}

			ds, err := req.loader(req.ctx)
			if err == nil && ds != nil {
				store[req.key] = cacheEntry{ds: ds, expires: now.Add(c.ttl)}
			}
			req.reply <- cacheResponse{ds: ds, err: err}
		}
	}
}
