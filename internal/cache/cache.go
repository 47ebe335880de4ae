// Package cache holds the read-side caches of the link service: a listing
// cache with whole-cache invalidation and a bloom filter over short codes.
package cache

import (
	"context"
	"time"
)

// ListCache stores rendered list pages keyed by their query.
// Any write to the links table invalidates every entry at once.
//
// Get reports the generation it looked under. A page computed after a miss
// is stored with Set under that same generation, and Set drops it when an
// Invalidate happened in between, so a page read from the store before a
// write never outlives the write.
type ListCache interface {
	Get(ctx context.Context, key string) (value []byte, gen uint64, ok bool, err error)
	Set(ctx context.Context, gen uint64, key string, value []byte) error
	Invalidate(ctx context.Context) error
	Close() error
}

// Backend names accepted by CACHE_BACKEND.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendRedis = "redis"
)

// Cache operation results recorded in links_cache_operations_total.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
	resultError = "error"
)

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, uint64, bool, error) { return nil, 0, false, nil }
func (Noop) Set(context.Context, uint64, string, []byte) error         { return nil }
func (Noop) Invalidate(context.Context) error                          { return nil }
func (Noop) Close() error                                              { return nil }

// defaultTTL applies when a constructor receives a non-positive TTL.
const defaultTTL = 30 * time.Second
